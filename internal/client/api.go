// Package client はsociopedia APIのクライアントと、ログイン/登録を切り替えるフォームを提供する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody はレスポンスボディの読み込み上限（1MB）。
const maxResponseBody = 1 << 20

// Response はAPIレスポンスのうちフォームが解釈に使う部分を保持する。
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK はステータスコードが2xxかどうかを返す。
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON はContent-TypeがJSONかどうかを返す。
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// API はsociopediaの認証エンドポイントを呼び出すHTTPクライアント。
// 自動リトライは行わない。
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI は新しいAPIクライアントを生成する。
// httpClientがnilの場合は30秒タイムアウトのクライアントを使う。
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Register はPOST /auth/registerへmultipartフォームを送信する。
// 画像がある場合はpictureファイルとpicturePathを付与する。
func (a *API) Register(ctx context.Context, d RegisterDraft) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"firstName", d.FirstName},
		{"lastName", d.LastName},
		{"email", d.Email},
		{"password", d.Password},
		{"location", d.Location},
		{"occupation", d.Occupation},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("フォームの組み立てに失敗: %w", err)
		}
	}

	if d.Picture != nil {
		fw, err := w.CreateFormFile("picture", d.Picture.Name)
		if err != nil {
			return nil, fmt.Errorf("フォームの組み立てに失敗: %w", err)
		}
		if _, err := fw.Write(d.Picture.Data); err != nil {
			return nil, fmt.Errorf("フォームの組み立てに失敗: %w", err)
		}
		if err := w.WriteField("picturePath", d.Picture.Name); err != nil {
			return nil, fmt.Errorf("フォームの組み立てに失敗: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("フォームの組み立てに失敗: %w", err)
	}

	return a.post(ctx, "/auth/register", w.FormDataContentType(), &buf)
}

// Login はPOST /auth/loginへJSONを送信する。
func (a *API) Login(ctx context.Context, d LoginDraft) (*Response, error) {
	body, err := json.Marshal(map[string]string{
		"email":    d.Email,
		"password": d.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストの組み立てに失敗: %w", err)
	}
	return a.post(ctx, "/auth/login", "application/json", bytes.NewReader(body))
}

func (a *API) post(ctx context.Context, path, contentType string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s への接続に失敗: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み込みに失敗: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
