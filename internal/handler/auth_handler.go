// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/sociopedia/internal/auth"
	"github.com/hitoshi/sociopedia/internal/metrics"
	"github.com/hitoshi/sociopedia/internal/middleware"
	"github.com/hitoshi/sociopedia/internal/model"
)

const (
	// pictureField はプロフィール画像のmultipartフィールド名。
	pictureField = "picture"
	// formFieldsAllowance は画像以外のフォームフィールドとmultipartの境界に許容するバイト数。
	formFieldsAllowance = 1 << 20
	// multipartMemory はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルに書き出される。
	multipartMemory = 8 << 20
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in model.RegistrationInput, picture *auth.PictureUpload) (*model.Account, error)
	Login(ctx context.Context, in model.LoginInput) (*auth.LoginResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	MaxUploadSize int64
}

// AuthHandler は登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, m metrics.MetricsCollector) *AuthHandler {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: m,
	}
}

// Register はアカウントを新規登録する。
// POST /auth/register
//
// multipart/form-dataを基本とし、画像なしの場合はJSONとURLエンコード形式も受け付ける。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+formFieldsAllowance)

	in, picture, cleanup, err := h.parseRegistration(r)
	defer cleanup()
	if err != nil {
		h.metrics.RecordRegistration(outcomeOf(err))
		handleServiceError(w, r, err)
		return
	}

	account, err := h.service.Register(r.Context(), in, picture)
	h.metrics.RecordRegistration(outcomeOf(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// parseRegistration はリクエストから登録内容と画像を取り出す。
// 返されるcleanupは一時ファイルの削除に使い、エラー時も呼び出す。
func (h *AuthHandler) parseRegistration(r *http.Request) (model.RegistrationInput, *auth.PictureUpload, func(), error) {
	noop := func() {}
	var in model.RegistrationInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, nil, noop, h.bodyError(err)
		}
		return in, nil, noop, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return in, nil, noop, h.bodyError(err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return in, nil, noop, h.bodyError(err)
		}
	}

	cleanup := noop
	if r.MultipartForm != nil {
		form := r.MultipartForm
		cleanup = func() {
			if err := form.RemoveAll(); err != nil {
				slog.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
			}
		}
	}

	in = model.RegistrationInput{
		FirstName:   r.FormValue("firstName"),
		LastName:    r.FormValue("lastName"),
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
		Location:    r.FormValue("location"),
		Occupation:  r.FormValue("occupation"),
		PicturePath: r.FormValue("picturePath"),
	}

	if r.MultipartForm == nil {
		return in, nil, cleanup, nil
	}

	file, header, err := r.FormFile(pictureField)
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, cleanup, nil
	}
	if err != nil {
		return in, nil, cleanup, h.bodyError(err)
	}

	// 一時ファイルを削除する前に閉じる
	prev := cleanup
	cleanup = func() {
		file.Close()
		prev()
	}
	return in, &auth.PictureUpload{Filename: header.Filename, Content: file}, cleanup, nil
}

// bodyError はボディの読み取りエラーをAPIErrorに変換する。
// サイズ上限の超過は画像サイズ超過として扱う。
func (h *AuthHandler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.NewPictureTooLargeError(h.config.MaxUploadSize)
	}
	return model.NewInvalidRequestBodyError(err.Error())
}

// Login はメールアドレスとパスワードでログインし、トークンを返す。
// POST /auth/login
//
// 認証失敗は既存クライアントとの互換のため400とmsgフィールドで返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in model.LoginInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, formFieldsAllowance)).Decode(&in); err != nil {
		h.metrics.RecordLogin(metrics.OutcomeValidation)
		middleware.WriteMsgErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestBodyError(err.Error()))
		return
	}

	result, err := h.service.Login(r.Context(), in)
	h.metrics.RecordLogin(outcomeOf(err))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteMsgErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
