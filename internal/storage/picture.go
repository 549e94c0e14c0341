package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedType は許可されていない画像形式を表す。
	ErrUnsupportedType = errors.New("unsupported picture type")
	// ErrTooLarge は画像サイズが上限を超えたことを表す。
	ErrTooLarge = errors.New("picture too large")
)

// allowedPictureTypes は受け付ける画像のMIMEタイプ。
var allowedPictureTypes = []string{"image/jpeg", "image/png"}

// UnsupportedTypeError は検出したMIMEタイプを保持する。
type UnsupportedTypeError struct {
	MIME string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedType, e.MIME)
}

// Unwrap はerrors.Is(err, ErrUnsupportedType)を可能にする。
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// ReadPicture は画像データをlimitバイトまで読み込み、内容からMIMEタイプを判定する。
// 拡張子やクライアント申告のContent-Typeは信用しない。
func ReadPicture(r io.Reader, limit int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read picture: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	for _, allowed := range allowedPictureTypes {
		if mtype.Is(allowed) {
			return data, allowed, nil
		}
	}
	return nil, "", &UnsupportedTypeError{MIME: mtype.String()}
}

// StoredName はアップロード時刻（ミリ秒）と元のファイル名から保存名を生成する。
// 元のファイル名はBaseNameで正規化する。
func StoredName(original string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), BaseName(original))
}

// BaseName はクライアントから渡されたファイル名を単一のファイル名に正規化する。
// 文字、数字、'.', '-', '_' 以外はハイフンに置き換える。
func BaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "-" {
		return "picture"
	}
	return base
}
