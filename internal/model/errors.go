// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUnsupportedPicture = "UNSUPPORTED_PICTURE"
	ErrCodePictureTooLarge    = "PICTURE_TOO_LARGE"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeUserDoesNotExist   = "USER_DOES_NOT_EXIST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	ErrCodeRateLimited        = "RATE_LIMITED"
)

// ログイン失敗時にクライアントへ返すメッセージ。
// 既存のフロントエンドが表示する文言をそのまま維持する。
const (
	MsgUserDoesNotExist   = "USER DOES NOT EXIST."
	MsgInvalidCredentials = "INVALID CREDENTIALS."
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "必須項目を入力し、メールアドレスの形式を確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUnsupportedPictureError は受け付けない画像形式のエラーを生成する。
func NewUnsupportedPictureError(mime string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedPicture,
		Message:  fmt.Sprintf("対応していない画像形式です: %s", mime),
		Category: "upload",
		Action:   "JPEGまたはPNG形式の画像を選択してください。",
	}
}

// NewPictureTooLargeError は画像サイズ超過エラーを生成する。
func NewPictureTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePictureTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dバイト）を超えています。", limit),
		Category: "upload",
		Action:   "より小さな画像を選択してください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認するか、ログインし直してください。",
	}
}

// NewUserDoesNotExistError はログイン対象のメールアドレスが未登録の場合のエラーを生成する。
func NewUserDoesNotExistError() *APIError {
	return &APIError{
		Code:     ErrCodeUserDoesNotExist,
		Message:  MsgUserDoesNotExist,
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewInvalidCredentialsError はパスワード不一致のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  MsgInvalidCredentials,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewInvalidRequestBodyError はリクエストボディが解釈できない場合のエラーを生成する。
func NewInvalidRequestBodyError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequestBody,
		Message:  fmt.Sprintf("リクエストボディが不正です: %s", reason),
		Category: "validation",
		Action:   "送信内容を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}
