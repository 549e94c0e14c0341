// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"time"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
// リポジトリ層が返し、サービス層でEMAIL_TAKENに変換する。
var ErrDuplicateEmail = errors.New("email already registered")

// Account は登録済みユーザーを表す。
// PasswordHashはbcryptハッシュで、JSONには決して出力しない。
type Account struct {
	ID            string    `json:"_id" bson:"_id"`
	FirstName     string    `json:"firstName" bson:"firstName"`
	LastName      string    `json:"lastName" bson:"lastName"`
	Email         string    `json:"email" bson:"email"`
	PasswordHash  string    `json:"-" bson:"password"`
	PicturePath   string    `json:"picturePath" bson:"picturePath"`
	Location      string    `json:"location" bson:"location"`
	Occupation    string    `json:"occupation" bson:"occupation"`
	ViewedProfile int       `json:"viewedProfile" bson:"viewedProfile"`
	Impressions   int       `json:"impressions" bson:"impressions"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RegistrationInput は登録リクエストから取り出した未検証の入力を表す。
// Passwordは平文で、ハッシュ化はサービス層で行う。
// 氏名などの必須チェックはクライアントのフォームで行い、サーバーはemailとpasswordだけを検証する。
type RegistrationInput struct {
	FirstName   string
	LastName    string
	Email       string `validate:"required,email"`
	Password    string `validate:"required"`
	Location    string
	Occupation  string
	PicturePath string
}

// LoginInput はログインリクエストの入力を表す。
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
