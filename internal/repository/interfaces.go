// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/sociopedia/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
// PostgreSQL版とMongoDB版の実装があり、DATABASE_URLのスキームで切り替える。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	// emailは小文字に正規化済みであること。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが既に登録されている場合はmodel.ErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error

	// ListPicturePaths は全アカウントが参照している画像ファイル名を返す。
	// 孤立画像の掃除ジョブが参照判定に使用する。空のpicture_pathは含まない。
	ListPicturePaths(ctx context.Context) ([]string, error)
}
