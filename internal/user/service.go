// Package user はユーザープロフィール参照のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sociopedia/internal/model"
	"github.com/hitoshi/sociopedia/internal/repository"
)

// Service はユーザー参照のサービス層。
type Service struct {
	accounts repository.AccountRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository) *Service {
	return &Service{accounts: accounts}
}

// GetByID は指定IDのアカウントを返す。
// 存在しない場合はACCOUNT_NOT_FOUNDのAPIErrorを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		slog.Debug("account not found", slog.String("account_id", id))
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}
