package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/sociopedia/internal/model"
)

// MemoryAccountRepo はプロセス内メモリに保持するアカウントリポジトリ。
// ハンドラーの結合テストやDBなしでのローカル検証に使用する。
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	byID     map[string]*model.Account
	idByMail map[string]string
}

// NewMemoryAccountRepo はMemoryAccountRepoを生成する。
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		byID:     make(map[string]*model.Account),
		idByMail: make(map[string]string),
	}
}

// FindByID は指定IDのアカウントのコピーを返す。見つからない場合はnilを返す。
func (r *MemoryAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。
func (r *MemoryAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.mu.RLock()
	id, ok := r.idByMail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

// Create はアカウントを保存する。emailの重複はmodel.ErrDuplicateEmailを返す。
func (r *MemoryAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByMail[account.Email]; exists {
		return model.ErrDuplicateEmail
	}
	cp := *account
	r.byID[account.ID] = &cp
	r.idByMail[account.Email] = account.ID
	return nil
}

// ListPicturePaths は参照されている画像ファイル名を返す。
func (r *MemoryAccountRepo) ListPicturePaths(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var paths []string
	for _, a := range r.byID {
		if a.PicturePath == "" {
			continue
		}
		if _, ok := seen[a.PicturePath]; ok {
			continue
		}
		seen[a.PicturePath] = struct{}{}
		paths = append(paths, a.PicturePath)
	}
	return paths, nil
}

// compile-time interface check
var _ AccountRepository = (*MemoryAccountRepo)(nil)
