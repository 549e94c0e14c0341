package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hitoshi/sociopedia/internal/model"
)

// Session は保存されたログイン状態。
type Session struct {
	Token string        `json:"token"`
	User  model.Account `json:"user"`
}

// FileSessionStore はログイン状態をJSONファイルに保存する。
// トークンを含むため、ファイルは所有者のみ読み書き可能にする。
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

// NewFileSessionStore は新しいFileSessionStoreを生成する。
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath はユーザー設定ディレクトリ配下のセッションファイルパスを返す。
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("設定ディレクトリの取得に失敗: %w", err)
	}
	return filepath.Join(dir, "sociopedia", "session.json"), nil
}

// SetLogin はアカウントとトークンを保存する。
func (s *FileSessionStore) SetLogin(user model.Account, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(Session{Token: token, User: user}, "", "  ")
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗: %w", err)
	}

	// 途中で失敗しても既存のファイルを壊さないよう一時ファイル経由で置き換える
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("セッションの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("セッションの書き込みに失敗: %w", err)
	}
	return nil
}

// Load は保存済みのセッションを返す。未ログインの場合はnilを返す。
func (s *FileSessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの読み込みに失敗: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("セッションのデコードに失敗: %w", err)
	}
	return &sess, nil
}

// Clear は保存済みのセッションを削除する。
func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	return nil
}
