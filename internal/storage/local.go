package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore はローカルディレクトリに画像を保存する。
type LocalStore struct {
	dir        string
	fileServer http.Handler
}

// NewLocalStore はディレクトリを作成してLocalStoreを生成する。
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}
	return &LocalStore{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save は一時ファイルに書き込んでからリネームする。
// 書き込み途中のファイルが配信や掃除の対象にならないようにする。
func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) error {
	if err := validName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write picture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close picture: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod picture: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to store picture: %w", err)
	}
	return nil
}

// Delete は画像を削除する。
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	return nil
}

// List はディレクトリ直下の画像を返す。隠しファイルと一時ファイルは含まない。
func (s *LocalStore) List(_ context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets directory: %w", err)
	}

	var objects []ObjectInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// 列挙中に削除された
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

// ServeHTTP は画像を配信する。ディレクトリ一覧は返さない。
func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") || validName(strings.TrimPrefix(r.URL.Path, "/")) != nil {
		http.NotFound(w, r)
		return
	}
	s.fileServer.ServeHTTP(w, r)
}

// compile-time interface check
var _ PictureStore = (*LocalStore)(nil)
