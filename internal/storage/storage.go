// Package storage はプロフィール画像の保存先を抽象化する。
// ローカルディスクとS3互換オブジェクトストレージの実装を提供する。
package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidName は保存名としてパス区切りや相対参照を含む名前が渡された場合のエラー。
var ErrInvalidName = errors.New("invalid picture name")

// ObjectInfo は保存済み画像のメタデータを表す。
type ObjectInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// PictureStore はプロフィール画像の保存先インターフェース。
// http.Handlerとして/assets配下の配信も担う。
type PictureStore interface {
	http.Handler

	// Save は画像を保存する。同名のファイルは上書きする。
	Save(ctx context.Context, name string, data []byte, contentType string) error

	// Delete は画像を削除する。存在しない場合はエラーにしない。
	Delete(ctx context.Context, name string) error

	// List は保存済みの全画像を返す。
	List(ctx context.Context) ([]ObjectInfo, error)
}

// validName は保存名が単一のファイル名であることを検証する。
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
