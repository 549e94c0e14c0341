package middleware

import (
	"net/http"
	"strings"
)

// assetsPathPrefix はプロフィール画像の配信パス。
const assetsPathPrefix = "/assets/"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// APIレスポンスにはトークンやアカウント情報が含まれるため、キャッシュを禁止する。
// 画像は保存名にアップロード時刻を含み内容が変わらないため、キャッシュを許可し、
// 別オリジンのフロントエンドから<img>で読み込めるようにする。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if strings.HasPrefix(r.URL.Path, assetsPathPrefix) {
				h.Set("Cross-Origin-Resource-Policy", "cross-origin")
				h.Set("Cache-Control", "public, max-age=86400")
			} else {
				h.Set("Cross-Origin-Resource-Policy", "same-origin")
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
