// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/sociopedia/internal/auth"
	"github.com/hitoshi/sociopedia/internal/metrics"
)

const (
	// MsgNoToken はAuthorizationヘッダーが無い場合の応答本文。
	MsgNoToken = "Access Denied: No token provided"
	// MsgInvalidToken は検証に失敗したトークンに対する応答本文のerror値。
	MsgInvalidToken = "Invalid or expired token"

	bearerPrefix = "bearer "
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにトークンのクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はトークン検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// NewTokenMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// 検証済みのクレームをリクエストコンテキストに注入する。
// ヘッダーが無い場合と検証に失敗した場合はそれぞれ異なる本文で401を返す。
func NewTokenMiddleware(verifier TokenVerifier, m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r.Header.Get("Authorization"))
			if token == "" {
				m.RecordTokenRejected("missing")
				http.Error(w, MsgNoToken, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				slog.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				m.RecordTokenRejected("invalid")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": MsgInvalidToken})
				return
			}

			setRequestAccountID(r.Context(), claims.AccountID)
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken はヘッダー値からトークンを取り出す。
// "Bearer "接頭辞は大文字小文字を問わず除去し、接頭辞なしの生トークンも受け付ける。
func extractToken(header string) string {
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		header = header[len(bearerPrefix):]
	}
	return strings.TrimSpace(header)
}

// ClaimsFromContext はリクエストコンテキストからクレームを取得する。
// トークンミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// AccountIDFromContext はリクエストコンテキストからアカウントIDを取得する。
func AccountIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.AccountID == "" {
		return "", fmt.Errorf("account ID not found in context")
	}
	return claims.AccountID, nil
}

// ContextWithAccountID はコンテキストにアカウントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, claimsContextKey, &auth.Claims{AccountID: accountID})
}
