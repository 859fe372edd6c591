// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionResolver 根据令牌查找会话
type SessionResolver interface {
	Lookup(token string) (*session.Session, error)
}

// TokenFromRequest 从 Authorization 头或会话 Cookie 获取令牌
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthMiddleware 认证中间件，会话写入请求上下文
func AuthMiddleware(resolver SessionResolver, onFail func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	if onFail == nil {
		onFail = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := resolver.Lookup(TokenFromRequest(r))
			if err != nil {
				onFail(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession 把会话放入上下文
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom 取出 AuthMiddleware 放入的会话
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok && s != nil
}
