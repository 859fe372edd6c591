package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
)

// CSRFHeader 前端回传 CSRF 令牌使用的请求头
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF 双提交校验：非只读请求必须带 CSRF Cookie，且请求头与令牌一致
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		ck, err := r.Cookie(session.CSRFCookieName)
		if err != nil || ck.Value == "" {
			http.Error(w, "CSRF token missing", http.StatusForbidden)
			return
		}
		expected := ck.Value
		// 已登录时以会话内保存的令牌为准
		if sess, ok := SessionFrom(r.Context()); ok && sess.CSRFToken != "" {
			expected = sess.CSRFToken
		}
		if subtle.ConstantTimeCompare([]byte(r.Header.Get(CSRFHeader)), []byte(expected)) != 1 {
			http.Error(w, "CSRF token mismatch", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
