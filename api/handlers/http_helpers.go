package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// writeSudoRequired 会话没有可用的 sudo 凭据
func writeSudoRequired(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"error":   "sudo_required",
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// decodeJSON 解析请求体，空请求体视为 {}
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// currentSession 取出认证包装器放入的会话
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return sess, true
}

// requireSecret 特权操作需要会话内保存的 sudo 密码
func requireSecret(w http.ResponseWriter, r *http.Request, message string) (*session.Session, string, bool) {
	sess, ok := currentSession(w, r)
	if !ok {
		return nil, "", false
	}
	secret, ok := sess.Credential.PeekSecret()
	if !ok {
		writeSudoRequired(w, message)
		return nil, "", false
	}
	return sess, secret, true
}
