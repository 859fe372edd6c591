package handlers

import (
	"errors"
	"net/http"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
)

// SudoLoginHandler 使用主机 sudo 密码登录
// @Summary sudo 登录
// @Description 通过 sudo -k 强制校验密码，成功后建立服务端会话
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body types.SudoLoginRequest true "sudo 密码"
// @Success 200 {object} map[string]interface{} "登录成功"
// @Failure 401 {object} map[string]interface{} "密码错误"
// @Failure 429 {object} map[string]interface{} "尝试过于频繁"
// @Router /api/sudo/login [post]
func (a *API) SudoLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	ip := middleware.ClientIP(r)
	// 速率限制检查
	if a.LoginLimiter != nil && !a.LoginLimiter.Allow(ip) {
		writeJSONError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	var req types.SudoLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cred := credential.NewStore(a.Sudo)
	if err := cred.ValidateAndStore(r.Context(), req.Password); err != nil {
		a.Sessions.RecordLogin(ip, r.UserAgent(), false, "")
		a.observeLogin(false)
		a.audit("", "login_failed", "", ip)

		var verr *credential.VerifyError
		switch {
		case errors.Is(err, credential.ErrSecretRequired):
			writeJSONError(w, http.StatusBadRequest, "Password required")
		case errors.Is(err, credential.ErrVerifyTimeout):
			writeJSONError(w, http.StatusUnauthorized, "Sudo verification timed out")
		case errors.As(err, &verr):
			writeJSONError(w, http.StatusUnauthorized, verr.Message)
		default:
			log.Error().Err(err).Msg("sudo verification failed")
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// 重新登录时废弃旧会话
	if old, err := a.Sessions.Lookup(middleware.TokenFromRequest(r)); err == nil {
		a.Sessions.Revoke(old.ID)
	}

	sess, token, err := a.Sessions.Create(cred, ip, r.UserAgent())
	if err != nil {
		cred.Clear()
		log.Error().Err(err).Msg("create session failed")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.setSessionCookies(w, sess, token)

	a.Sessions.RecordLogin(ip, r.UserAgent(), true, sess.ID)
	a.observeLogin(true)
	a.audit(sess.ID, "login", "sudo login", ip)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"csrf_token": sess.CSRFToken,
	})
}

func (a *API) setSessionCookies(w http.ResponseWriter, sess *session.Session, token string) {
	secure := a.Config != nil && a.Config.SecureCookies
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	// 前端需要读取后回传到请求头
	http.SetCookie(w, &http.Cookie{
		Name:     session.CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{session.CookieName, session.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", SameSite: http.SameSiteLaxMode, MaxAge: -1})
	}
}

// LogoutHandler 清除凭据、撤销会话并执行 sudo -k
func (a *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	a.Sudo.Invalidate(r.Context())
	a.Sessions.Revoke(sess.ID)
	clearSessionCookies(w)
	a.audit(sess.ID, "logout", "", middleware.ClientIP(r))

	writeSuccess(w)
}

// SessionHandler 当前会话状态，不含密码
// @Summary 会话状态
// @Tags Auth
// @Produce json
// @Success 200 {object} types.SessionInfo
// @Router /api/session [get]
func (a *API) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sess, err := a.Sessions.Lookup(middleware.TokenFromRequest(r))
	if err != nil || !sess.Credential.IsAuthenticated() {
		writeJSON(w, http.StatusOK, types.SessionInfo{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, types.SessionInfo{
		Authenticated: true,
		LoginTime:     sess.Credential.LoginTime(),
		ExpiresAt:     sess.ExpiresAt,
		CSRFToken:     sess.CSRFToken,
	})
}

// SessionsHandler 列出活跃会话
func (a *API) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": a.Sessions.List(sess.ID),
	})
}

// RevokeSessionHandler 撤销指定会话
func (a *API) RevokeSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if !a.Sessions.Revoke(req.SessionID) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if req.SessionID == sess.ID {
		clearSessionCookies(w)
	}
	a.audit(sess.ID, "revoke_session", req.SessionID, middleware.ClientIP(r))
	writeSuccess(w)
}

// LoginHistoryHandler 登录历史
func (a *API) LoginHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := utils.ParseInt(r.URL.Query().Get("limit"), 20, 1, 50)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": a.Sessions.LoginHistory(limit),
	})
}

// LogsHandler 操作日志，最新的在前
func (a *API) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := utils.ParseInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	entries := []types.OperationLog{}
	if a.Audit != nil {
		entries = a.Audit.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    entries,
	})
}

// RebootHandler 重启主机
// @Summary 重启主机
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "sudo_required"
// @Router /api/reboot [post]
func (a *API) RebootHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, secret, ok := requireSecret(w, r, "Sudo password required to reboot.")
	if !ok {
		return
	}
	if a.Services == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "systemd integration disabled")
		return
	}

	a.audit(sess.ID, "reboot", "", middleware.ClientIP(r))
	if err := a.Services.Reboot(r.Context(), secret); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w)
}

func (a *API) observeLogin(success bool) {
	if a.Metrics != nil {
		a.Metrics.ObserveLogin(success)
	}
}

func (a *API) audit(sessionID, action, details, ip string) {
	if a.Audit != nil {
		a.Audit.Record(sessionID, action, details, ip)
	}
}
