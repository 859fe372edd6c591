package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/execsession"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
)

// ExecuteHandler 在后台启动可执行文件
// @Summary 后台执行
// @Description 工作目录为文件所在目录，输出通过 WebSocket join_exec 订阅
// @Tags Exec
// @Accept json
// @Produce json
// @Param body body types.ExecRequest true "路径与参数"
// @Success 200 {object} map[string]interface{} "process_id"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/execute [post]
func (a *API) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req types.ExecRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := a.Registry.Launch(req.Path, req.Params)
	if err != nil {
		writeJSONError(w, execStatusCode(err), err.Error())
		return
	}
	a.audit(sess.ID, "exec_launch", strings.TrimSpace(req.Path), middleware.ClientIP(r))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"process_id": id,
	})
}

func execStatusCode(err error) int {
	switch {
	case errors.Is(err, execsession.ErrFileNotFound), errors.Is(err, execsession.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, execsession.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, execsession.ErrSpawn):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ExecuteKillHandler 终止后台执行
// @Summary 终止后台执行
// @Tags Exec
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "process_not_found"
// @Router /api/execute/kill [post]
func (a *API) ExecuteKillHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req struct {
		ProcessID string `json:"process_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProcessID == "" {
		writeJSONError(w, http.StatusBadRequest, "process_id required")
		return
	}

	res, err := a.Registry.Terminate(r.Context(), req.ProcessID)
	if err != nil {
		if errors.Is(err, execsession.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, execsession.ErrNotFound.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.AlreadyExited {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"already_exited": true,
			"return_code":    res.ReturnCode,
		})
		return
	}

	a.audit(sess.ID, "exec_kill", req.ProcessID, middleware.ClientIP(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"return_code": res.ReturnCode,
	})
}

// ExecuteStatusHandler 后台执行状态
// @Summary 后台执行状态
// @Tags Exec
// @Produce json
// @Param process_id query string true "执行 ID"
// @Success 200 {object} types.ExecStatus
// @Router /api/execute/status [get]
func (a *API) ExecuteStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := r.URL.Query().Get("process_id")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "process_id required")
		return
	}
	st, err := a.Registry.Status(id)
	if err != nil {
		writeJSONError(w, execStatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		types.ExecStatus
	}{true, st})
}

// ExecuteListHandler 所有后台执行
func (a *API) ExecuteListHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processes": a.Registry.List(),
	})
}
