package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/processes"
)

// ProcessListHandler 进程列表，按 CPU 和内存降序
// @Summary 进程列表
// @Tags Process
// @Produce json
// @Success 200 {object} object{processes=[]types.ProcessInfo}
// @Router /api/processes [get]
func (a *API) ProcessListHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	list, err := a.Processes.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if a.Favorites != nil {
		fav := map[string]bool{}
		for _, name := range a.Favorites.Get().Processes {
			fav[name] = true
		}
		for i := range list {
			list[i].Favorite = fav[list[i].Name]
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processes": list,
	})
}

// ProcessInfoHandler 单个进程详情
// GET /api/process/info?pid=1234
func (a *API) ProcessInfoHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pidStr := r.URL.Query().Get("pid")
	if pidStr == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing pid parameter")
		return
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid pid")
		return
	}

	info, err := a.Processes.Info(r.Context(), int32(pid))
	if err != nil {
		if errors.Is(err, processes.ErrProcessNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success":        false,
				"process_exists": false,
				"error":          "process_not_found",
			})
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"process": info,
	})
}

// ProcessKillHandler 终止指定 PID 的进程
// POST /api/process/kill {"pid":1234}
func (a *API) ProcessKillHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req struct {
		PID int `json:"pid"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	secret, _ := sess.Credential.PeekSecret()
	err := a.Processes.Kill(r.Context(), req.PID, secret)
	switch {
	case err == nil:
	case errors.Is(err, processes.ErrInvalidPID):
		writeJSONError(w, http.StatusBadRequest, "Invalid PID")
		return
	case errors.Is(err, processes.ErrProcessNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success":        false,
			"process_exists": false,
			"error":          "process_not_found",
		})
		return
	case errors.Is(err, processes.ErrSudoRequired):
		writeSudoRequired(w, "Sudo password required to kill this process.")
		return
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.audit(sess.ID, "kill_process", fmt.Sprintf("Killed pid %d", req.PID), middleware.ClientIP(r))
	writeSuccess(w)
}
