package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/monitoring"
	"github.com/AnalyseDeCircuit/hostdeck/internal/system"
	"github.com/AnalyseDeCircuit/hostdeck/internal/systemd"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/rs/zerolog/log"
)

// SystemMetricsHandler 主机指标
// @Summary 获取系统指标
// @Description CPU、内存、磁盘、网络、温度、GPU
// @Tags Monitoring
// @Produce json
// @Security CookieAuth
// @Success 200 {object} types.Metrics
// @Failure 401 {object} map[string]interface{} "未授权"
// @Router /api/system/metrics [get]
func (a *API) SystemMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.Monitor.GetSystemMetrics(r.Context()))
}

// SystemInfoHandler 主机名、系统版本、内核等静态信息
func (a *API) SystemInfoHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, system.Info(r.Context()))
}

// DevicesHandler 网络接口列表
func (a *API) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	devices, err := system.Devices(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// NetworkInfoHandler 处理网络信息请求
func (a *API) NetworkInfoHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	m := a.Monitor.GetSystemMetrics(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"network":      m.Network,
		"has_internet": m.HasInternet,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// SystemdServicesHandler 服务列表
// @Summary 获取服务列表
// @Tags Monitoring
// @Produce json
// @Security CookieAuth
// @Success 200 {object} object{services=[]types.ServiceInfo} "服务列表"
// @Failure 401 {object} map[string]interface{} "未授权"
// @Router /api/systemd/services [get]
func (a *API) SystemdServicesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	services, err := a.Monitor.GetServices(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to get Systemd services: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"services": services,
		"enabled":  a.Monitor.SystemdEnabled(),
	})
}

// SystemdActionHandler 处理 Systemd 服务操作请求
// @Summary 服务操作
// @Description start|stop|restart|reload|enable|disable，需要 sudo 凭据
// @Tags Monitoring
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "sudo_required"
// @Router /api/systemd/action [post]
func (a *API) SystemdActionHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Unit    string `json:"unit"`
		Service string `json:"service"`
		Action  string `json:"action"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Unit == "" {
		req.Unit = req.Service
	}
	if req.Unit == "" || req.Action == "" {
		writeJSONError(w, http.StatusBadRequest, "unit and action required")
		return
	}

	sess, secret, ok := requireSecret(w, r, "Sudo password required.")
	if !ok {
		return
	}
	if a.Services == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "systemd integration disabled")
		return
	}

	if err := a.Services.ServiceAction(r.Context(), req.Unit, req.Action, secret); err != nil {
		switch {
		case errors.Is(err, systemd.ErrInvalidAction), errors.Is(err, systemd.ErrInvalidUnit):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, credential.ErrPrivilegeRequired):
			writeSudoRequired(w, "Sudo password required.")
		default:
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// 记录操作日志
	a.audit(sess.ID, "systemd_action", fmt.Sprintf("%s %s", req.Action, req.Unit), middleware.ClientIP(r))
	a.pushServices(r)

	writeSuccess(w)
}

// CreateServiceHandler 写入单元文件并启用、启动服务
// @Summary 创建服务
// @Tags Monitoring
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "sudo_required"
// @Router /api/create_service [post]
func (a *API) CreateServiceHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Name    string `json:"serviceName"`
		Content string `json:"serviceContent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing service name or content")
		return
	}

	sess, secret, ok := requireSecret(w, r, "Sudo password required to create service.")
	if !ok {
		return
	}
	if a.Services == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "systemd integration disabled")
		return
	}

	unit, err := a.Services.CreateService(r.Context(), req.Name, req.Content, secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	a.audit(sess.ID, "systemd_create", unit, middleware.ClientIP(r))
	a.pushServices(r)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"unit":    unit,
	})
}

// DeleteServiceHandler 停止、禁用并删除服务单元文件
// @Summary 删除服务
// @Tags Monitoring
// @Produce json
// @Param unit query string true "服务单元名"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "sudo_required"
// @Router /api/systemd/service [delete]
func (a *API) DeleteServiceHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		writeJSONError(w, http.StatusBadRequest, "unit required")
		return
	}

	sess, secret, ok := requireSecret(w, r, "Sudo password required to delete service.")
	if !ok {
		return
	}
	if a.Services == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "systemd integration disabled")
		return
	}

	if err := a.Services.DeleteService(r.Context(), unit, secret); err != nil {
		writeServiceError(w, err)
		return
	}

	a.audit(sess.ID, "systemd_delete", unit, middleware.ClientIP(r))
	a.pushServices(r)

	writeSuccess(w)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, systemd.ErrInvalidUnit), errors.Is(err, systemd.ErrEmptyUnitFile):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrPrivilegeRequired):
		writeSudoRequired(w, "Sudo password required.")
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// pushServices 服务变更后立即推送最新列表
func (a *API) pushServices(r *http.Request) {
	a.Monitor.InvalidateServices()
	services, err := a.Monitor.GetServices(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("refresh services after action failed")
		return
	}
	if a.Hub != nil {
		a.Hub.BroadcastAll(monitoring.EventUpdateServices, map[string]interface{}{"services": services})
	}
}

// SystemdJournalHandler 服务日志
func (a *API) SystemdJournalHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if a.Services == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "systemd integration disabled")
		return
	}
	unit := r.URL.Query().Get("unit")
	lines := utils.ParseInt(r.URL.Query().Get("lines"), 100, 1, 2000)
	secret, _ := sess.Credential.PeekSecret()

	out, err := a.Services.JournalLogs(r.Context(), unit, lines, secret)
	if err != nil {
		if errors.Is(err, systemd.ErrInvalidUnit) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"unit":    unit,
		"logs":    out,
	})
}

// HealthCheckHandler 健康检查
// @Summary 健康检查
// @Description 返回服务健康状态，用于容器编排健康探针
// @Tags Monitoring
// @Produce json
// @Success 200 {object} map[string]interface{} "健康状态"
// @Router /api/health [get]
func (a *API) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	running, exited := a.Registry.Counts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"systemd":         a.Monitor.SystemdEnabled(),
		"exec_running":    running,
		"exec_exited":     exited,
		"ws_clients":      a.Hub.ClientCount(),
		"active_sessions": a.Sessions.Count(),
	})
}

// PrometheusMetricsHandler Prometheus指标导出
// @Summary Prometheus指标
// @Tags Monitoring
// @Produce plain
// @Success 200 {string} string "Prometheus指标文本"
// @Router /api/metrics [get]
func (a *API) PrometheusMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method not allowed"))
		return
	}
	if a.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	a.Metrics.Handler().ServeHTTP(w, r)
}
