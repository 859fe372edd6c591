// Package handlers 提供HTTP路由处理器
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/internal/execsession"
	"github.com/AnalyseDeCircuit/hostdeck/internal/executor"
	"github.com/AnalyseDeCircuit/hostdeck/internal/logs"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/monitoring"
	"github.com/AnalyseDeCircuit/hostdeck/internal/prometheus"
	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
	"github.com/AnalyseDeCircuit/hostdeck/internal/settings"
	"github.com/AnalyseDeCircuit/hostdeck/internal/websocket"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// ServiceController 服务变更操作，*systemd.Manager 满足该接口
type ServiceController interface {
	ServiceAction(ctx context.Context, unit, action, secret string) error
	Reboot(ctx context.Context, secret string) error
	JournalLogs(ctx context.Context, unit string, lines int, secret string) (string, error)
	CreateService(ctx context.Context, name, content, secret string) (string, error)
	DeleteService(ctx context.Context, unit, secret string) error
}

// ProcessManager 进程查询与终止，*processes.Manager 满足该接口
type ProcessManager interface {
	List(ctx context.Context) ([]types.ProcessInfo, error)
	Info(ctx context.Context, pid int32) (types.ProcessInfo, error)
	Kill(ctx context.Context, pid int, secret string) error
}

// Deps 处理器依赖，由组合根构造
type Deps struct {
	Config   *config.Config
	Sudo     *credential.Sudo
	Sessions *session.Manager
	Hub      *websocket.Hub
	Registry *execsession.Registry
	Executor *executor.Executor
	// Services 未启用 systemd 时为 nil
	Services     ServiceController
	Monitor      *monitoring.MonitoringService
	Processes    ProcessManager
	Favorites    *settings.Store
	Audit        *logs.AuditLog
	Metrics      *prometheus.Metrics
	LoginLimiter *middleware.RateLimiter
}

// API 持有依赖的处理器集合
type API struct {
	Deps
}

// Router 封装HTTP路由器
type Router struct {
	mux *http.ServeMux
	api *API
}

// NewRouter 创建新的路由器
func NewRouter(d Deps) *Router {
	return &Router{
		mux: http.NewServeMux(),
		api: &API{Deps: d},
	}
}

// SetupRouter 设置所有路由
func SetupRouter(d Deps) *Router {
	router := NewRouter(d)
	a := router.api

	// 认证路由
	router.mux.HandleFunc("/api/sudo/login", a.SudoLoginHandler)
	router.mux.HandleFunc("/api/logout", a.LogoutHandler)
	router.mux.HandleFunc("/api/session", a.SessionHandler)
	router.mux.HandleFunc("/api/sessions", a.SessionsHandler)
	router.mux.HandleFunc("/api/sessions/revoke", a.RevokeSessionHandler)
	router.mux.HandleFunc("/api/login-history", a.LoginHistoryHandler)
	router.mux.HandleFunc("/api/logs", a.LogsHandler)
	router.mux.HandleFunc("/api/reboot", a.RebootHandler)

	// 后台执行
	router.mux.HandleFunc("/api/execute", a.ExecuteHandler)
	router.mux.HandleFunc("/api/execute/kill", a.ExecuteKillHandler)
	router.mux.HandleFunc("/api/execute/status", a.ExecuteStatusHandler)
	router.mux.HandleFunc("/api/execute/list", a.ExecuteListHandler)

	// 监控数据路由
	router.mux.HandleFunc("/api/system/metrics", a.SystemMetricsHandler)
	router.mux.HandleFunc("/api/system/info", a.SystemInfoHandler)
	router.mux.HandleFunc("/api/network/info", a.NetworkInfoHandler)
	router.mux.HandleFunc("/api/devices", a.DevicesHandler)
	router.mux.HandleFunc("/api/systemd/services", a.SystemdServicesHandler)
	router.mux.HandleFunc("/api/systemd/action", a.SystemdActionHandler)
	router.mux.HandleFunc("/api/systemd/journal", a.SystemdJournalHandler)
	router.mux.HandleFunc("/api/systemd/service", a.DeleteServiceHandler)
	router.mux.HandleFunc("/api/create_service", a.CreateServiceHandler)
	router.mux.HandleFunc("/api/health", a.HealthCheckHandler)
	router.mux.HandleFunc("/api/metrics", a.PrometheusMetricsHandler)

	// 进程
	router.mux.HandleFunc("/api/processes", a.ProcessListHandler)
	router.mux.HandleFunc("/api/process/info", a.ProcessInfoHandler)
	router.mux.HandleFunc("/api/process/kill", a.ProcessKillHandler)

	// 文件与收藏
	router.mux.HandleFunc("/api/files", a.FilesHandler)
	router.mux.HandleFunc("/api/favorites/services", a.FavoriteServicesHandler)
	router.mux.HandleFunc("/api/favorites/processes", a.FavoriteProcessesHandler)

	// WebSocket路由
	a.registerSocketHandlers()
	router.mux.HandleFunc("/ws", a.WebSocketHandler)

	router.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"connect-src 'self' wss: ws:; "+
				"frame-ancestors 'none'; "+
				"base-uri 'self'; "+
				"form-action 'self'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// 无需登录即可访问
var publicPaths = map[string]bool{
	"/api/sudo/login": true,
	"/api/session":    true,
	"/api/health":     true,
	"/api/metrics":    true,
}

func (a *API) wrapWithAPIAuthorization(next http.Handler) http.Handler {
	authed := middleware.AuthMiddleware(a.Sessions, func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
	})(middleware.RequireCSRF(next))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Prevent large request bodies from exhausting memory/CPU.
		if strings.HasPrefix(path, "/api/") {
			const maxAPIRequestBodyBytes int64 = 2 << 20 // 2 MiB
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > maxAPIRequestBodyBytes {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				if r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, maxAPIRequestBodyBytes)
				}
			}
		}

		if (strings.HasPrefix(path, "/api/") && !publicPaths[path]) || path == "/ws" {
			authed.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler 返回包装了授权中间件的 HTTP Handler
func (r *Router) Handler() http.Handler {
	return middleware.AccessLog(securityHeaders(r.api.wrapWithAPIAuthorization(r.mux)))
}
