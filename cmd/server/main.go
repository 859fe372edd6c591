// Package main 提供 hostdeck 服务器的主入口点
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/api/handlers"
	"github.com/AnalyseDeCircuit/hostdeck/internal/collectors"
	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/internal/execsession"
	"github.com/AnalyseDeCircuit/hostdeck/internal/executor"
	"github.com/AnalyseDeCircuit/hostdeck/internal/gpu"
	"github.com/AnalyseDeCircuit/hostdeck/internal/logs"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/monitoring"
	"github.com/AnalyseDeCircuit/hostdeck/internal/processes"
	"github.com/AnalyseDeCircuit/hostdeck/internal/prometheus"
	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
	"github.com/AnalyseDeCircuit/hostdeck/internal/settings"
	"github.com/AnalyseDeCircuit/hostdeck/internal/systemd"
	"github.com/AnalyseDeCircuit/hostdeck/internal/websocket"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	_ "github.com/AnalyseDeCircuit/hostdeck/docs" // swagger docs
)

// @title hostdeck API
// @version 1.0
// @description Linux 主机面板 API
// @description
// @description 特性:
// @description - sudo 密码登录，凭据仅保存在服务端会话
// @description - 白名单控制台命令，流式输出
// @description - 后台执行任意可执行文件，断线重连回放
// @description - Systemd服务与进程管理
// @description - 实时系统监控推送 (WebSocket)
// @description - Prometheus指标导出

// @contact.name API Support
// @contact.url https://github.com/AnalyseDeCircuit/hostdeck

// @host localhost:8000
// @BasePath /

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name hostdeck_session
// @description 会话令牌 (HttpOnly Cookie)

// @tag.name Auth
// @tag.description sudo 登录与会话

// @tag.name Exec
// @tag.description 后台执行

// @tag.name Monitoring
// @tag.description 系统监控与服务管理

// @tag.name Process
// @tag.description 进程管理

// @tag.name Files
// @tag.description 文件浏览

const (
	shutdownTimeout     = 10 * time.Second
	limiterSweepEvery   = 5 * time.Minute
	limiterIdleAfter    = 15 * time.Minute
	loginAttemptsPerSec = 1
	loginBurst          = 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)
	log.Info().Str("port", cfg.Port).Msg("starting hostdeck server")

	if cfg.HostFS != "" {
		log.Info().Str("hostfs", cfg.HostFS).Msg("using host filesystem")
		// gopsutil 通过环境变量定位宿主机的 /proc 与 /sys
		_ = os.Setenv("HOST_PROC", cfg.HostProc)
		_ = os.Setenv("HOST_SYS", cfg.HostSys)
	} else {
		log.Info().Msg("running in bare metal mode (no HostFS)")
	}

	key, err := session.ResolveKey(cfg.JWTSecret, cfg.DevMode)
	if err != nil {
		log.Fatal().Err(err).Msg("session signing key")
	}

	sudo := credential.NewSudo(nil)

	sessions := session.NewManager(key, cfg.SessionTTL)
	if err := sessions.StartCleanupRoutine(); err != nil {
		log.Fatal().Err(err).Msg("session cleanup routine")
	}

	hub := websocket.NewHub()
	hub.AllowedOrigins = cfg.AllowedOrigins

	registry := execsession.NewRegistry(hub, execsession.Options{
		BufferLines: cfg.ExecBufferLines,
		Retention:   cfg.ExecRetention,
		MaxSessions: cfg.ExecMaxSessions,
	})
	if err := registry.StartReaper(); err != nil {
		log.Fatal().Err(err).Msg("exec reaper")
	}

	exec := executor.New(nil)

	var gpuReader *gpu.Reader
	if cfg.EnableGPU {
		gpuReader = gpu.NewReader()
	}
	aggregator := collectors.NewAggregator(collectors.Options{
		EnableGPU: cfg.EnableGPU,
		GPUReader: gpuReader,
	})

	// 未启用时必须保持接口值为 nil，而不是带类型的 nil 指针
	var (
		lister   monitoring.ServiceLister
		services handlers.ServiceController
	)
	if cfg.EnableSystemd {
		mgr := systemd.NewManager(sudo)
		lister, services = mgr, mgr
	} else {
		log.Info().Msg("systemd integration disabled")
	}
	monitor := monitoring.NewMonitoringService(lister, aggregator)

	favorites := settings.NewStore(cfg.DataDir)
	favorites.Load()
	monitor.FavoriteServices = favorites.FavoriteServices
	favorites.OnChange(func(types.Favorites) { monitor.InvalidateServices() })

	audit := logs.New(cfg.DataDir)
	if err := audit.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load operation log")
	}

	metrics := prometheus.New(prometheus.Sources{
		ExecCounts: registry.Counts,
		WSClients:  hub.ClientCount,
		Sessions:   sessions.Count,
	})
	registry.Observe = metrics.ObserveLaunch
	exec.Observe = metrics.ObserveConsole

	loginLimiter := middleware.NewRateLimiter(rate.Limit(loginAttemptsPerSec), loginBurst)

	router := handlers.SetupRouter(handlers.Deps{
		Config:       cfg,
		Sudo:         sudo,
		Sessions:     sessions,
		Hub:          hub,
		Registry:     registry,
		Executor:     exec,
		Services:     services,
		Monitor:      monitor,
		Processes:    processes.NewManager(sudo),
		Favorites:    favorites,
		Audit:        audit,
		Metrics:      metrics,
		LoginLimiter: loginLimiter,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go monitoring.NewPump(monitor, hub, cfg.PollInterval).Run(ctx)
	go sweepLimiter(ctx, loginLimiter)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 响应体较小，长连接走 WebSocket
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify failed")
	} else if ok {
		log.Debug().Msg("notified systemd readiness")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stop()
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("exec registry shutdown")
	}
	sessions.Stop()
	if gpuReader != nil {
		gpuReader.Shutdown()
	}

	log.Info().Msg("server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// sweepLimiter 定期清理空闲的登录限流条目
func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(limiterIdleAfter); n > 0 {
				log.Debug().Int("removed", n).Msg("login limiter sweep")
			}
		}
	}
}
