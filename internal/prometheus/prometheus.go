// Package prometheus 提供 Prometheus 指标导出
package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostdeck"

// Sources 仪表盘读数来源，字段可为空
type Sources struct {
	ExecCounts func() (running, exited int)
	WSClients  func() int
	Sessions   func() int
}

// Metrics 进程内指标注册表
type Metrics struct {
	registry *prom.Registry

	consoleCommands *prom.CounterVec
	execLaunches    *prom.CounterVec
	logins          *prom.CounterVec
}

// New 创建独立注册表，不使用全局 DefaultRegisterer
func New(src Sources) *Metrics {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		consoleCommands: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "console_commands_total",
			Help:      "Console commands by result.",
		}, []string{"result"}),
		execLaunches: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "exec_launches_total",
			Help:      "Background executable launches by result.",
		}, []string{"result"}),
		logins: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sudo_logins_total",
			Help:      "Sudo login attempts by result.",
		}, []string{"result"}),
	}

	if src.ExecCounts != nil {
		factory.NewGaugeFunc(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "exec_sessions",
			Help:        "Tracked background executions.",
			ConstLabels: prom.Labels{"state": "running"},
		}, func() float64 {
			running, _ := src.ExecCounts()
			return float64(running)
		})
		factory.NewGaugeFunc(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "exec_sessions",
			Help:        "Tracked background executions.",
			ConstLabels: prom.Labels{"state": "exited"},
		}, func() float64 {
			_, exited := src.ExecCounts()
			return float64(exited)
		})
	}
	if src.WSClients != nil {
		factory.NewGaugeFunc(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}, func() float64 { return float64(src.WSClients()) })
	}
	if src.Sessions != nil {
		factory.NewGaugeFunc(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Active login sessions.",
		}, func() float64 { return float64(src.Sessions()) })
	}
	return m
}

// ObserveConsole 记录一次控制台命令结果
func (m *Metrics) ObserveConsole(result string) {
	m.consoleCommands.WithLabelValues(result).Inc()
}

// ObserveLaunch 记录一次后台启动结果
func (m *Metrics) ObserveLaunch(result string) {
	m.execLaunches.WithLabelValues(result).Inc()
}

// ObserveLogin 记录一次登录结果
func (m *Metrics) ObserveLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

// Handler 返回 /api/metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
