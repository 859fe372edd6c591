package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/allowlist"
	"github.com/AnalyseDeCircuit/hostdeck/internal/execsession"
	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
	"github.com/AnalyseDeCircuit/hostdeck/internal/monitoring"
	"github.com/AnalyseDeCircuit/hostdeck/internal/websocket"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
)

// WebSocket 事件名
const (
	EventConsoleOutput = "console_output"
	EventSudoRequired  = "sudo_required"

	consoleGreeting = "[SUCCESS] Connected to console. Type 'help' for available commands."
)

// WebSocketHandler 升级为 WebSocket，会话已由认证包装器校验
func (a *API) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	a.Hub.Serve(w, r, sess)
}

func (a *API) registerSocketHandlers() {
	a.Hub.Handle("join_console", a.onJoinConsole)
	a.Hub.Handle("console_help", a.onConsoleHelp)
	a.Hub.Handle("console_command", a.onConsoleCommand)
	a.Hub.Handle("join_exec", a.onJoinExec)
	a.Hub.Handle("leave_exec", a.onLeaveExec)
	a.Hub.Handle("service_action", a.onServiceAction)

	// 新连接立即收到一次服务列表
	a.Hub.OnConnect(func(c *websocket.Client) {
		go func() {
			services, err := a.Monitor.GetServices(context.Background())
			if err != nil {
				return
			}
			a.Hub.Emit(c, monitoring.EventUpdateServices, map[string]interface{}{"services": services})
		}()
	})
}

// authenticated 连接所属会话仍持有有效凭据
func authenticated(c *websocket.Client) bool {
	s := c.Session()
	return s != nil && s.Credential != nil && s.Credential.IsAuthenticated()
}

func (a *API) consoleOutput(c *websocket.Client, line string) {
	a.Hub.Emit(c, EventConsoleOutput, types.ConsoleOutput{Output: line})
}

func (a *API) onJoinConsole(c *websocket.Client, _ json.RawMessage) {
	if !authenticated(c) {
		return
	}
	a.consoleOutput(c, consoleGreeting)
}

func (a *API) onConsoleHelp(c *websocket.Client, _ json.RawMessage) {
	if !authenticated(c) {
		return
	}
	var b strings.Builder
	b.WriteString("[INFO] Available commands:\n")
	for _, name := range allowlist.Names() {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\n[WARNING] Note: All commands are executed with restricted privileges.")
	a.consoleOutput(c, b.String())
}

func (a *API) onConsoleCommand(c *websocket.Client, data json.RawMessage) {
	if !authenticated(c) {
		a.consoleOutput(c, "[ERROR] Not authenticated")
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		return
	}
	secret, _ := c.Session().Credential.PeekSecret()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-c.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	go func() {
		defer cancel()
		a.Executor.Run(ctx, req.Command, func(line string) { a.consoleOutput(c, line) }, secret)
	}()
}

type execRoomRequest struct {
	ProcessID string `json:"process_id"`
}

func (a *API) onJoinExec(c *websocket.Client, data json.RawMessage) {
	if !authenticated(c) {
		return
	}
	var req execRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ProcessID == "" {
		a.Hub.Emit(c, execsession.EventError, types.ExecError{Error: "process_id required"})
		return
	}
	_ = a.Registry.Join(req.ProcessID, c)
}

func (a *API) onLeaveExec(c *websocket.Client, data json.RawMessage) {
	var req execRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ProcessID == "" {
		return
	}
	a.Registry.Leave(req.ProcessID, c)
}

func (a *API) onServiceAction(c *websocket.Client, data json.RawMessage) {
	if !authenticated(c) {
		a.consoleOutput(c, "[ERROR] Not authenticated")
		return
	}
	var req struct {
		Service string `json:"service"`
		Action  string `json:"action"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Service == "" || req.Action == "" {
		return
	}
	secret, ok := c.Session().Credential.PeekSecret()
	if !ok {
		a.Hub.Emit(c, EventSudoRequired, map[string]string{"message": "Sudo password required to control services."})
		a.consoleOutput(c, "[ERROR] Sudo password required")
		return
	}
	if a.Services == nil {
		a.consoleOutput(c, "[ERROR] systemd integration disabled")
		return
	}

	go func() {
		ctx := context.Background()
		if err := a.Services.ServiceAction(ctx, req.Service, req.Action, secret); err != nil {
			log.Warn().Err(err).Str("unit", req.Service).Str("action", req.Action).Msg("ws service action failed")
			a.consoleOutput(c, "[ERROR] "+err.Error())
			return
		}
		a.audit(c.Session().ID, "systemd_action", req.Action+" "+req.Service, middleware.RemoteHost(c.RemoteAddr()))
		a.Monitor.InvalidateServices()
		services, err := a.Monitor.GetServices(ctx)
		if err != nil {
			return
		}
		a.Hub.BroadcastAll(monitoring.EventUpdateServices, map[string]interface{}{"services": services})
	}()
}
