// Package systemd 提供Systemd服务管理功能
package systemd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/allowlist"
	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidUnit   = errors.New("invalid unit name")
	ErrEmptyUnitFile = errors.New("unit file content required")
)

const (
	actionTimeout  = 30 * time.Second
	defaultLogRows = 100
	maxLogRows     = 2000

	unitDir = "/etc/systemd/system"
	teePath = "/usr/bin/tee"
	rmPath  = "/bin/rm"
)

var validActions = map[string]bool{
	"start":   true,
	"stop":    true,
	"restart": true,
	"reload":  true,
	"enable":  true,
	"disable": true,
}

// Manager 服务查询走 dbus，变更操作走 sudo systemctl
type Manager struct {
	sudo *credential.Sudo
	mu   sync.Mutex
}

// NewManager 创建服务管理器
func NewManager(sudo *credential.Sudo) *Manager {
	return &Manager{sudo: sudo}
}

// ListServices 列出所有Systemd服务
func (m *Manager) ListServices(ctx context.Context) ([]types.ServiceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Use NewSystemConnectionContext to force using the system bus (and respect DBUS_SYSTEM_BUS_ADDRESS)
	// instead of falling back to the private socket which might not be mounted.
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd dbus: %w", err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	fileStates := make(map[string]string)
	if files, err := conn.ListUnitFilesByPatternsContext(ctx, nil, []string{"*.service"}); err == nil {
		for _, f := range files {
			fileStates[filepath.Base(f.Path)] = f.Type
		}
	} else {
		log.Debug().Err(err).Msg("list unit files failed")
	}

	services := make([]types.ServiceInfo, 0, len(units))
	for _, unit := range units {
		if !strings.HasSuffix(unit.Name, ".service") {
			continue
		}
		services = append(services, types.ServiceInfo{
			Unit:          unit.Name,
			Load:          unit.LoadState,
			Active:        unit.ActiveState,
			Sub:           unit.SubState,
			Description:   unit.Description,
			UnitFileState: fileStates[unit.Name],
		})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Unit < services[j].Unit })
	return services, nil
}

func systemctlPath() string {
	cmd, _ := allowlist.Resolve("systemctl")
	return cmd.Path
}

func journalctlPath() string {
	cmd, _ := allowlist.Resolve("journalctl")
	return cmd.Path
}

func checkUnit(unit string) error {
	if !allowlist.ValidArgument(unit) {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return nil
}

// ServiceAction 执行服务操作，需要会话内的 sudo 凭据
func (m *Manager) ServiceAction(ctx context.Context, unit, action, secret string) error {
	if !validActions[action] {
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	if err := checkUnit(unit); err != nil {
		return err
	}
	if secret == "" {
		return credential.ErrPrivilegeRequired
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	if _, err := m.sudo.Run(ctx, secret, "", systemctlPath(), action, unit); err != nil {
		return fmt.Errorf("failed to %s service %s: %w", action, unit, err)
	}
	log.Info().Str("unit", unit).Str("action", action).Msg("service action")
	return nil
}

// Reboot 重启主机
func (m *Manager) Reboot(ctx context.Context, secret string) error {
	if secret == "" {
		return credential.ErrPrivilegeRequired
	}
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	if _, err := m.sudo.Run(ctx, secret, "", systemctlPath(), "reboot"); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	log.Warn().Msg("reboot requested")
	return nil
}

// JournalLogs 获取服务日志；有凭据时经 sudo 读取
func (m *Manager) JournalLogs(ctx context.Context, unit string, lines int, secret string) (string, error) {
	if err := checkUnit(unit); err != nil {
		return "", err
	}
	if lines <= 0 {
		lines = defaultLogRows
	}
	if lines > maxLogRows {
		lines = maxLogRows
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	args := []string{"-u", unit, "-n", strconv.Itoa(lines), "--no-pager"}
	var (
		res credential.Result
		err error
	)
	if secret != "" {
		res, err = m.sudo.Run(ctx, secret, "", append([]string{journalctlPath()}, args...)...)
	} else {
		res, err = m.sudo.Runner.Run(ctx, "", journalctlPath(), args...)
		if err == nil && res.Code != 0 {
			err = fmt.Errorf("journalctl exited with status %d: %s", res.Code, strings.TrimSpace(string(res.Stderr)))
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get service logs: %w", err)
	}
	return string(res.Stdout), nil
}

// serviceUnit 补全 .service 后缀并校验名称
func serviceUnit(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ".service") {
		name += ".service"
	}
	if name == ".service" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, name)
	}
	if err := checkUnit(name); err != nil {
		return "", err
	}
	return name, nil
}

// CreateService 写入单元文件后启用并启动服务
func (m *Manager) CreateService(ctx context.Context, name, content, secret string) (string, error) {
	unit, err := serviceUnit(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyUnitFile
	}
	if secret == "" {
		return "", credential.ErrPrivilegeRequired
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	path := unitDir + "/" + unit
	if _, err := m.sudo.Run(ctx, secret, content+"\n", teePath, path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, action := range []string{"enable", "start"} {
		if _, err := m.sudo.Run(ctx, secret, "", systemctlPath(), action, unit); err != nil {
			return "", fmt.Errorf("failed to %s service %s: %w", action, unit, err)
		}
	}
	log.Info().Str("unit", unit).Msg("service created")
	return unit, nil
}

// DeleteService 停止并禁用服务，删除单元文件后重载
func (m *Manager) DeleteService(ctx context.Context, unit, secret string) error {
	if err := checkUnit(unit); err != nil {
		return err
	}
	if strings.HasPrefix(unit, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	if secret == "" {
		return credential.ErrPrivilegeRequired
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	steps := [][]string{
		{systemctlPath(), "stop", unit},
		{systemctlPath(), "disable", unit},
		{rmPath, "-f", unitDir + "/" + unit},
		{systemctlPath(), "daemon-reload"},
	}
	for _, argv := range steps {
		if _, err := m.sudo.Run(ctx, secret, "", argv...); err != nil {
			return fmt.Errorf("failed to delete service %s: %w", unit, err)
		}
	}
	log.Info().Str("unit", unit).Msg("service deleted")
	return nil
}
