// Package processes 提供进程列表、详情与强制结束
package processes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

var (
	ErrInvalidPID      = errors.New("invalid pid")
	ErrProcessNotFound = errors.New("process not found")
	// ErrSudoRequired 无权限且会话没有 sudo 凭据
	ErrSudoRequired = credential.ErrPrivilegeRequired
)

const (
	maxCmdlineArgs = 40
	killPath       = "/bin/kill"
	killTimeout    = 10 * time.Second
)

type cacheEntry struct {
	proc     *process.Process
	name     string
	username string
	exe      string
	cmdline  []string
}

// Manager 进程管理
// 缓存 *process.Process 以便 CPUPercent 能基于上次采样计算
type Manager struct {
	sudo *credential.Sudo
	kill func(pid int, sig syscall.Signal) error

	mu    sync.Mutex
	cache map[int32]*cacheEntry
}

// NewManager 创建进程管理器
func NewManager(sudo *credential.Sudo) *Manager {
	return &Manager{
		sudo:  sudo,
		kill:  unix.Kill,
		cache: make(map[int32]*cacheEntry),
	}
}

func (m *Manager) entry(ctx context.Context, pid int32) (*cacheEntry, error) {
	if e, ok := m.cache[pid]; ok {
		return e, nil
	}
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}

	// Fetch static info once
	name, _ := proc.NameWithContext(ctx)
	username, _ := proc.UsernameWithContext(ctx)
	if username == "" {
		if uids, err := proc.UidsWithContext(ctx); err == nil && len(uids) > 0 {
			username = fmt.Sprintf("uid:%d", uids[0])
		} else {
			username = "unknown"
		}
	}
	exe, _ := proc.ExeWithContext(ctx)
	cmdline, _ := proc.CmdlineSliceWithContext(ctx)
	if len(cmdline) > maxCmdlineArgs {
		cmdline = cmdline[:maxCmdlineArgs]
	}

	e := &cacheEntry{proc: proc, name: name, username: username, exe: exe, cmdline: cmdline}
	m.cache[pid] = e
	return e, nil
}

func (m *Manager) info(ctx context.Context, e *cacheEntry, withConnections bool) types.ProcessInfo {
	cpuPercent, _ := e.proc.CPUPercentWithContext(ctx)
	numThreads, _ := e.proc.NumThreadsWithContext(ctx)
	cwd, _ := e.proc.CwdWithContext(ctx)
	status, _ := e.proc.StatusWithContext(ctx)

	var rss uint64
	if mi, err := e.proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		rss = mi.RSS
	}

	info := types.ProcessInfo{
		PID:        e.proc.Pid,
		Name:       e.name,
		Username:   e.username,
		Status:     strings.Join(status, ","),
		Exe:        e.exe,
		Cwd:        cwd,
		Cmdline:    e.cmdline,
		CPUPercent: utils.Round(cpuPercent / float64(runtime.NumCPU())),
		MemoryRSS:  rss,
		Memory:     utils.GetSize(rss),
		NumThreads: numThreads,
	}
	if info.Cmdline == nil {
		info.Cmdline = []string{}
	}
	if withConnections {
		if conns, err := e.proc.ConnectionsWithContext(ctx); err == nil {
			info.Connections = len(conns)
		}
	}
	return info
}

// List 列出所有进程，按 CPU 再按内存降序
func (m *Manager) List(ctx context.Context) ([]types.ProcessInfo, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int32]bool, len(pids))
	result := make([]types.ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e, err := m.entry(ctx, pid)
		if err != nil {
			continue
		}
		seen[pid] = true
		result = append(result, m.info(ctx, e, true))
	}

	// Cleanup dead processes
	for pid := range m.cache {
		if !seen[pid] {
			delete(m.cache, pid)
		}
	}

	sortProcesses(result)
	return result, nil
}

func sortProcesses(ps []types.ProcessInfo) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CPUPercent != ps[j].CPUPercent {
			return ps[i].CPUPercent > ps[j].CPUPercent
		}
		return ps[i].MemoryRSS > ps[j].MemoryRSS
	})
}

// Info 单个进程详情
func (m *Manager) Info(ctx context.Context, pid int32) (types.ProcessInfo, error) {
	if pid <= 0 {
		return types.ProcessInfo{}, ErrInvalidPID
	}
	ok, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !ok {
		return types.ProcessInfo{}, ErrProcessNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entry(ctx, pid)
	if err != nil {
		return types.ProcessInfo{}, ErrProcessNotFound
	}
	return m.info(ctx, e, true), nil
}

// Kill 发送 SIGKILL；无权限时有凭据则经 sudo kill -9
func (m *Manager) Kill(ctx context.Context, pid int, secret string) error {
	if pid <= 1 || pid == os.Getpid() {
		return ErrInvalidPID
	}

	err := m.kill(pid, syscall.SIGKILL)
	switch {
	case err == nil:
	case errors.Is(err, syscall.ESRCH):
		return ErrProcessNotFound
	case errors.Is(err, syscall.EPERM):
		if secret == "" {
			return ErrSudoRequired
		}
		ctx, cancel := context.WithTimeout(ctx, killTimeout)
		defer cancel()
		if _, err := m.sudo.Run(ctx, secret, "", killPath, "-9", strconv.Itoa(pid)); err != nil {
			return fmt.Errorf("kill %d: %w", pid, err)
		}
	default:
		return fmt.Errorf("kill %d: %w", pid, err)
	}

	log.Info().Int("pid", pid).Msg("process killed")
	return nil
}
