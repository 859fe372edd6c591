// Package execsession 管理从文件浏览器启动的后台进程及其输出回放
package execsession

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/websocket"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/anmitsu/go-shlex"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// 推送事件名
const (
	EventOutput  = "exec_output"
	EventExit    = "exec_exit"
	EventHistory = "exec_history"
	EventError   = "exec_error"
)

// 启动结果分类，用于指标
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

const (
	DefaultBufferLines = 5000
	DefaultRetention   = 30 * time.Minute
	DefaultMaxSessions = 256

	// KillGrace SIGTERM 之后等待多久再 SIGKILL
	KillGrace = 2 * time.Second
)

var (
	ErrNotFound        = errors.New("process_not_found")
	ErrPathRequired    = errors.New("path is required")
	ErrFileNotFound    = errors.New("file not found")
	ErrNotExecutable   = errors.New("file is not executable")
	ErrInvalidParams   = errors.New("invalid params")
	ErrTooManySessions = errors.New("too many running processes")
	ErrSpawn           = errors.New("failed to start process")
)

// Fanout 按房间推送，*websocket.Hub 满足该接口
type Fanout interface {
	Join(room string, s websocket.Subscriber)
	Leave(room string, s websocket.Subscriber)
	Broadcast(room, event string, data interface{})
	Emit(s websocket.Subscriber, event string, data interface{}) bool
	CloseRoom(room string)
}

// Options 注册表参数，零值字段使用默认值
type Options struct {
	BufferLines int
	Retention   time.Duration
	MaxSessions int
}

// TerminateResult Terminate 的结果
type TerminateResult struct {
	AlreadyExited bool `json:"already_exited"`
	ReturnCode    int  `json:"return_code"`
}

// Registry 后台执行注册表，由组合根持有
type Registry struct {
	fanout Fanout
	opts   Options

	mu       sync.RWMutex
	sessions map[string]*session

	cron *cron.Cron

	// Observe 每次 Launch 结束时回调结果分类，可为空
	Observe func(result string)
}

// NewRegistry 创建注册表
func NewRegistry(fanout Fanout, opts Options) *Registry {
	if opts.BufferLines <= 0 {
		opts.BufferLines = DefaultBufferLines
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	return &Registry{
		fanout:   fanout,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

func (r *Registry) observe(result string) {
	if r.Observe != nil {
		r.Observe(result)
	}
}

// Launch 校验并启动可执行文件，返回执行 ID
func (r *Registry) Launch(path, params string) (string, error) {
	id, err := r.launch(path, params)
	switch {
	case err == nil:
		r.observe(ResultOK)
	case errors.Is(err, ErrSpawn):
		r.observe(ResultFailed)
	default:
		r.observe(ResultRejected)
	}
	return id, err
}

func (r *Registry) launch(path, params string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, abs)
		}
		return "", fmt.Errorf("%w: %v", ErrNotExecutable, err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrNotExecutable, abs)
	}
	if err := unix.Access(abs, unix.X_OK); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotExecutable, abs)
	}
	args, err := shlex.Split(params, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.opts.MaxSessions && !r.evictOldestExitedLocked() {
		return "", ErrTooManySessions
	}

	cmd := exec.Command(abs, args...)
	cmd.Dir = filepath.Dir(abs)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return "", fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	_ = pw.Close()

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	s := newSession(id, abs, params, cmd.Process.Pid, r.opts.BufferLines, r.fanout, time.Now())
	r.sessions[id] = s

	go s.read(pr)
	go s.wait(cmd)

	log.Info().Str("process_id", id).Str("path", abs).Int("pid", s.pid).Msg("exec launched")
	return id, nil
}

func (r *Registry) evictOldestExitedLocked() bool {
	var oldestID string
	var oldest time.Time
	for id, s := range r.sessions {
		s.mu.Lock()
		exited, at := !s.running, s.exitedAt
		s.mu.Unlock()
		if exited && (oldestID == "" || at.Before(oldest)) {
			oldestID, oldest = id, at
		}
	}
	if oldestID == "" {
		return false
	}
	delete(r.sessions, oldestID)
	r.fanout.CloseRoom(oldestID)
	log.Debug().Str("process_id", oldestID).Msg("exec evicted to make room")
	return true
}

func (r *Registry) get(id string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Join 订阅输出并回放历史；先订阅再取快照，二者在同一把锁下完成
func (r *Registry) Join(id string, viewer websocket.Subscriber) error {
	s := r.get(id)
	if s == nil {
		r.fanout.Emit(viewer, EventError, types.ExecError{ProcessID: id, Error: ErrNotFound.Error()})
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.fanout.Join(id, viewer)
	running, code := s.stateLocked()
	r.fanout.Emit(viewer, EventHistory, types.ExecHistory{
		ProcessID:  id,
		Lines:      s.ring.Snapshot(),
		Running:    running,
		ReturnCode: code,
	})
	return nil
}

// Leave 取消订阅，不影响进程
func (r *Registry) Leave(id string, viewer websocket.Subscriber) {
	r.fanout.Leave(id, viewer)
}

// Terminate 向进程组发送 SIGTERM，超时后 SIGKILL
func (r *Registry) Terminate(ctx context.Context, id string) (TerminateResult, error) {
	s := r.get(id)
	if s == nil {
		return TerminateResult{}, ErrNotFound
	}

	s.termMu.Lock()
	defer s.termMu.Unlock()

	if running, code := s.state(); !running {
		return TerminateResult{AlreadyExited: true, ReturnCode: *code}, nil
	}

	signalGroup(s.pid, unix.SIGTERM)
	select {
	case <-s.done:
	case <-time.After(KillGrace):
		log.Warn().Str("process_id", id).Msg("exec ignored SIGTERM, killing group")
		signalGroup(s.pid, unix.SIGKILL)
		select {
		case <-s.done:
		case <-ctx.Done():
			return TerminateResult{}, ctx.Err()
		}
	case <-ctx.Done():
		return TerminateResult{}, ctx.Err()
	}

	_, code := s.state()
	log.Info().Str("process_id", id).Int("return_code", *code).Msg("exec terminated")
	return TerminateResult{ReturnCode: *code}, nil
}

func signalGroup(pid int, sig syscall.Signal) {
	if err := unix.Kill(-pid, sig); err != nil {
		if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
			log.Warn().Err(err).Int("pid", pid).Str("signal", sig.String()).Msg("exec signal failed")
		}
	}
}

// Status 只读状态快照
func (r *Registry) Status(id string) (types.ExecStatus, error) {
	s := r.get(id)
	if s == nil {
		return types.ExecStatus{}, ErrNotFound
	}
	return s.status(), nil
}

// List 所有会话状态，按创建时间排序
func (r *Registry) List() []types.ExecStatus {
	r.mu.RLock()
	out := make([]types.ExecStatus, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.status())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Counts 运行中与已退出的会话数
func (r *Registry) Counts() (running, exited int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if ok, _ := s.state(); ok {
			running++
		} else {
			exited++
		}
	}
	return running, exited
}

// Reap 清理退出时间早于 now-Retention 的会话
func (r *Registry) Reap(now time.Time) int {
	cutoff := now.Add(-r.opts.Retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.exitedBefore(cutoff) {
			delete(r.sessions, id)
			r.fanout.CloseRoom(id)
			n++
		}
	}
	if n > 0 {
		log.Debug().Int("count", n).Msg("exec sessions reaped")
	}
	return n
}

// StartReaper 每分钟清理一次过期会话
func (r *Registry) StartReaper() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc("@every 1m", func() { r.Reap(time.Now()) }); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Shutdown 停止清理任务并终止所有仍在运行的进程组
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}

	r.mu.RLock()
	var live []string
	for id, s := range r.sessions {
		if ok, _ := s.state(); ok {
			live = append(live, id)
		}
	}
	r.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		result *multierror.Error
	)
	for _, id := range live {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := r.Terminate(ctx, id); err != nil {
				errMu.Lock()
				result = multierror.Append(result, fmt.Errorf("terminate %s: %w", id, err))
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return result.ErrorOrNil()
}
