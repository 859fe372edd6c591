package execsession

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/cache"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
)

// maxLineBytes 更长的行按此长度切成多段
const maxLineBytes = 1 << 20

// outputGrace 进程退出后等待管道读空的时间，防止后台孙进程一直占用管道
const outputGrace = 500 * time.Millisecond

// session 一次后台执行
// ring/running/code 只由 reader 和 waiter 写入，均在 mu 下
type session struct {
	id        string
	path      string
	params    string
	pid       int
	createdAt time.Time
	fanout    Fanout

	mu       sync.Mutex
	ring     *cache.Ring[string]
	running  bool
	code     int
	exitedAt time.Time

	readerDone chan struct{}
	done       chan struct{}
	termMu     sync.Mutex
}

func newSession(id, path, params string, pid, capacity int, fanout Fanout, now time.Time) *session {
	return &session{
		id:         id,
		path:       path,
		params:     params,
		pid:        pid,
		createdAt:  now,
		fanout:     fanout,
		ring:       cache.NewRing[string](capacity),
		running:    true,
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// append 写入缓冲并广播，持锁广播保证与 join 的快照互斥
func (s *session) append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Push(line)
	s.fanout.Broadcast(s.id, EventOutput, types.ExecOutput{ProcessID: s.id, Line: line})
}

func (s *session) read(r io.ReadCloser) {
	defer close(s.readerDone)
	defer r.Close()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("process_id", s.id).Msg("exec reader panic")
			s.append(fmt.Sprintf("[runner-error] %v", p))
		}
	}()

	if err := utils.ReadLines(r, maxLineBytes, s.append); err != nil {
		s.append("[runner-error] " + err.Error())
		_, _ = io.Copy(io.Discard, r)
	}
}

func (s *session) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	code := exitCode(cmd.ProcessState)
	if err != nil && cmd.ProcessState == nil {
		log.Warn().Err(err).Str("process_id", s.id).Msg("exec wait failed")
	}

	select {
	case <-s.readerDone:
	case <-time.After(outputGrace):
		log.Debug().Str("process_id", s.id).Msg("exec output still open after exit")
	}

	s.mu.Lock()
	s.running = false
	s.code = code
	s.exitedAt = time.Now()
	s.fanout.Broadcast(s.id, EventExit, types.ExecExit{ProcessID: s.id, ReturnCode: code})
	s.mu.Unlock()
	close(s.done)

	log.Info().Str("process_id", s.id).Int("return_code", code).Msg("exec exited")
}

// exitCode 被信号终止时返回负的信号值
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

func (s *session) state() (running bool, code *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *session) stateLocked() (bool, *int) {
	if s.running {
		return true, nil
	}
	c := s.code
	return false, &c
}

func (s *session) status() types.ExecStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	running, code := s.stateLocked()
	return types.ExecStatus{
		ProcessID:  s.id,
		Running:    running,
		ReturnCode: code,
		Path:       s.path,
		Params:     s.params,
		CreatedAt:  s.createdAt,
		LineCount:  s.ring.Len(),
	}
}

func (s *session) exitedBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running && s.exitedAt.Before(t)
}
