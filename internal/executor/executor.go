// Package executor 运行白名单内的控制台命令并逐行推送输出
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/AnalyseDeCircuit/hostdeck/internal/allowlist"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/anmitsu/go-shlex"
	"github.com/rs/zerolog/log"
)

const (
	infoPrefix  = "[INFO] "
	errorPrefix = "[ERROR] "

	maxLineBytes = 1 << 20
)

// 结果分类，用于指标
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Sink 接收输出行，可能被 stdout/stderr 两个 goroutine 并发调用
type Sink func(line string)

// Executor 控制台命令执行器
type Executor struct {
	Commander Commander
	SudoPath  string
	// Observe 每次 Run 结束时回调结果分类，可为空
	Observe func(result string)
}

// New 创建执行器；commander 为 nil 时使用 ExecCommander
func New(commander Commander) *Executor {
	if commander == nil {
		commander = ExecCommander{}
	}
	return &Executor{Commander: commander, SudoPath: "sudo"}
}

// Run 解析并执行一行命令，所有错误都以 [ERROR] 行写入 sink
// secret 非空且命令为敏感命令时经 sudo 执行
func (e *Executor) Run(ctx context.Context, line string, sink Sink, secret string) {
	result := ResultFailed
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("executor panic")
			sink(errorPrefix + "Internal error while running command")
			result = ResultFailed
		}
		if e.Observe != nil {
			e.Observe(result)
		}
	}()

	tokens, err := shlex.Split(line, true)
	if err != nil {
		sink(errorPrefix + "Failed to parse command: " + err.Error())
		result = ResultRejected
		return
	}

	cmd, err := allowlist.Check(tokens)
	switch {
	case errors.Is(err, allowlist.ErrEmptyCommand):
		sink(errorPrefix + "Empty command")
		result = ResultRejected
		return
	case errors.Is(err, allowlist.ErrCommandNotAllowed):
		sink(errorPrefix + "Command not allowed: " + tokens[0])
		result = ResultRejected
		return
	case err != nil:
		sink(errorPrefix + "Invalid characters in arguments for " + tokens[0])
		result = ResultRejected
		return
	}

	name, args := cmd.Path, tokens[1:]
	useSudo := cmd.Sensitive && secret != ""
	if useSudo {
		args = append([]string{"-S", "-p", "", cmd.Path}, args...)
		name = e.SudoPath
	}

	log.Info().Str("cmd", cmd.Name).Bool("sudo", useSudo).Msg("console command")

	c := e.Commander.Command(ctx, name, args...)
	var stdin io.WriteCloser
	if useSudo {
		if stdin, err = c.StdinPipe(); err != nil {
			sink(errorPrefix + "Failed to start command: " + err.Error())
			return
		}
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		sink(errorPrefix + "Failed to start command: " + err.Error())
		return
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		sink(errorPrefix + "Failed to start command: " + err.Error())
		return
	}
	if err := c.Start(); err != nil {
		sink(errorPrefix + "Failed to start command: " + err.Error())
		return
	}
	if stdin != nil {
		_, _ = io.WriteString(stdin, secret+"\n")
		_ = stdin.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(stdout, infoPrefix, sink)
	}()
	go func() {
		defer wg.Done()
		drain(stderr, errorPrefix, sink)
	}()
	wg.Wait()

	err = c.Wait()
	if code, ok := exitStatus(err); ok {
		if code != 0 {
			sink(fmt.Sprintf("%sCommand exited with status %d", errorPrefix, code))
		}
	} else if err != nil {
		sink(errorPrefix + err.Error())
	}
	result = ResultOK
}

// drain 逐行读取，带 ANSI 颜色的行原样转发，超长行分段转发
func drain(r io.Reader, prefix string, sink Sink) {
	err := utils.ReadLines(r, maxLineBytes, func(line string) {
		if strings.Contains(line, "\x1b[") {
			sink(line)
		} else {
			sink(prefix + line)
		}
		runtime.Gosched()
	})
	if err != nil {
		sink(errorPrefix + "Output read error: " + err.Error())
		// 继续读空管道，避免子进程阻塞在写入上
		_, _ = io.Copy(io.Discard, r)
	}
}

// exitStatus 被信号终止时返回负的信号值
func exitStatus(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -int(ws.Signal()), true
		}
		return ee.ExitCode(), true
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return 0, false
}
