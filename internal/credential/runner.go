package credential

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ErrTimeout 外部命令超时
var ErrTimeout = errors.New("command timed out")

// Result 外部命令的输出与退出码
type Result struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Runner 运行一次性外部命令，stdin 写入后关闭
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (Result, error)
}

// ExecRunner 基于 os/exec 的 Runner，从不经过 shell
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	res := Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes(), Code: exitCode(err)}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, ErrTimeout
	}
	return res, err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
