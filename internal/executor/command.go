package executor

import (
	"context"
	"io"
	"os/exec"
)

// Command 一个尚未启动的外部进程
type Command interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)
	Start() error
	Wait() error
}

// Commander 创建 Command，测试中可替换为记录调用的实现
type Commander interface {
	Command(ctx context.Context, name string, args ...string) Command
}

// ExecCommander 直接 execve，不经过 shell
type ExecCommander struct{}

func (ExecCommander) Command(ctx context.Context, name string, args ...string) Command {
	return exec.CommandContext(ctx, name, args...)
}
