// Package credential 提供 sudo 凭据校验与会话内凭据保存
package credential

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrSecretRequired 未提供密码
	ErrSecretRequired = errors.New("password required")
	// ErrVerifyTimeout sudo 校验超时
	ErrVerifyTimeout = errors.New("sudo verification timed out")
	// ErrPrivilegeRequired 操作需要已保存的 sudo 凭据
	ErrPrivilegeRequired = errors.New("sudo_required")
)

// VerifyError sudo 拒绝了密码，Message 为脱敏后的诊断信息
type VerifyError struct {
	Code    int
	Message string
}

func (e *VerifyError) Error() string {
	return e.Message
}

// DefaultVerifyTimeout 密码校验的超时
const DefaultVerifyTimeout = 5 * time.Second

// Sudo 封装所有 sudo 调用
type Sudo struct {
	Runner   Runner
	SudoPath string
	TruePath string
	Timeout  time.Duration
}

// NewSudo 创建 Sudo；runner 为 nil 时使用 ExecRunner
func NewSudo(runner Runner) *Sudo {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Sudo{
		Runner:   runner,
		SudoPath: "sudo",
		TruePath: "/usr/bin/true",
		Timeout:  DefaultVerifyTimeout,
	}
}

// Validate 强制重新校验密码
// -k 使本次调用忽略已缓存的授权，错误密码一定失败
func (s *Sudo) Validate(ctx context.Context, secret string) error {
	if secret == "" {
		return ErrSecretRequired
	}

	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	res, err := s.Runner.Run(cctx, secret+"\n", s.SudoPath, "-S", "-p", "", "-k", s.TruePath)
	if errors.Is(err, ErrTimeout) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return ErrVerifyTimeout
	}
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) && res.Code < 0 {
			return fmt.Errorf("sudo unavailable: %s", scrub(err.Error(), secret))
		}
	}
	if res.Code != 0 {
		msg := strings.TrimSpace(scrub(string(res.Stderr), secret))
		if msg == "" {
			msg = "Invalid sudo password"
		}
		return &VerifyError{Code: res.Code, Message: msg}
	}
	return nil
}

// Run 以 sudo 执行命令，密码经 stdin 提供，input 紧随其后
func (s *Sudo) Run(ctx context.Context, secret, input string, args ...string) (Result, error) {
	if secret == "" {
		return Result{}, ErrPrivilegeRequired
	}
	if len(args) == 0 {
		return Result{}, errors.New("sudo: no command")
	}
	argv := append([]string{"-S", "-p", ""}, args...)
	stdin := secret + "\n" + input
	log.Debug().Str("cmd", args[0]).Msg("sudo run")
	res, err := s.Runner.Run(ctx, stdin, s.SudoPath, argv...)
	res.Stderr = []byte(scrub(string(res.Stderr), secret))
	if err != nil && res.Code <= 0 {
		return res, fmt.Errorf("sudo %s: %s", args[0], scrub(err.Error(), secret))
	}
	if res.Code != 0 {
		return res, fmt.Errorf("sudo %s exited with status %d: %s", args[0], res.Code, strings.TrimSpace(string(res.Stderr)))
	}
	return res, nil
}

// Invalidate 清除 sudo 时间戳缓存 (sudo -k)
func (s *Sudo) Invalidate(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if _, err := s.Runner.Run(cctx, "", s.SudoPath, "-k"); err != nil {
		log.Warn().Err(err).Msg("sudo -k failed")
	}
}

func scrub(text, secret string) string {
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "******")
}
