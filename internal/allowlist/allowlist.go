// Package allowlist 提供控制台命令白名单校验
package allowlist

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	// ErrEmptyCommand 命令行分词后为空
	ErrEmptyCommand = errors.New("empty command")
	// ErrCommandNotAllowed 命令不在白名单内
	ErrCommandNotAllowed = errors.New("command not allowed")
	// ErrInvalidArgument 敏感命令的参数包含非法字符
	ErrInvalidArgument = errors.New("invalid argument")
)

// Command 白名单条目
type Command struct {
	Name string
	Path string
	// Sensitive 表示参数需要逐个校验，且可在有凭据时通过 sudo 执行
	Sensitive bool
}

// 编译期固定，运行时只读
var commands = [...]Command{
	{Name: "cat", Path: "/bin/cat"},
	{Name: "date", Path: "/bin/date"},
	{Name: "df", Path: "/bin/df"},
	{Name: "free", Path: "/usr/bin/free"},
	{Name: "grep", Path: "/bin/grep"},
	{Name: "journalctl", Path: "/bin/journalctl", Sensitive: true},
	{Name: "ls", Path: "/bin/ls"},
	{Name: "ps", Path: "/bin/ps"},
	{Name: "pwd", Path: "/bin/pwd"},
	{Name: "systemctl", Path: "/bin/systemctl", Sensitive: true},
	{Name: "top", Path: "/usr/bin/top"},
	{Name: "uptime", Path: "/usr/bin/uptime"},
	{Name: "who", Path: "/usr/bin/who"},
}

var safeArg = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Resolve 根据命令名查找白名单条目
func Resolve(name string) (Command, error) {
	for _, c := range commands {
		if c.Name == name {
			return c, nil
		}
	}
	return Command{}, fmt.Errorf("%w: %s", ErrCommandNotAllowed, name)
}

// Check 校验分词后的命令行，tokens[0] 为命令名
func Check(tokens []string) (Command, error) {
	if len(tokens) == 0 {
		return Command{}, ErrEmptyCommand
	}
	cmd, err := Resolve(tokens[0])
	if err != nil {
		return Command{}, err
	}
	if cmd.Sensitive {
		for _, arg := range tokens[1:] {
			if !ValidArgument(arg) {
				return Command{}, fmt.Errorf("%w for %s: %q", ErrInvalidArgument, cmd.Name, arg)
			}
		}
	}
	return cmd, nil
}

// ValidArgument 参数仅允许字母数字及 . _ -
func ValidArgument(arg string) bool {
	return safeArg.MatchString(arg)
}

// Names 返回排序后的命令名列表
func Names() []string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup 返回命令的绝对路径；不在白名单时 ok 为 false
func Lookup(name string) (path string, ok bool) {
	c, err := Resolve(name)
	if err != nil {
		return "", false
	}
	return c.Path, true
}
