package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ExecBufferLines != 5000 {
		t.Errorf("ExecBufferLines = %d, expected 5000", cfg.ExecBufferLines)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, expected 2s", cfg.PollInterval)
	}
	if cfg.LogLevel != zerolog.InfoLevel {
		t.Errorf("LogLevel = %s, expected info", cfg.LogLevel)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostdeck.yaml")
	content := `port: "9100"
log_level: debug
exec_buffer_lines: 100
exec_retention: 10m
poll_interval: "5"
ws_allowed_origins:
  - https://dash.example.com
enable_gpu: false
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9200")
	t.Setenv("EXEC_MAX_SESSIONS", "16")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"环境变量覆盖端口", cfg.Port, "9200"},
		{"文件日志级别", cfg.LogLevel, zerolog.DebugLevel},
		{"文件缓冲行数", cfg.ExecBufferLines, 100},
		{"文件保留时间", cfg.ExecRetention, 10 * time.Minute},
		{"纯秒数周期", cfg.PollInterval, 5 * time.Second},
		{"环境变量会话上限", cfg.ExecMaxSessions, 16},
		{"关闭GPU", cfg.EnableGPU, false},
		{"来源白名单", len(cfg.AllowedOrigins), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"端口非法", map[string]string{"PORT": "abc"}, ""},
		{"缓冲为零", map[string]string{"EXEC_BUFFER_LINES": "0"}, ""},
		{"密钥过短", map[string]string{"JWT_SECRET": "short"}, ""},
		{"YAML格式错误", nil, "port: [\n"},
		{"日志级别错误", nil, "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "c.yaml")
				if err := os.WriteFile(path, []byte(tt.file), 0600); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := LoadFrom(path); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) err = %v", tt.input, err)
			}
			if !tt.wantErr && d != tt.expected {
				t.Errorf("parseDuration(%q) = %s, expected %s", tt.input, d, tt.expected)
			}
		})
	}
}
