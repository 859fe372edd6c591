// Package config 提供全局配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config 全局配置结构体
type Config struct {
	// Port HTTP 监听端口
	Port string

	// DataDir 持久化目录（收藏、审计日志）
	DataDir string

	LogLevel  zerolog.Level
	LogFormat string

	// JWTSecret 会话 Cookie 的签名密钥，至少 32 字节
	JWTSecret string
	// DevMode 允许在未配置 JWTSecret 时使用随机密钥
	DevMode       bool
	SecureCookies bool
	SessionTTL    time.Duration

	// 后台执行
	ExecBufferLines int
	ExecRetention   time.Duration
	ExecMaxSessions int

	// PollInterval 服务/指标推送周期
	PollInterval time.Duration

	AllowedOrigins []string

	// FileRoot 文件浏览默认目录
	FileRoot string

	// HostFS 是宿主机文件系统的挂载点
	// 在容器中通常是 "/hostfs"，直接运行时为空
	HostFS   string
	HostProc string
	HostSys  string

	EnableGPU     bool
	EnableSystemd bool
}

// fileConfig 对应 CONFIG_FILE 指向的 YAML 文件
type fileConfig struct {
	Port            string   `yaml:"port"`
	DataDir         string   `yaml:"data_dir"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	JWTSecret       string   `yaml:"jwt_secret"`
	SecureCookies   *bool    `yaml:"secure_cookies"`
	SessionTTL      string   `yaml:"session_ttl"`
	ExecBufferLines int      `yaml:"exec_buffer_lines"`
	ExecRetention   string   `yaml:"exec_retention"`
	ExecMaxSessions int      `yaml:"exec_max"`
	PollInterval    string   `yaml:"poll_interval"`
	AllowedOrigins  []string `yaml:"ws_allowed_origins"`
	FileRoot        string   `yaml:"file_root"`
	EnableGPU       *bool    `yaml:"enable_gpu"`
	EnableSystemd   *bool    `yaml:"enable_systemd"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
	once         sync.Once
	loadErr      error
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Port:            "8000",
		DataDir:         "./data",
		LogLevel:        zerolog.InfoLevel,
		LogFormat:       "json",
		SecureCookies:   false,
		SessionTTL:      12 * time.Hour,
		ExecBufferLines: 5000,
		ExecRetention:   30 * time.Minute,
		ExecMaxSessions: 256,
		PollInterval:    2 * time.Second,
		FileRoot:        "/home",
		EnableGPU:       true,
		EnableSystemd:   true,
	}
}

// Load 加载配置（进程内只执行一次）
func Load() (*Config, error) {
	once.Do(func() {
		GlobalConfig, loadErr = LoadFrom(os.Getenv("CONFIG_FILE"))
	})
	return GlobalConfig, loadErr
}

// LoadFrom 先读取 YAML 文件（可为空），再用环境变量覆盖
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := cfg.applyFile(fc); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.LogLevel != "" {
		l, err := zerolog.ParseLevel(fc.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		c.LogLevel = l
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	if fc.JWTSecret != "" {
		c.JWTSecret = fc.JWTSecret
	}
	if fc.SecureCookies != nil {
		c.SecureCookies = *fc.SecureCookies
	}
	if fc.ExecBufferLines != 0 {
		c.ExecBufferLines = fc.ExecBufferLines
	}
	if fc.ExecMaxSessions != 0 {
		c.ExecMaxSessions = fc.ExecMaxSessions
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.FileRoot != "" {
		c.FileRoot = fc.FileRoot
	}
	if fc.EnableGPU != nil {
		c.EnableGPU = *fc.EnableGPU
	}
	if fc.EnableSystemd != nil {
		c.EnableSystemd = *fc.EnableSystemd
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"session_ttl", fc.SessionTTL, &c.SessionTTL},
		{"exec_retention", fc.ExecRetention, &c.ExecRetention},
		{"poll_interval", fc.PollInterval, &c.PollInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if l, err := zerolog.ParseLevel(v); err == nil {
			c.LogLevel = l
		}
	}
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.DevMode = getEnv("ENV", "") == "development" || getEnvBool("DEV", false)
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.ExecBufferLines = getEnvInt("EXEC_BUFFER_LINES", c.ExecBufferLines)
	c.ExecRetention = getEnvDuration("EXEC_RETENTION", c.ExecRetention)
	c.ExecMaxSessions = getEnvInt("EXEC_MAX_SESSIONS", c.ExecMaxSessions)
	c.PollInterval = getEnvDuration("POLL_INTERVAL", c.PollInterval)
	if v := strings.TrimSpace(os.Getenv("WS_ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	c.FileRoot = getEnv("FILE_ROOT", c.FileRoot)
	c.EnableGPU = getEnvBool("ENABLE_GPU", c.EnableGPU)
	c.EnableSystemd = getEnvBool("ENABLE_SYSTEMD", c.EnableSystemd)

	c.HostFS = getEnv("HOST_FS", "")
	c.HostProc = getEnv("HOST_PROC", "/proc")
	c.HostSys = getEnv("HOST_SYS", "/sys")
	// 显式设置的 HOST_PROC 等优先于 HOST_FS 推导值
	if c.HostFS != "" {
		if os.Getenv("HOST_PROC") == "" {
			c.HostProc = filepath.Join(c.HostFS, "proc")
		}
		if os.Getenv("HOST_SYS") == "" {
			c.HostSys = filepath.Join(c.HostFS, "sys")
		}
	}
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.ExecBufferLines <= 0 {
		return fmt.Errorf("exec buffer lines must be positive, got %d", c.ExecBufferLines)
	}
	if c.ExecMaxSessions <= 0 {
		return fmt.Errorf("exec max sessions must be positive, got %d", c.ExecMaxSessions)
	}
	if c.ExecRetention <= 0 {
		return fmt.Errorf("exec retention must be positive, got %s", c.ExecRetention)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if c.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("poll interval too short: %s", c.PollInterval)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes long")
	}
	return nil
}

// HostPath 将绝对路径转换为宿主机挂载路径
// 例如: HostPath("/sys/class/thermal") -> "/hostfs/sys/class/thermal"
func HostPath(path string) string {
	if GlobalConfig == nil || GlobalConfig.HostFS == "" {
		return path
	}
	if strings.HasPrefix(path, GlobalConfig.HostFS) {
		return path
	}
	return filepath.Join(GlobalConfig.HostFS, path)
}

// getEnv 获取环境变量，如果为空则返回默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		value = strings.ToLower(value)
		return value == "true" || value == "1" || value == "yes" || value == "on"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	d, err := parseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// parseDuration 支持 "30" 这样的纯秒数
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	allDigits := v != ""
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		v += "s"
	}
	return time.ParseDuration(v)
}
