// Package session 提供服务端会话管理和登录历史追踪功能
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CookieName 会话 Cookie 名称
const CookieName = "hostdeck_session"

// CSRFCookieName 双提交 CSRF Cookie 名称
const CSRFCookieName = "hostdeck_csrf"

var (
	// ErrNoSession 会话不存在或已过期
	ErrNoSession = errors.New("session not found")
	// ErrInvalidToken 令牌无效
	ErrInvalidToken = errors.New("invalid token")
)

const maxLoginHistory = 50

// Session 一个已登录的浏览器会话
// 凭据只保存在内存中
type Session struct {
	ID         string
	Credential *credential.Store
	CSRFToken  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	IP         string
	UserAgent  string
	DeviceType string
	Browser    string
	OS         string

	mu         sync.Mutex
	lastActive time.Time
}

// Touch 更新活跃时间
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Expired 是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Manager 会话存储
type Manager struct {
	key []byte
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session // sessionID -> session

	historyMu sync.RWMutex
	history   []types.LoginRecord

	cron *cron.Cron
}

// NewManager 创建会话管理器
func NewManager(key []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		key:      key,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		cron:     cron.New(),
	}
}

// ResolveKey 确定签名密钥
// 仅开发模式允许在未配置时生成随机密钥
func ResolveKey(secret string, dev bool) ([]byte, error) {
	if secret == "" {
		if !dev {
			return nil, errors.New("JWT_SECRET environment variable is required in production")
		}
		log.Warn().Msg("JWT_SECRET is not set, generating random key for development only")
		return securecookie.GenerateRandomKey(32), nil
	}
	if len(secret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes long")
	}
	if len(secret) < 64 {
		log.Warn().Msg("JWT_SECRET is less than 64 bytes, consider using a longer secret")
	}
	return []byte(secret), nil
}

// GenerateSessionID 生成唯一会话 ID
func GenerateSessionID() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(32))
}

// TTL 会话有效期
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create 为已通过校验的凭据创建会话，返回会话与签名令牌
func (m *Manager) Create(cred *credential.Store, ip, userAgent string) (*Session, string, error) {
	now := time.Now()
	deviceType, browser, osName := parseUserAgent(userAgent)
	s := &Session{
		ID:         GenerateSessionID(),
		Credential: cred,
		CSRFToken:  hex.EncodeToString(securecookie.GenerateRandomKey(32)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		IP:         ip,
		UserAgent:  userAgent,
		DeviceType: deviceType,
		Browser:    browser,
		OS:         osName,
		lastActive: now,
	}

	claims := &jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   "sudo",
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, token, nil
}

// Lookup 校验令牌并返回对应会话
func (m *Manager) Lookup(token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoSession
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	s, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok || s.Expired(time.Now()) {
		return nil, ErrNoSession
	}
	s.Touch()
	return s, nil
}

// Get 根据 ID 获取会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Revoke 撤销会话并清除其凭据
func (m *Manager) Revoke(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Credential.Clear()
	}
	return ok
}

// List 返回未过期会话的副本
func (m *Manager) List(currentID string) []types.ActiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make([]types.ActiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Expired(now) {
			continue
		}
		out = append(out, types.ActiveSession{
			SessionID:  s.ID,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			LastActive: s.LastActive(),
			IP:         s.IP,
			UserAgent:  s.UserAgent,
			DeviceType: s.DeviceType,
			Browser:    s.Browser,
			OS:         s.OS,
			IsCurrent:  s.ID == currentID,
		})
	}
	return out
}

// CleanExpiredSessions 清理过期会话（定期调用）
func (m *Manager) CleanExpiredSessions() int {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Expired(now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Credential.Clear()
	}
	return len(expired)
}

// Count 当前会话数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartCleanupRoutine 启动定期清理
func (m *Manager) StartCleanupRoutine() error {
	_, err := m.cron.AddFunc("@every 5m", func() {
		if n := m.CleanExpiredSessions(); n > 0 {
			log.Info().Int("count", n).Msg("expired sessions removed")
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop 停止定期清理
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}

// --- 登录历史 ---

// RecordLogin 记录登录（成功或失败）
func (m *Manager) RecordLogin(ip, userAgent string, success bool, sessionID string) {
	_, browser, osName := parseUserAgent(userAgent)
	record := types.LoginRecord{
		Time:      time.Now(),
		IP:        ip,
		UserAgent: userAgent,
		Browser:   browser,
		OS:        osName,
		Location:  guessLocationFromIP(ip),
		Success:   success,
		SessionID: sessionID,
	}

	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = append([]types.LoginRecord{record}, m.history...) // 最新在前
	if len(m.history) > maxLoginHistory {
		m.history = m.history[:maxLoginHistory]
	}
}

// LoginHistory 获取登录历史
func (m *Manager) LoginHistory(limit int) []types.LoginRecord {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()

	n := len(m.history)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]types.LoginRecord, n)
	copy(out, m.history[:n])
	return out
}

// --- 辅助函数 ---

// parseUserAgent 解析 User-Agent 字符串
func parseUserAgent(ua string) (deviceType, browser, osName string) {
	ua = strings.ToLower(ua)

	// 设备类型
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") && !strings.Contains(ua, "tablet") {
		deviceType = "mobile"
	} else if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		deviceType = "tablet"
	} else {
		deviceType = "desktop"
	}

	// 浏览器
	switch {
	case strings.Contains(ua, "edg/"):
		browser = "Edge"
	case strings.Contains(ua, "chrome/") && !strings.Contains(ua, "edg/"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "chrome/"):
		browser = "Safari"
	case strings.Contains(ua, "curl/"):
		browser = "curl"
	default:
		browser = "Unknown"
	}

	// iOS 必须在 macOS 之前判断
	switch {
	case strings.Contains(ua, "iphone"):
		osName = "iOS"
	case strings.Contains(ua, "ipad"):
		osName = "iPadOS"
	case strings.Contains(ua, "android"):
		osName = "Android"
	case strings.Contains(ua, "windows"):
		osName = "Windows"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macos"):
		osName = "macOS"
	case strings.Contains(ua, "linux"):
		osName = "Linux"
	default:
		osName = "Unknown"
	}

	return
}

var privateIPPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[0-1])\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`^::1$`),
	regexp.MustCompile(`^localhost$`),
}

// guessLocationFromIP 内网地址标记为本地网络
func guessLocationFromIP(ip string) string {
	for _, p := range privateIPPatterns {
		if p.MatchString(ip) {
			return "Local Network"
		}
	}
	return ""
}
