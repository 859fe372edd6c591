package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store 单个会话持有的 sudo 凭据
// 密码只存在于内存，不参与序列化
type Store struct {
	sudo *Sudo

	mu            sync.RWMutex
	authenticated bool
	secret        string
	loginTime     time.Time
}

// NewStore 创建空凭据
func NewStore(sudo *Sudo) *Store {
	return &Store{sudo: sudo}
}

// ValidateAndStore 校验成功后保存密码并标记为已认证
func (s *Store) ValidateAndStore(ctx context.Context, secret string) error {
	if err := s.sudo.Validate(ctx, secret); err != nil {
		return err
	}
	s.mu.Lock()
	s.authenticated = true
	s.secret = secret
	s.loginTime = time.Now()
	s.mu.Unlock()
	return nil
}

// Clear 清除密码与认证状态
func (s *Store) Clear() {
	s.mu.Lock()
	s.authenticated = false
	s.secret = ""
	s.loginTime = time.Time{}
	s.mu.Unlock()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// PeekSecret 仅供需要把密码交给子进程 stdin 的特权操作使用
func (s *Store) PeekSecret() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated || s.secret == "" {
		return "", false
	}
	return s.secret, true
}

func (s *Store) LoginTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginTime
}

func (s *Store) String() string {
	return fmt.Sprintf("credential{authenticated=%t}", s.IsAuthenticated())
}

func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(struct {
		Authenticated bool      `json:"authenticated"`
		LoginTime     time.Time `json:"login_time"`
	}{s.authenticated, s.loginTime})
}
