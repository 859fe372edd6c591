// Package logs 提供操作日志功能
package logs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
)

const maxEntries = 1000

// AuditLog 操作日志，保存在数据目录下的 operations.json
// 只记录动作与对象，调用方不得传入凭据
type AuditLog struct {
	path string

	mu      sync.RWMutex
	entries []types.OperationLog

	saveMu sync.Mutex
}

// New 创建操作日志；dataDir 为空时只保存在内存
func New(dataDir string) *AuditLog {
	a := &AuditLog{}
	if dataDir != "" {
		a.path = filepath.Join(dataDir, "operations.json")
	}
	return a
}

// Load 从文件恢复，文件不存在不算错误
func (a *AuditLog) Load() error {
	if a.path == "" {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var entries []types.OperationLog
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	a.mu.Lock()
	a.entries = entries
	a.mu.Unlock()
	return nil
}

// Record 记录操作日志
func (a *AuditLog) Record(sessionID, action, details, ip string) {
	entry := types.OperationLog{
		Time:      time.Now(),
		SessionID: sessionID,
		Action:    action,
		Details:   details,
		IPAddress: ip,
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	// 保持最近 1000 条日志
	if len(a.entries) > maxEntries {
		a.entries = a.entries[len(a.entries)-maxEntries:]
	}
	a.mu.Unlock()

	log.Info().Str("action", action).Str("session", shortID(sessionID)).Str("ip", ip).Str("details", details).Msg("audit")

	// 日志保存失败不应影响主流程
	if err := a.save(); err != nil {
		log.Warn().Err(err).Msg("audit log save failed")
	}
}

func (a *AuditLog) save() error {
	if a.path == "" {
		return nil
	}
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.RLock()
	data, err := json.MarshalIndent(a.entries, "", "  ")
	a.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o750); err != nil {
		return err
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

// Recent 获取最近的操作日志，最新的在前
func (a *AuditLog) Recent(limit int) []types.OperationLog {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.entries) {
		limit = len(a.entries)
	}
	out := make([]types.OperationLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = a.entries[len(a.entries)-1-i]
	}
	return out
}

// 日志里只出现会话 ID 前缀
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
