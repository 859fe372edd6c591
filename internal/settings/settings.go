// Package settings 提供收藏设置的持久化功能
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
)

// Store 收藏的服务与进程，保存在数据目录下的 favorites.json
type Store struct {
	path string

	mu      sync.RWMutex
	current types.Favorites

	listenersMu sync.Mutex
	listeners   []func(types.Favorites)
}

// NewStore 创建设置存储
func NewStore(dataDir string) *Store {
	return &Store{
		path:    filepath.Join(dataDir, "favorites.json"),
		current: types.Favorites{Services: []string{}, Processes: []string{}},
	}
}

// Load 加载设置（启动时调用）
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Info().Str("path", s.path).Msg("favorites: using defaults")
		return
	}
	var f types.Favorites
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Msg("favorites: parse error, using defaults")
		return
	}
	f.Services = normalize(f.Services)
	f.Processes = normalize(f.Processes)

	s.mu.Lock()
	s.current = f
	s.mu.Unlock()
	log.Info().Str("path", s.path).Int("services", len(f.Services)).Int("processes", len(f.Processes)).Msg("favorites loaded")
}

// Get 获取当前设置（只读副本）
func (s *Store) Get() types.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Favorites{
		Services:  append([]string{}, s.current.Services...),
		Processes: append([]string{}, s.current.Processes...),
	}
}

// FavoriteServices 收藏的服务名
func (s *Store) FavoriteServices() []string {
	return s.Get().Services
}

// SetServices 替换收藏的服务
func (s *Store) SetServices(names []string) error {
	return s.update(func(f *types.Favorites) { f.Services = normalize(names) })
}

// SetProcesses 替换收藏的进程名
func (s *Store) SetProcesses(names []string) error {
	return s.update(func(f *types.Favorites) { f.Processes = normalize(names) })
}

func (s *Store) update(fn func(*types.Favorites)) error {
	s.mu.Lock()
	old := s.current
	next := types.Favorites{Services: old.Services, Processes: old.Processes}
	fn(&next)
	s.current = next
	s.mu.Unlock()

	if err := s.save(); err != nil {
		// 回滚
		s.mu.Lock()
		s.current = old
		s.mu.Unlock()
		return err
	}
	s.notifyListeners()
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.Get(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// OnChange 注册设置变更监听器
func (s *Store) OnChange(fn func(types.Favorites)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *Store) notifyListeners() {
	s.listenersMu.Lock()
	fns := make([]func(types.Favorites), len(s.listeners))
	copy(fns, s.listeners)
	s.listenersMu.Unlock()

	f := s.Get()
	for _, fn := range fns {
		fn(f)
	}
}

// normalize 去空白、去重、排序
func normalize(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
