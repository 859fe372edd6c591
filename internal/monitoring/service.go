// Package monitoring 提供系统监控功能
package monitoring

import (
	"context"

	"github.com/AnalyseDeCircuit/hostdeck/internal/cache"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
)

// ServiceLister 列出 systemd 服务
type ServiceLister interface {
	ListServices(ctx context.Context) ([]types.ServiceInfo, error)
}

// MetricsSource 采集一次主机指标
type MetricsSource interface {
	Snapshot(ctx context.Context) types.Metrics
}

// MonitoringService 带短期缓存的监控服务，HTTP 与推送共用
type MonitoringService struct {
	services ServiceLister
	metrics  MetricsSource

	serviceCache *cache.TTLCache[[]types.ServiceInfo]
	metricsCache *cache.TTLCache[types.Metrics]

	// FavoriteServices 返回收藏的服务名，可为空
	FavoriteServices func() []string
}

// NewMonitoringService 创建监控服务；services 为 nil 表示未启用 systemd
func NewMonitoringService(services ServiceLister, metrics MetricsSource) *MonitoringService {
	return &MonitoringService{
		services:     services,
		metrics:      metrics,
		serviceCache: cache.NewTTLCache[[]types.ServiceInfo](),
		metricsCache: cache.NewTTLCache[types.Metrics](),
	}
}

// SystemdEnabled 是否有服务来源
func (s *MonitoringService) SystemdEnabled() bool {
	return s.services != nil
}

// GetServices 获取服务列表（带缓存），并标记收藏
func (s *MonitoringService) GetServices(ctx context.Context) ([]types.ServiceInfo, error) {
	if s.services == nil {
		return []types.ServiceInfo{}, nil
	}
	list, err := s.serviceCache.GetOrLoad(cache.KeySystemdServices, cache.DefaultTTL, func() ([]types.ServiceInfo, error) {
		return s.services.ListServices(ctx)
	})
	if err != nil {
		return nil, err
	}

	fav := map[string]bool{}
	if s.FavoriteServices != nil {
		for _, name := range s.FavoriteServices() {
			fav[name] = true
		}
	}
	// 缓存中的切片是共享的，复制后再标记
	out := make([]types.ServiceInfo, len(list))
	for i, svc := range list {
		svc.Favorite = fav[svc.Unit]
		out[i] = svc
	}
	return out, nil
}

// GetSystemMetrics 获取系统指标（带缓存）
func (s *MonitoringService) GetSystemMetrics(ctx context.Context) types.Metrics {
	m, _ := s.metricsCache.GetOrLoad(cache.KeySystemMetrics, cache.DefaultTTL, func() (types.Metrics, error) {
		return s.metrics.Snapshot(ctx), nil
	})
	return m
}

// InvalidateServices 服务状态变更后丢弃缓存
func (s *MonitoringService) InvalidateServices() {
	s.serviceCache.Delete(cache.KeySystemdServices)
}
