package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// 推送事件名
const (
	EventUpdateServices = "update_services"
	EventUpdateMetrics  = "update_metrics"
)

const (
	DefaultPollInterval = 2 * time.Second
	errorBackoff        = 5 * time.Second
)

// Broadcaster 推送给所有已连接客户端
type Broadcaster interface {
	BroadcastAll(event string, data interface{})
}

// Pump 周期采集服务与指标，只在内容变化时推送
type Pump struct {
	svc      *MonitoringService
	out      Broadcaster
	interval time.Duration

	lastServices []byte
	lastMetrics  []byte
}

// NewPump 创建推送循环
func NewPump(svc *MonitoringService, out Broadcaster, interval time.Duration) *Pump {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Pump{svc: svc, out: out, interval: interval}
}

// Run 阻塞直到 ctx 取消
func (p *Pump) Run(ctx context.Context) {
	log.Info().Dur("interval", p.interval).Msg("monitoring pump started")
	for {
		wait := p.interval
		if err := p.tick(ctx); err != nil {
			log.Warn().Err(err).Msg("monitoring pump error, backing off")
			wait = errorBackoff
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("monitoring pump stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (p *Pump) tick(ctx context.Context) error {
	if p.svc.SystemdEnabled() {
		services, err := p.svc.GetServices(ctx)
		if err != nil {
			return fmt.Errorf("services: %w", err)
		}
		if changed, err := p.changed(&p.lastServices, services); err != nil {
			return err
		} else if changed {
			p.out.BroadcastAll(EventUpdateServices, services)
		}
	}

	metrics := p.svc.GetSystemMetrics(ctx)
	if changed, err := p.changed(&p.lastMetrics, metrics); err != nil {
		return err
	} else if changed {
		p.out.BroadcastAll(EventUpdateMetrics, metrics)
	}
	return nil
}

func (p *Pump) changed(last *[]byte, v interface{}) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	if bytes.Equal(*last, b) {
		return false, nil
	}
	*last = b
	return true, nil
}
