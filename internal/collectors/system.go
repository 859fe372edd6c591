package collectors

import (
	"context"

	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/shirou/gopsutil/v3/host"
)

// UptimeCollector 采集开机时长
type UptimeCollector struct{}

// NewUptimeCollector 创建开机时长采集器
func NewUptimeCollector() *UptimeCollector {
	return &UptimeCollector{}
}

func (c *UptimeCollector) Name() string {
	return "uptime"
}

func (c *UptimeCollector) Collect(ctx context.Context) (interface{}, error) {
	sec, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FormatUptime(sec), nil
}
