package collectors

import (
	"context"

	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryCollector 采集内存相关指标
type MemoryCollector struct{}

// NewMemoryCollector 创建内存采集器
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

func (c *MemoryCollector) Name() string {
	return "memory"
}

func (c *MemoryCollector) Collect(ctx context.Context) (interface{}, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return types.MemInfo{
		Total:     utils.GetSize(v.Total),
		Used:      utils.GetSize(v.Used),
		Available: utils.GetSize(v.Available),
		Percent:   utils.Round(v.UsedPercent),
	}, nil
}
