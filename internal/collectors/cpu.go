package collectors

import (
	"context"
	"sync"

	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
)

// CPUCollector 采集 CPU 相关指标
type CPUCollector struct {
	infoOnce sync.Once
	model    string
	cores    int
}

// NewCPUCollector 创建 CPU 采集器
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{}
}

func (c *CPUCollector) Name() string {
	return "cpu"
}

func (c *CPUCollector) Collect(ctx context.Context) (interface{}, error) {
	c.infoOnce.Do(func() { c.loadInfo(ctx) })

	data := types.CPUInfo{Model: c.model, Cores: c.cores}

	overall, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	if len(overall) > 0 {
		data.Percent = utils.Round(overall[0])
	}

	perCore, _ := cpu.PercentWithContext(ctx, 0, true)
	data.PerCore = make([]float64, len(perCore))
	for i, v := range perCore {
		data.PerCore[i] = utils.Round(v)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		data.LoadAvg = []float64{
			utils.Round(avg.Load1),
			utils.Round(avg.Load5),
			utils.Round(avg.Load15),
		}
	}

	return data, nil
}

// 型号与核心数启动后不变，只读一次
func (c *CPUCollector) loadInfo(ctx context.Context) {
	c.model = "Unknown"
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		c.model = infos[0].ModelName
	}
	c.cores, _ = cpu.CountsWithContext(ctx, true)
}
