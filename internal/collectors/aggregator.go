package collectors

import (
	"context"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/gpu"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
)

// Aggregator 并行运行所有采集器并合并为一份 Metrics
type Aggregator struct {
	parallel *ParallelCollector
}

// Options 控制可选采集器
type Options struct {
	EnableGPU bool
	GPUReader *gpu.Reader
	Timeout   time.Duration
}

// NewAggregator 注册默认采集器
func NewAggregator(opts Options) *Aggregator {
	p := NewParallelCollector(opts.Timeout)
	p.Register(NewCPUCollector())
	p.Register(NewMemoryCollector())
	p.Register(NewDiskCollector())
	p.Register(NewNetworkCollector())
	p.Register(NewSensorsCollector())
	p.Register(NewUptimeCollector())
	p.Register(NewInternetCollector())
	if opts.EnableGPU && opts.GPUReader != nil {
		p.Register(NewGPUCollector(opts.GPUReader))
	}
	return &Aggregator{parallel: p}
}

// NewAggregatorWith 使用指定采集器，供测试替换
func NewAggregatorWith(timeout time.Duration, cs ...Collector) *Aggregator {
	p := NewParallelCollector(timeout)
	for _, c := range cs {
		p.Register(c)
	}
	return &Aggregator{parallel: p}
}

// Snapshot 采集一次；失败的采集器对应字段保持零值
func (a *Aggregator) Snapshot(ctx context.Context) types.Metrics {
	return merge(a.parallel.CollectAll(ctx))
}

func merge(results map[string]CollectorResult) types.Metrics {
	m := types.Metrics{
		GPU:     []types.GPUDetail{},
		Network: types.NetInfo{Addresses: map[string]string{}},
	}
	for name, r := range results {
		if r.Error != nil || r.Data == nil {
			continue
		}
		switch name {
		case "cpu":
			if v, ok := r.Data.(types.CPUInfo); ok {
				m.CPU = v
			}
		case "memory":
			if v, ok := r.Data.(types.MemInfo); ok {
				m.Memory = v
			}
		case "disk":
			if v, ok := r.Data.(types.DiskInfo); ok {
				m.Disk = v
			}
		case "network":
			if v, ok := r.Data.(types.NetInfo); ok {
				m.Network = v
			}
		case "sensors":
			if v, ok := r.Data.(*float64); ok {
				m.CPUTemp = v
			}
		case "uptime":
			if v, ok := r.Data.(string); ok {
				m.Uptime = v
			}
		case "internet":
			if v, ok := r.Data.(bool); ok {
				m.HasInternet = v
			}
		case "gpu":
			if v, ok := r.Data.([]types.GPUDetail); ok {
				m.GPU = v
			}
		}
	}
	return m
}
