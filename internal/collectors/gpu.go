package collectors

import (
	"context"

	"github.com/AnalyseDeCircuit/hostdeck/internal/gpu"
)

// GPUCollector 采集 GPU 信息
type GPUCollector struct {
	reader *gpu.Reader
}

// NewGPUCollector 创建 GPU 采集器
func NewGPUCollector(reader *gpu.Reader) *GPUCollector {
	return &GPUCollector{reader: reader}
}

func (c *GPUCollector) Name() string {
	return "gpu"
}

func (c *GPUCollector) Collect(ctx context.Context) (interface{}, error) {
	// Reader 内部已有缓存机制
	return c.reader.Read(), nil
}
