package collectors

import (
	"context"

	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskCollector 采集根分区使用情况
type DiskCollector struct{}

// NewDiskCollector 创建磁盘采集器
func NewDiskCollector() *DiskCollector {
	return &DiskCollector{}
}

func (c *DiskCollector) Name() string {
	return "disk"
}

func (c *DiskCollector) Collect(ctx context.Context) (interface{}, error) {
	// 容器内优先读宿主机挂载的根
	u, err := disk.UsageWithContext(ctx, config.HostPath("/"))
	if err != nil {
		if u, err = disk.UsageWithContext(ctx, "/"); err != nil {
			return nil, err
		}
	}
	return types.DiskInfo{
		Mountpoint: "/",
		Total:      utils.GetSize(u.Total),
		Used:       utils.GetSize(u.Used),
		Free:       utils.GetSize(u.Free),
		Percent:    utils.Round(u.UsedPercent),
	}, nil
}
