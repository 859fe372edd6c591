// Package gpu 通过 NVML 读取 NVIDIA GPU 状态
package gpu

import (
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/rs/zerolog/log"
)

const (
	cacheTTL = 5 * time.Second
	// 初始化失败后多久再试，驱动可能稍后才加载
	retryInterval = time.Minute
)

// Reader 带缓存的 NVML 读取器
// 没有 NVIDIA 驱动时 Read 返回空列表
type Reader struct {
	mu          sync.Mutex
	initialized bool
	lastInitTry time.Time
	cache       []types.GPUDetail
	cachedAt    time.Time
}

// NewReader 创建读取器，NVML 延迟到第一次 Read 时初始化
func NewReader() *Reader {
	return &Reader{}
}

// Read 返回所有 GPU 的当前状态
func (r *Reader) Read() []types.GPUDetail {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.cachedAt) < cacheTTL && r.cache != nil {
		return r.cache
	}
	if !r.ensureInit() {
		return []types.GPUDetail{}
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		log.Debug().Str("ret", ret.Error()).Msg("nvml device count failed")
		return []types.GPUDetail{}
	}

	gpus := make([]types.GPUDetail, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}

		name, _ := device.GetName()
		memInfo, _ := device.GetMemoryInfo()
		util, _ := device.GetUtilizationRates()
		temp, _ := device.GetTemperature(nvml.TEMPERATURE_GPU)
		power, _ := device.GetPowerUsage() // in milliwatts

		var vramPercent float64
		if memInfo.Total > 0 {
			vramPercent = utils.Round(float64(memInfo.Used) / float64(memInfo.Total) * 100)
		}

		gpus = append(gpus, types.GPUDetail{
			Index:       i,
			Name:        "NVIDIA " + name,
			VRAMTotal:   utils.GetSize(memInfo.Total),
			VRAMUsed:    utils.GetSize(memInfo.Used),
			VRAMPercent: vramPercent,
			Utilization: float64(util.Gpu),
			TempC:       float64(temp),
			PowerW:      utils.Round(float64(power) / 1000.0),
		})
	}

	r.cache = gpus
	r.cachedAt = time.Now()
	return gpus
}

func (r *Reader) ensureInit() bool {
	if r.initialized {
		return true
	}
	if !r.lastInitTry.IsZero() && time.Since(r.lastInitTry) < retryInterval {
		return false
	}
	r.lastInitTry = time.Now()
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		log.Debug().Str("ret", ret.Error()).Msg("nvml unavailable")
		return false
	}
	r.initialized = true
	log.Info().Msg("nvml initialized")
	return true
}

// Shutdown 释放 NVML
func (r *Reader) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		_ = nvml.Shutdown()
		r.initialized = false
	}
}
