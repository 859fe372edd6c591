package collectors

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/shirou/gopsutil/v3/host"
)

var errNoTemperature = errors.New("no cpu temperature sensor")

// cpuSensorKeys 常见 CPU 温度传感器前缀，按优先级排列
var cpuSensorKeys = []string{"coretemp_package_id_0", "k10temp_tctl", "coretemp", "k10temp", "cpu_thermal", "zenpower"}

// SensorsCollector 采集 CPU 温度
type SensorsCollector struct {
	// ThermalZone 回退读取的 sysfs 文件，单位毫摄氏度
	ThermalZone string
}

// NewSensorsCollector 创建传感器采集器
func NewSensorsCollector() *SensorsCollector {
	return &SensorsCollector{ThermalZone: "/sys/class/thermal/thermal_zone0/temp"}
}

func (c *SensorsCollector) Name() string {
	return "sensors"
}

// Collect 返回 *float64，没有传感器时返回错误
func (c *SensorsCollector) Collect(ctx context.Context) (interface{}, error) {
	// gopsutil 在部分传感器读取失败时仍返回已读到的数据
	temps, _ := host.SensorsTemperaturesWithContext(ctx)
	if v, ok := pickCPUTemp(temps); ok {
		return &v, nil
	}
	for _, p := range []string{config.HostPath(c.ThermalZone), c.ThermalZone} {
		if v, err := readMilliCelsius(p); err == nil {
			return &v, nil
		}
	}
	return nil, errNoTemperature
}

func pickCPUTemp(temps []host.TemperatureStat) (float64, bool) {
	for _, key := range cpuSensorKeys {
		for _, t := range temps {
			if strings.HasPrefix(strings.ToLower(t.SensorKey), key) && t.Temperature > 0 {
				return utils.Round(t.Temperature), true
			}
		}
	}
	return 0, false
}

func readMilliCelsius(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, err
	}
	return utils.Round(v / 1000), nil
}
