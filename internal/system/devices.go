package system

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	gopsutilnet "github.com/shirou/gopsutil/v3/net"
)

// Devices 列出网络接口的类型、MAC 与链路状态
func Devices(ctx context.Context) ([]types.NetDevice, error) {
	ifaces, err := gopsutilnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	root := config.HostPath("/sys/class/net")
	devices := make([]types.NetDevice, 0, len(ifaces))
	for _, iface := range ifaces {
		devices = append(devices, describeDevice(root, iface.Name, iface.HardwareAddr))
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

func describeDevice(sysRoot, name, mac string) types.NetDevice {
	dir := filepath.Join(sysRoot, name)
	if mac == "" {
		mac = readSysfs(filepath.Join(dir, "address"))
	}
	state := readSysfs(filepath.Join(dir, "operstate"))
	if state == "" {
		state = "unknown"
	}
	return types.NetDevice{
		Name:      name,
		Type:      deviceType(name),
		MAC:       mac,
		Operstate: state,
	}
}

func readSysfs(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// deviceType 按接口名前缀归类
func deviceType(name string) string {
	switch {
	case name == "lo":
		return "Loopback"
	case strings.HasPrefix(name, "wlan"), strings.HasPrefix(name, "wlp"):
		return "Wireless"
	case strings.HasPrefix(name, "eth"), strings.HasPrefix(name, "enp"), strings.HasPrefix(name, "eno"):
		return "Ethernet"
	case strings.HasPrefix(name, "docker"), strings.HasPrefix(name, "veth"), strings.HasPrefix(name, "br-"):
		return "Docker"
	default:
		return unknown
	}
}
