// Package system 提供主机静态信息，用于面板标题栏
package system

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/config"
	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const unknown = "Unknown"

// Info 汇总一次主机信息，单项失败时填 Unknown
func Info(ctx context.Context) types.HostInfo {
	info := types.HostInfo{
		Hostname: unknown,
		OS:       osRelease(config.HostPath("/etc/os-release")),
		Kernel:   unknown,
		Arch:     runtime.GOARCH,
		CPU:      cpuModel(ctx),
		Memory:   memorySummary(ctx),
		IP:       localIP(),
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		if h.Hostname != "" {
			info.Hostname = h.Hostname
		}
		if h.KernelVersion != "" {
			info.Kernel = h.KernelVersion
		}
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
		info.Uptime = utils.FormatUptime(h.Uptime)
	}
	return info
}

func osRelease(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return runtime.GOOS
	}
	defer f.Close()
	return parseOSRelease(f)
}

// parseOSRelease 优先 PRETTY_NAME，其次 NAME VERSION
func parseOSRelease(r io.Reader) string {
	fields := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		fields[k] = strings.Trim(v, `"'`)
	}
	if s := fields["PRETTY_NAME"]; s != "" {
		return s
	}
	if name := fields["NAME"]; name != "" {
		if ver := fields["VERSION"]; ver != "" {
			return name + " " + ver
		}
		return name
	}
	return runtime.GOOS
}

func cpuModel(ctx context.Context) string {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 || infos[0].ModelName == "" {
		return unknown
	}
	return strings.TrimSpace(infos[0].ModelName)
}

func memorySummary(ctx context.Context) string {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return unknown
	}
	return fmt.Sprintf("%s / %s", utils.GetSize(v.Used), utils.GetSize(v.Total))
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return unknown
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return unknown
}
