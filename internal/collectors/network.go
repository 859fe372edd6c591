package collectors

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/utils"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	gopsutilnet "github.com/shirou/gopsutil/v3/net"
)

// NetworkCollector 采集网络流量与各接口地址
type NetworkCollector struct{}

// NewNetworkCollector 创建网络采集器
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{}
}

func (c *NetworkCollector) Name() string {
	return "network"
}

func (c *NetworkCollector) Collect(ctx context.Context) (interface{}, error) {
	data := types.NetInfo{Addresses: map[string]string{}}

	netIO, err := gopsutilnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(netIO) > 0 {
		data.BytesSent = utils.GetSize(netIO[0].BytesSent)
		data.BytesRecv = utils.GetSize(netIO[0].BytesRecv)
		data.RawSent = netIO[0].BytesSent
		data.RawRecv = netIO[0].BytesRecv
	}

	if ifaces, err := gopsutilnet.InterfacesWithContext(ctx); err == nil {
		data.Addresses = interfaceAddresses(ifaces)
	}
	return data, nil
}

// interfaceAddresses 每个接口取第一个 IPv4 地址，跳过回环
func interfaceAddresses(ifaces gopsutilnet.InterfaceStatList) map[string]string {
	out := make(map[string]string)
	for _, iface := range ifaces {
		if iface.Name == "lo" || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip != nil && ip.To4() != nil {
				out[iface.Name] = ip.String()
				break
			}
		}
	}
	return out
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// InternetCollector 通过 TCP 连接公共 DNS 判断是否联网
type InternetCollector struct {
	Target  string
	Timeout time.Duration
}

// NewInternetCollector 创建联网检测
func NewInternetCollector() *InternetCollector {
	return &InternetCollector{Target: "8.8.8.8:53", Timeout: 2 * time.Second}
}

func (c *InternetCollector) Name() string {
	return "internet"
}

func (c *InternetCollector) Collect(ctx context.Context) (interface{}, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Target)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}
