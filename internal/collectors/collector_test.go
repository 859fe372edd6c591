package collectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/shirou/gopsutil/v3/host"
	gopsutilnet "github.com/shirou/gopsutil/v3/net"
)

type stubCollector struct {
	name  string
	data  interface{}
	err   error
	delay time.Duration
	panic bool
}

func (s stubCollector) Name() string { return s.name }

func (s stubCollector) Collect(ctx context.Context) (interface{}, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.data, s.err
}

func TestCollectAll(t *testing.T) {
	p := NewParallelCollector(200 * time.Millisecond)
	p.Register(stubCollector{name: "ok", data: 1})
	p.Register(stubCollector{name: "fail", err: errors.New("no")})
	p.Register(stubCollector{name: "panic", panic: true})
	p.Register(stubCollector{name: "slow", data: 2, delay: 5 * time.Second})

	start := time.Now()
	res := p.CollectAll(context.Background())
	if time.Since(start) > 2*time.Second {
		t.Fatalf("CollectAll did not respect timeout")
	}

	if res["ok"].Data != 1 || res["ok"].Error != nil {
		t.Errorf("ok = %+v", res["ok"])
	}
	if res["fail"].Error == nil {
		t.Errorf("fail result has no error")
	}
	if res["panic"].Error == nil {
		t.Errorf("panic was not converted to an error")
	}
	if r, ok := res["slow"]; ok && r.Data != nil {
		t.Errorf("slow collector returned data past timeout: %+v", r)
	}
}

func TestAggregatorMerge(t *testing.T) {
	temp := 48.5
	a := NewAggregatorWith(time.Second,
		stubCollector{name: "cpu", data: types.CPUInfo{Percent: 12.5, Cores: 4}},
		stubCollector{name: "memory", data: types.MemInfo{Percent: 40}},
		stubCollector{name: "sensors", data: &temp},
		stubCollector{name: "internet", data: true},
		stubCollector{name: "uptime", data: "1h 2m 3s"},
		stubCollector{name: "disk", err: errors.New("unreadable")},
	)
	m := a.Snapshot(context.Background())

	if m.CPU.Percent != 12.5 || m.CPU.Cores != 4 {
		t.Errorf("cpu = %+v", m.CPU)
	}
	if m.Memory.Percent != 40 {
		t.Errorf("memory = %+v", m.Memory)
	}
	if m.CPUTemp == nil || *m.CPUTemp != 48.5 {
		t.Errorf("cpu_temp = %v", m.CPUTemp)
	}
	if !m.HasInternet || m.Uptime != "1h 2m 3s" {
		t.Errorf("has_internet=%v uptime=%q", m.HasInternet, m.Uptime)
	}
	if m.Disk.Mountpoint != "" {
		t.Errorf("failed disk collector leaked data: %+v", m.Disk)
	}
	if m.GPU == nil || m.Network.Addresses == nil {
		t.Errorf("nil slices/maps would serialize as null")
	}
}

func TestPickCPUTemp(t *testing.T) {
	tests := []struct {
		name  string
		temps []host.TemperatureStat
		want  float64
		found bool
	}{
		{"Intel封装温度优先", []host.TemperatureStat{
			{SensorKey: "coretemp_core_0", Temperature: 40},
			{SensorKey: "coretemp_package_id_0", Temperature: 45},
		}, 45, true},
		{"AMD", []host.TemperatureStat{{SensorKey: "k10temp_tctl", Temperature: 55.123}}, 55.12, true},
		{"树莓派", []host.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 50}}, 50, true},
		{"无CPU传感器", []host.TemperatureStat{{SensorKey: "nvme_composite", Temperature: 33}}, 0, false},
		{"零值忽略", []host.TemperatureStat{{SensorKey: "coretemp_core_0", Temperature: 0}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickCPUTemp(tt.temps)
			if ok != tt.found || got != tt.want {
				t.Errorf("pickCPUTemp = %v, %v; want %v, %v", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestReadMilliCelsius(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "temp")
	if err := os.WriteFile(p, []byte("47312\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := readMilliCelsius(p)
	if err != nil || v != 47.31 {
		t.Errorf("readMilliCelsius = %v, %v", v, err)
	}
	if _, err := readMilliCelsius(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestInterfaceAddresses(t *testing.T) {
	ifaces := gopsutilnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: gopsutilnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Flags: []string{"up"}, Addrs: gopsutilnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "192.168.1.10/24"}}},
		{Name: "wg0", Addrs: gopsutilnet.InterfaceAddrList{{Addr: "10.0.0.2"}}},
		{Name: "docker0", Addrs: gopsutilnet.InterfaceAddrList{{Addr: "fe80::2/64"}}},
	}
	got := interfaceAddresses(ifaces)
	want := map[string]string{"eth0": "192.168.1.10", "wg0": "10.0.0.2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}
