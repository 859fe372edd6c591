package processes

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
)

type recordRunner struct {
	calls [][]string
}

func (r *recordRunner) Run(_ context.Context, _ string, name string, args ...string) (credential.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return credential.Result{}, nil
}

func TestKill(t *testing.T) {
	tests := []struct {
		name     string
		pid      int
		secret   string
		killErr  error
		wantErr  error
		wantSudo string
	}{
		{"成功", 4242, "", nil, nil, ""},
		{"pid为1", 1, "pw", nil, ErrInvalidPID, ""},
		{"自身进程", os.Getpid(), "pw", nil, ErrInvalidPID, ""},
		{"进程不存在", 4242, "", syscall.ESRCH, ErrProcessNotFound, ""},
		{"无权限无凭据", 4242, "", syscall.EPERM, ErrSudoRequired, ""},
		{"无权限有凭据走sudo", 4242, "pw", syscall.EPERM, nil, "sudo -S -p  /bin/kill -9 4242"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &recordRunner{}
			m := NewManager(credential.NewSudo(rr))
			var killed []int
			m.kill = func(pid int, sig syscall.Signal) error {
				killed = append(killed, pid)
				if sig != syscall.SIGKILL {
					t.Errorf("signal = %v", sig)
				}
				return tt.killErr
			}

			err := m.Kill(context.Background(), tt.pid, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if errors.Is(tt.wantErr, ErrInvalidPID) && len(killed) != 0 {
				t.Errorf("signal sent for invalid pid")
			}
			if tt.wantSudo == "" {
				if len(rr.calls) != 0 {
					t.Errorf("unexpected sudo %v", rr.calls)
				}
				return
			}
			if len(rr.calls) != 1 || strings.Join(rr.calls[0], " ") != tt.wantSudo {
				t.Errorf("sudo calls = %v", rr.calls)
			}
		})
	}
}

func TestSortProcesses(t *testing.T) {
	ps := []types.ProcessInfo{
		{PID: 1, CPUPercent: 0, MemoryRSS: 10},
		{PID: 2, CPUPercent: 5, MemoryRSS: 1},
		{PID: 3, CPUPercent: 0, MemoryRSS: 99},
		{PID: 4, CPUPercent: 5, MemoryRSS: 50},
	}
	sortProcesses(ps)
	var got []int32
	for _, p := range ps {
		got = append(got, p.PID)
	}
	want := []int32{4, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListAndInfoIncludeSelf(t *testing.T) {
	m := NewManager(credential.NewSudo(&recordRunner{}))
	ctx := context.Background()

	list, err := m.List(ctx)
	if err != nil {
		t.Skipf("process listing unavailable: %v", err)
	}
	self := int32(os.Getpid())
	found := false
	for _, p := range list {
		if p.PID == self {
			found = true
			if p.Cmdline == nil {
				t.Error("cmdline should never be nil")
			}
		}
	}
	if !found {
		t.Errorf("own pid %d missing from list of %d", self, len(list))
	}

	info, err := m.Info(ctx, self)
	if err != nil {
		t.Fatal(err)
	}
	if info.PID != self || info.Name == "" {
		t.Errorf("info = %+v", info)
	}

	if _, err := m.Info(ctx, 0); !errors.Is(err, ErrInvalidPID) {
		t.Errorf("Info(0) err = %v", err)
	}
}
