package systemd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnalyseDeCircuit/hostdeck/internal/credential"
)

type recordRunner struct {
	calls  [][]string
	stdins []string
	res    credential.Result
}

func (r *recordRunner) Run(_ context.Context, stdin, name string, args ...string) (credential.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	r.stdins = append(r.stdins, stdin)
	return r.res, nil
}

func TestServiceAction(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		action  string
		secret  string
		wantErr error
		argv    string
	}{
		{"重启服务", "nginx.service", "restart", "pw", nil, "sudo -S -p  /bin/systemctl restart nginx.service"},
		{"启用服务", "ssh", "enable", "pw", nil, "sudo -S -p  /bin/systemctl enable ssh"},
		{"非法动作", "nginx.service", "mask", "pw", ErrInvalidAction, ""},
		{"非法单元名", "nginx;reboot", "start", "pw", ErrInvalidUnit, ""},
		{"无凭据", "nginx.service", "stop", "", credential.ErrPrivilegeRequired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &recordRunner{}
			m := NewManager(credential.NewSudo(rr))
			err := m.ServiceAction(context.Background(), tt.unit, tt.action, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.argv == "" {
				if len(rr.calls) != 0 {
					t.Errorf("unexpected spawn %v", rr.calls)
				}
				return
			}
			if got := strings.Join(rr.calls[0], " "); got != tt.argv {
				t.Errorf("argv = %q, want %q", got, tt.argv)
			}
			if rr.stdins[0] != tt.secret+"\n" {
				t.Errorf("stdin does not carry the secret")
			}
		})
	}
}

func TestServiceActionFailure(t *testing.T) {
	rr := &recordRunner{res: credential.Result{Code: 5, Stderr: []byte("Unit foo.service not found.")}}
	m := NewManager(credential.NewSudo(rr))
	err := m.ServiceAction(context.Background(), "foo.service", "start", "pw")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestJournalLogs(t *testing.T) {
	t.Run("无凭据直接读取", func(t *testing.T) {
		rr := &recordRunner{res: credential.Result{Stdout: []byte("line1\nline2\n")}}
		m := NewManager(credential.NewSudo(rr))
		out, err := m.JournalLogs(context.Background(), "nginx.service", 0, "")
		if err != nil {
			t.Fatal(err)
		}
		if out != "line1\nline2\n" {
			t.Errorf("out = %q", out)
		}
		if got := strings.Join(rr.calls[0], " "); got != "/bin/journalctl -u nginx.service -n 100 --no-pager" {
			t.Errorf("argv = %q", got)
		}
	})
	t.Run("有凭据经sudo且限制行数", func(t *testing.T) {
		rr := &recordRunner{}
		m := NewManager(credential.NewSudo(rr))
		if _, err := m.JournalLogs(context.Background(), "nginx.service", 99999, "pw"); err != nil {
			t.Fatal(err)
		}
		if got := strings.Join(rr.calls[0], " "); got != "sudo -S -p  /bin/journalctl -u nginx.service -n 2000 --no-pager" {
			t.Errorf("argv = %q", got)
		}
	})
	t.Run("非法单元名", func(t *testing.T) {
		rr := &recordRunner{}
		m := NewManager(credential.NewSudo(rr))
		if _, err := m.JournalLogs(context.Background(), "../etc", 10, ""); !errors.Is(err, ErrInvalidUnit) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestReboot(t *testing.T) {
	rr := &recordRunner{}
	m := NewManager(credential.NewSudo(rr))
	if err := m.Reboot(context.Background(), ""); !errors.Is(err, credential.ErrPrivilegeRequired) {
		t.Errorf("err = %v", err)
	}
	if err := m.Reboot(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(rr.calls[0], " "); got != "sudo -S -p  /bin/systemctl reboot" {
		t.Errorf("argv = %q", got)
	}
}

func TestCreateService(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		content string
		secret  string
		wantErr error
		want    string
	}{
		{"补全后缀", "backup", "[Service]\nExecStart=/usr/local/bin/backup", "pw", nil, "backup.service"},
		{"已带后缀", "backup.service", "[Service]\nExecStart=/bin/true", "pw", nil, "backup.service"},
		{"路径穿越", "../x", "[Service]", "pw", ErrInvalidUnit, ""},
		{"隐藏文件名", ".service", "[Service]", "pw", ErrInvalidUnit, ""},
		{"空内容", "backup", "  ", "pw", ErrEmptyUnitFile, ""},
		{"无凭据", "backup", "[Service]", "", credential.ErrPrivilegeRequired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &recordRunner{}
			m := NewManager(credential.NewSudo(rr))
			unit, err := m.CreateService(context.Background(), tt.unit, tt.content, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.want == "" {
				if len(rr.calls) != 0 {
					t.Errorf("unexpected spawn %v", rr.calls)
				}
				return
			}
			if unit != tt.want {
				t.Errorf("unit = %q, want %q", unit, tt.want)
			}
			wantCalls := []string{
				"sudo -S -p  /usr/bin/tee /etc/systemd/system/" + tt.want,
				"sudo -S -p  /bin/systemctl enable " + tt.want,
				"sudo -S -p  /bin/systemctl start " + tt.want,
			}
			if len(rr.calls) != len(wantCalls) {
				t.Fatalf("calls = %v", rr.calls)
			}
			for i, want := range wantCalls {
				if got := strings.Join(rr.calls[i], " "); got != want {
					t.Errorf("call %d = %q, want %q", i, got, want)
				}
			}
			if rr.stdins[0] != "pw\n"+tt.content+"\n" {
				t.Errorf("tee stdin = %q", rr.stdins[0])
			}
		})
	}
}

func TestCreateServiceStopsOnFailure(t *testing.T) {
	rr := &recordRunner{res: credential.Result{Code: 1, Stderr: []byte("tee: Permission denied")}}
	m := NewManager(credential.NewSudo(rr))
	if _, err := m.CreateService(context.Background(), "backup", "[Service]", "pw"); err == nil {
		t.Fatal("expected error")
	}
	if len(rr.calls) != 1 {
		t.Errorf("calls after failed write = %v", rr.calls)
	}
}

func TestDeleteService(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		secret  string
		wantErr error
	}{
		{"正常删除", "backup.service", "pw", nil},
		{"非法单元名", "../../etc/passwd", "pw", ErrInvalidUnit},
		{"隐藏文件名", "..", "pw", ErrInvalidUnit},
		{"无凭据", "backup.service", "", credential.ErrPrivilegeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &recordRunner{}
			m := NewManager(credential.NewSudo(rr))
			err := m.DeleteService(context.Background(), tt.unit, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(rr.calls) != 0 {
					t.Errorf("unexpected spawn %v", rr.calls)
				}
				return
			}
			wantCalls := []string{
				"sudo -S -p  /bin/systemctl stop backup.service",
				"sudo -S -p  /bin/systemctl disable backup.service",
				"sudo -S -p  /bin/rm -f /etc/systemd/system/backup.service",
				"sudo -S -p  /bin/systemctl daemon-reload",
			}
			if len(rr.calls) != len(wantCalls) {
				t.Fatalf("calls = %v", rr.calls)
			}
			for i, want := range wantCalls {
				if got := strings.Join(rr.calls[i], " "); got != want {
					t.Errorf("call %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}
