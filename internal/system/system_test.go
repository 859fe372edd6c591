package system

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"PRETTY_NAME优先", "NAME=\"Ubuntu\"\nVERSION=\"22.04\"\nPRETTY_NAME=\"Ubuntu 22.04.4 LTS\"\n", "Ubuntu 22.04.4 LTS"},
		{"NAME与VERSION", "NAME=Debian\nVERSION='12 (bookworm)'\n", "Debian 12 (bookworm)"},
		{"只有NAME", "NAME=Arch Linux\n", "Arch Linux"},
		{"空文件", "", runtime.GOOS},
		{"忽略无等号行", "# comment\nNAME=Alpine\n", "Alpine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOSRelease(strings.NewReader(tt.input)); got != tt.want {
				t.Errorf("parseOSRelease() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	info := Info(context.Background())
	if info.Hostname == "" || info.Arch == "" || info.OS == "" {
		t.Errorf("incomplete info: %+v", info)
	}
}
