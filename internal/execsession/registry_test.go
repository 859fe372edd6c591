package execsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/websocket"
	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
)

type viewer struct {
	id   string
	mu   sync.Mutex
	msgs []json.RawMessage
}

func (v *viewer) ID() string { return v.id }

func (v *viewer) Deliver(msg []byte) bool {
	v.mu.Lock()
	v.msgs = append(v.msgs, append([]byte(nil), msg...))
	v.mu.Unlock()
	return true
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (v *viewer) events(t *testing.T) []envelope {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]envelope, 0, len(v.msgs))
	for _, m := range v.msgs {
		var e envelope
		if err := json.Unmarshal(m, &e); err != nil {
			t.Fatalf("bad message %s: %v", m, err)
		}
		out = append(out, e)
	}
	return out
}

func writeScript(t *testing.T, dir, name, body string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), mode); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitExited(t *testing.T, r *Registry, id string) types.ExecStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := r.Status(id)
		if err != nil {
			t.Fatal(err)
		}
		if !st.Running {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("process %s did not exit", id)
	return types.ExecStatus{}
}

func TestLateJoinReplaysHistory(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ab.sh", "echo a\necho b\nexit 0\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Errorf("id = %q, want 32 hex chars", id)
	}
	waitExited(t, r, id)

	v := &viewer{id: "late"}
	if err := r.Join(id, v); err != nil {
		t.Fatal(err)
	}
	evs := v.events(t)
	if len(evs) != 1 || evs[0].Event != EventHistory {
		t.Fatalf("events = %+v", evs)
	}
	var h types.ExecHistory
	if err := json.Unmarshal(evs[0].Data, &h); err != nil {
		t.Fatal(err)
	}
	if strings.Join(h.Lines, ",") != "a,b" {
		t.Errorf("lines = %q", h.Lines)
	}
	if h.Running || h.ReturnCode == nil || *h.ReturnCode != 0 {
		t.Errorf("running=%v return_code=%v", h.Running, h.ReturnCode)
	}
}

func TestLiveViewerGetsOutputThenExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", "sleep 0.3\necho one\necho two >&2\nexit 3\n", 0o755)

	hub := websocket.NewHub()
	r := NewRegistry(hub, Options{})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatal(err)
	}
	v := &viewer{id: "live"}
	if err := r.Join(id, v); err != nil {
		t.Fatal(err)
	}
	st := waitExited(t, r, id)
	if st.ReturnCode == nil || *st.ReturnCode != 3 {
		t.Fatalf("return_code = %v", st.ReturnCode)
	}

	var lines []string
	var exits int
	evs := v.events(t)
	if evs[0].Event != EventHistory {
		t.Errorf("first event = %s, want history", evs[0].Event)
	}
	var seen []string
	for _, e := range evs {
		seen = append(seen, e.Event)
		switch e.Event {
		case EventHistory:
			var h types.ExecHistory
			_ = json.Unmarshal(e.Data, &h)
			lines = append(lines, h.Lines...)
		case EventOutput:
			var o types.ExecOutput
			_ = json.Unmarshal(e.Data, &o)
			lines = append(lines, o.Line)
		case EventExit:
			exits++
			var x types.ExecExit
			_ = json.Unmarshal(e.Data, &x)
			if x.ReturnCode != 3 {
				t.Errorf("exit return_code = %d", x.ReturnCode)
			}
		}
	}
	if strings.Join(lines, ",") != "one,two" {
		t.Errorf("lines = %q", lines)
	}
	if exits != 1 || seen[len(seen)-1] != EventExit {
		t.Errorf("events = %v", seen)
	}

	r.Leave(id, v)
	if hub.RoomSize(id) != 0 {
		t.Errorf("viewer still subscribed")
	}
}

func TestLaunchRunsInScriptDirWithParams(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "pwd.sh", "pwd\nfor a in \"$@\"; do echo \"[$a]\"; done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	id, err := r.Launch(script, `one "two words"`)
	if err != nil {
		t.Fatal(err)
	}
	waitExited(t, r, id)

	v := &viewer{id: "v"}
	_ = r.Join(id, v)
	var h types.ExecHistory
	_ = json.Unmarshal(v.events(t)[0].Data, &h)

	wantDir, _ := filepath.EvalSymlinks(dir)
	if len(h.Lines) != 3 {
		t.Fatalf("lines = %q", h.Lines)
	}
	if got, _ := filepath.EvalSymlinks(h.Lines[0]); got != wantDir {
		t.Errorf("cwd = %q, want %q", h.Lines[0], wantDir)
	}
	if h.Lines[1] != "[one]" || h.Lines[2] != "[two words]" {
		t.Errorf("args = %q", h.Lines[1:])
	}
}

func TestLaunchValidation(t *testing.T) {
	dir := t.TempDir()
	plain := writeScript(t, dir, "plain.sh", "echo hi\n", 0o644)
	ok := writeScript(t, dir, "ok.sh", "echo hi\n", 0o755)

	tests := []struct {
		name   string
		path   string
		params string
		want   error
	}{
		{"路径为空", "", "", ErrPathRequired},
		{"文件不存在", filepath.Join(dir, "missing.sh"), "", ErrFileNotFound},
		{"不可执行", plain, "", ErrNotExecutable},
		{"目录", dir, "", ErrNotExecutable},
		{"参数引号未闭合", ok, `"oops`, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(websocket.NewHub(), Options{})
			var results []string
			r.Observe = func(s string) { results = append(results, s) }

			_, err := r.Launch(tt.path, tt.params)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(r.List()) != 0 {
				t.Errorf("session created on failed launch")
			}
			if len(results) != 1 || results[0] != ResultRejected {
				t.Errorf("results = %v", results)
			}
		})
	}
}

func TestTerminateTwice(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "loop.sh", "echo started\nwhile true; do sleep 0.1; done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatal(err)
	}

	first, err := r.Terminate(context.Background(), id)
	if err != nil {
		t.Fatalf("first Terminate: %v", err)
	}
	if first.AlreadyExited {
		t.Error("first Terminate reported already_exited")
	}
	st, _ := r.Status(id)
	if st.Running {
		t.Fatal("still running after Terminate")
	}

	second, err := r.Terminate(context.Background(), id)
	if err != nil {
		t.Fatalf("second Terminate: %v", err)
	}
	if !second.AlreadyExited || second.ReturnCode != first.ReturnCode {
		t.Errorf("second = %+v, first = %+v", second, first)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "stubborn.sh", "trap '' TERM\necho ready\nwhile true; do sleep 0.1; done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatal(err)
	}
	// 等待 trap 生效
	deadline := time.Now().Add(3 * time.Second)
	for {
		st, _ := r.Status(id)
		if st.LineCount > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	start := time.Now()
	res, err := r.Terminate(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < KillGrace {
		t.Errorf("returned after %v, SIGTERM should have been ignored", time.Since(start))
	}
	if res.ReturnCode != -9 {
		t.Errorf("return_code = %d, want -9", res.ReturnCode)
	}
}

func TestTerminateUnknown(t *testing.T) {
	r := NewRegistry(websocket.NewHub(), Options{})
	if _, err := r.Terminate(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := r.Status("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status err = %v", err)
	}

	v := &viewer{id: "v"}
	if err := r.Join("nope", v); !errors.Is(err, ErrNotFound) {
		t.Errorf("Join err = %v", err)
	}
	evs := v.events(t)
	if len(evs) != 1 || evs[0].Event != EventError {
		t.Fatalf("events = %+v", evs)
	}
	var e types.ExecError
	_ = json.Unmarshal(evs[0].Data, &e)
	if e.Error != "process_not_found" || e.ProcessID != "nope" {
		t.Errorf("error event = %+v", e)
	}
}

func TestBufferKeepsMostRecentLines(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "many.sh", "i=0\nwhile [ $i -lt 25 ]; do echo line$i; i=$((i+1)); done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{BufferLines: 10})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatal(err)
	}
	waitExited(t, r, id)

	v := &viewer{id: "v"}
	_ = r.Join(id, v)
	var h types.ExecHistory
	_ = json.Unmarshal(v.events(t)[0].Data, &h)
	if len(h.Lines) != 10 {
		t.Fatalf("len = %d, want 10", len(h.Lines))
	}
	for i, l := range h.Lines {
		if want := fmt.Sprintf("line%d", 15+i); l != want {
			t.Errorf("lines[%d] = %q, want %q", i, l, want)
		}
	}
}

func TestReapAndCapacity(t *testing.T) {
	dir := t.TempDir()
	quick := writeScript(t, dir, "quick.sh", "exit 0\n", 0o755)
	loop := writeScript(t, dir, "loop.sh", "while true; do sleep 0.1; done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{MaxSessions: 2, Retention: time.Minute})

	done, err := r.Launch(quick, "")
	if err != nil {
		t.Fatal(err)
	}
	waitExited(t, r, done)

	live, err := r.Launch(loop, "")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _, _ = r.Terminate(context.Background(), live) }()

	// 满员时淘汰最旧的已退出会话
	live2, err := r.Launch(loop, "")
	if err != nil {
		t.Fatalf("Launch at cap with exited session: %v", err)
	}
	defer func() { _, _ = r.Terminate(context.Background(), live2) }()
	if _, err := r.Status(done); !errors.Is(err, ErrNotFound) {
		t.Errorf("exited session not evicted: %v", err)
	}

	// 全部运行中则拒绝
	if _, err := r.Launch(loop, ""); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("err = %v, want ErrTooManySessions", err)
	}

	running, exited := r.Counts()
	if running != 2 || exited != 0 {
		t.Errorf("Counts = %d, %d", running, exited)
	}

	if _, err := r.Terminate(context.Background(), live); err != nil {
		t.Fatal(err)
	}
	if n := r.Reap(time.Now()); n != 0 {
		t.Errorf("reaped %d inside retention window", n)
	}
	if n := r.Reap(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("reaped %d, want 1", n)
	}
	if _, err := r.Status(live); !errors.Is(err, ErrNotFound) {
		t.Errorf("reaped session still present")
	}
}

func TestShutdownTerminatesLive(t *testing.T) {
	dir := t.TempDir()
	loop := writeScript(t, dir, "loop.sh", "while true; do sleep 0.1; done\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	if err := r.StartReaper(); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := r.Launch(loop, "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, id := range ids {
		if st, _ := r.Status(id); st.Running {
			t.Errorf("%s still running", id)
		}
	}
}

func TestOverlongLineDoesNotStopOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "big.sh",
		"echo before\nhead -c 1100000 /dev/zero | tr '\\000' a\necho\necho after\n", 0o755)

	r := NewRegistry(websocket.NewHub(), Options{})
	id, err := r.Launch(script, "")
	if err != nil {
		t.Fatal(err)
	}
	waitExited(t, r, id)

	v := &viewer{id: "v"}
	_ = r.Join(id, v)
	var h types.ExecHistory
	if err := json.Unmarshal(v.events(t)[0].Data, &h); err != nil {
		t.Fatal(err)
	}
	if len(h.Lines) != 4 {
		t.Fatalf("len = %d, want 4", len(h.Lines))
	}
	if h.Lines[0] != "before" || h.Lines[3] != "after" {
		t.Errorf("first/last = %q, %q", h.Lines[0], h.Lines[3])
	}
	if total := len(h.Lines[1]) + len(h.Lines[2]); total != 1100000 || len(h.Lines[1]) != maxLineBytes {
		t.Errorf("split pieces = %d + %d", len(h.Lines[1]), len(h.Lines[2]))
	}
}

func TestEvictionClosesRoom(t *testing.T) {
	dir := t.TempDir()
	quick := writeScript(t, dir, "quick.sh", "exit 0\n", 0o755)

	hub := websocket.NewHub()
	r := NewRegistry(hub, Options{Retention: time.Minute})
	id, err := r.Launch(quick, "")
	if err != nil {
		t.Fatal(err)
	}
	waitExited(t, r, id)

	v := &viewer{id: "v"}
	if err := r.Join(id, v); err != nil {
		t.Fatal(err)
	}
	if hub.RoomSize(id) != 1 {
		t.Fatalf("RoomSize = %d", hub.RoomSize(id))
	}
	if n := r.Reap(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("reaped %d", n)
	}
	if hub.RoomSize(id) != 0 {
		t.Errorf("room still has %d viewers after reap", hub.RoomSize(id))
	}
}
