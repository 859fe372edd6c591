package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	a.Record("session-aaaaaaaaaaaa", "login", "sudo login", "10.0.0.1")
	a.Record("session-aaaaaaaaaaaa", "exec_launch", "/opt/run.sh", "10.0.0.1")

	got := a.Recent(10)
	if len(got) != 2 || got[0].Action != "exec_launch" || got[1].Action != "login" {
		t.Fatalf("Recent = %+v", got)
	}
	if got := a.Recent(1); len(got) != 1 || got[0].Action != "exec_launch" {
		t.Errorf("Recent(1) = %+v", got)
	}

	fi, err := os.Stat(filepath.Join(dir, "operations.json"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", fi.Mode().Perm())
	}

	b := New(dir)
	if err := b.Load(); err != nil {
		t.Fatal(err)
	}
	if len(b.Recent(0)) != 2 {
		t.Errorf("reloaded %d entries", len(b.Recent(0)))
	}
}

func TestBounded(t *testing.T) {
	a := New("")
	for i := 0; i < maxEntries+10; i++ {
		a.Record("s", fmt.Sprintf("a%d", i), "", "")
	}
	all := a.Recent(0)
	if len(all) != maxEntries {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].Action != fmt.Sprintf("a%d", maxEntries+9) {
		t.Errorf("newest = %s", all[0].Action)
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := New(dir).Load(); err != nil {
		t.Errorf("missing file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "operations.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := New(dir).Load(); err == nil {
		t.Error("corrupt file accepted")
	}
}
