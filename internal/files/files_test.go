package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestList(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "b.txt"), 0o644)
	mustWrite(t, filepath.Join(dir, "run.sh"), 0o755)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	// 断开的符号链接应被跳过
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "dangling")); err != nil {
		t.Fatal(err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries: %+v", len(entries), entries)
	}
	if entries[0].Name != "sub" || !entries[0].IsDirectory {
		t.Errorf("directory not first: %+v", entries[0])
	}
	if entries[0].IsExecutable {
		t.Error("directory reported as executable")
	}

	byName := map[string]bool{}
	for _, e := range entries {
		byName[e.Name] = e.IsExecutable
		if e.Path != filepath.Join(dir, e.Name) {
			t.Errorf("path = %s", e.Path)
		}
	}
	if !byName["run.sh"] {
		t.Error("run.sh should be executable")
	}
	if byName["b.txt"] {
		t.Error("b.txt should not be executable")
	}
}

func TestListErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	mustWrite(t, file, 0o644)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"空路径", "", ErrPathRequired},
		{"相对路径", "tmp", ErrPathRequired},
		{"普通文件", file, ErrNotDirectory},
		{"不存在", filepath.Join(dir, "nope"), os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := List(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("List(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func mustWrite(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}
