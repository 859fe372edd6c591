// Package files 提供目录浏览功能
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnalyseDeCircuit/hostdeck/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var (
	// ErrNotDirectory 路径不是目录
	ErrNotDirectory = errors.New("not a directory")
	// ErrPathRequired 需要绝对路径
	ErrPathRequired = errors.New("absolute path required")
)

// List 列出目录内容，目录在前，按名称排序
// 无法读取元数据的条目会被跳过
func List(dir string) ([]types.FileEntry, error) {
	if dir == "" || !filepath.IsAbs(dir) {
		return nil, ErrPathRequired
	}
	dir = filepath.Clean(dir)

	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]types.FileEntry, 0, len(dirents))
	skipped := 0
	for _, d := range dirents {
		full := filepath.Join(dir, d.Name())
		// 跟随符号链接，断链跳过
		info, err := os.Stat(full)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, types.FileEntry{
			Name:         d.Name(),
			Path:         full,
			IsDirectory:  info.IsDir(),
			IsExecutable: info.Mode().IsRegular() && unix.Access(full, unix.X_OK) == nil,
			Size:         info.Size(),
			Mode:         info.Mode().String(),
			Modified:     info.ModTime(),
		})
	}
	if skipped > 0 {
		log.Debug().Str("dir", dir).Int("skipped", skipped).Msg("unreadable entries skipped")
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
