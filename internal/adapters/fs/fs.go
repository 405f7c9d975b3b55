// Package fs provides the filesystem adapter: stat and glob, the only
// filesystem capabilities the engine consumes.
package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSystem = (*FileSystem)(nil)

// FileSystem implements ports.FileSystem against the local filesystem.
type FileSystem struct{}

// New creates a new FileSystem adapter.
func New() *FileSystem {
	return &FileSystem{}
}

// Stat returns existence and modification time for a path. A missing path
// is not an error; it reports Exists false.
func (f *FileSystem) Stat(path string) (domain.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FileInfo{}, nil
		}
		return domain.FileInfo{}, zerr.With(zerr.Wrap(err, "stat failed"), "path", path)
	}
	return domain.FileInfo{Exists: true, ModTime: info.ModTime()}, nil
}

// Glob returns the paths matching a shell file-name pattern.
func (f *FileSystem) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "bad glob pattern"), "pattern", pattern)
	}
	return matches, nil
}

// Remove deletes a path if it exists. Used by clean.
func (f *FileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "remove failed"), "path", path)
	}
	return nil
}
