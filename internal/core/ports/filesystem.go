package ports

import "go.trai.ch/fab/internal/core/domain"

// FileSystem is the low-level filesystem capability the engine consumes:
// stat and glob, nothing else.
//
//go:generate go run go.uber.org/mock/mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	domain.Statter

	// Glob returns the paths matching a shell file-name pattern.
	Glob(pattern string) ([]string, error)

	// Remove deletes a path; a missing path is not an error.
	Remove(path string) error
}
