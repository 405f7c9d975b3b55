package domain

import "time"

// FileInfo is the result of a stat query.
type FileInfo struct {
	Exists  bool
	ModTime time.Time
}

// Statter answers path existence and modification-time queries. It is the
// minimal filesystem capability the domain depends on; the full adapter
// interface lives in ports.
type Statter interface {
	Stat(path string) (FileInfo, error)
}
