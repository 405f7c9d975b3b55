// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"
)

// Executor defines the interface for running a single expanded command line.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Run executes command with the given environment ("KEY=VALUE" entries
	// layered over the process environment), streaming output to stdout and
	// stderr. It returns an error carrying the exit code on nonzero exit or
	// spawn failure.
	Run(ctx context.Context, command string, env []string, stdout, stderr io.Writer) error
}
