package ports

import (
	"context"
	"io"
)

// Tracer is the entry point for creating spans.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string) (context.Context, Span)
	// EmitPlan signals the set of targets planned for execution.
	EmitPlan(ctx context.Context, targetNames []string)
	// Close flushes the recording session.
	Close() error
}

// Span represents one target's unit of work. Writes go to the span's
// output stream.
type Span interface {
	io.Writer
	// Stderr returns the span's error output stream.
	Stderr() io.Writer
	// End completes the span; err is nil on success.
	End(err error)
	// Cached marks the span's work as skipped because it was up to date.
	Cached()
}
