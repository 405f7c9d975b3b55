// Package telemetry provides tracer implementations for build progress
// reporting.
package telemetry

import (
	"context"
	"io"
	"sync"

	"go.trai.ch/fab/internal/core/ports"
)

var _ ports.Tracer = (*StreamTracer)(nil)

// StreamTracer streams span output directly to a pair of writers,
// typically stdout and stderr. Writes from concurrent spans are
// serialized so lines from different targets do not interleave
// mid-line.
type StreamTracer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewStream creates a StreamTracer writing to the given streams.
func NewStream(out, errOut io.Writer) *StreamTracer {
	return &StreamTracer{
		out: out,
		err: errOut,
	}
}

// Start creates a span whose output goes straight to the tracer's
// streams.
func (t *StreamTracer) Start(ctx context.Context, _ string) (context.Context, ports.Span) {
	return ctx, &streamSpan{tracer: t}
}

// EmitPlan does nothing; plain output shows commands as they run.
func (t *StreamTracer) EmitPlan(_ context.Context, _ []string) {}

// Close does nothing.
func (t *StreamTracer) Close() error {
	return nil
}

type streamSpan struct {
	tracer *StreamTracer
}

func (s *streamSpan) Write(p []byte) (int, error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	return s.tracer.out.Write(p)
}

// Stderr returns a writer to the tracer's error stream.
func (s *streamSpan) Stderr() io.Writer {
	return &streamErrWriter{tracer: s.tracer}
}

// End does nothing; errors surface through the build report.
func (s *streamSpan) End(_ error) {}

// Cached does nothing.
func (s *streamSpan) Cached() {}

type streamErrWriter struct {
	tracer *StreamTracer
}

func (w *streamErrWriter) Write(p []byte) (int, error) {
	w.tracer.mu.Lock()
	defer w.tracer.mu.Unlock()
	return w.tracer.err.Write(p)
}
