package domain

// BuildOptions control a single build run.
type BuildOptions struct {
	// Jobs is the worker pool size. Zero selects the detected CPU count.
	Jobs int
	// DryRun expands and prints commands without executing them.
	DryRun bool
	// Force rebuilds every target regardless of staleness.
	Force bool
	// MaxLoad, when positive, stops the scheduler from dispatching new work
	// while the one-minute load average exceeds it.
	MaxLoad float64
	// StrictVars makes references to undefined variables an error instead
	// of expanding to empty text.
	StrictVars bool
}
