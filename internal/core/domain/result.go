package domain

import "time"

// Outcome is the finalized per-target result of a build run.
type Outcome string

const (
	// OutcomeUpToDate indicates the target needed no work.
	OutcomeUpToDate Outcome = "UpToDate"
	// OutcomeRebuilt indicates the target's commands ran (or would have, in
	// dry-run mode).
	OutcomeRebuilt Outcome = "Rebuilt"
	// OutcomeFailed indicates a command or expansion error.
	OutcomeFailed Outcome = "Failed"
	// OutcomeSkipped indicates the target was not attempted because a
	// dependency failed.
	OutcomeSkipped Outcome = "Skipped"
)

// BuildResult is the write-once outcome of one target within a run.
// It is never mutated after finalization.
type BuildResult struct {
	Target   string
	Outcome  Outcome
	Reason   string
	Err      error
	Duration time.Duration
}

// RunReport aggregates the finalized results of a build run.
type RunReport struct {
	// Results are ordered by target declaration order.
	Results []BuildResult
	Failed  bool
	Elapsed time.Duration
}

// Result returns the build result for the named target.
func (r *RunReport) Result(name string) (BuildResult, bool) {
	for _, res := range r.Results {
		if res.Target == name {
			return res, true
		}
	}
	return BuildResult{}, false
}
