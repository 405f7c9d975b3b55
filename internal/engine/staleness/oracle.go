// Package staleness decides, per target, whether its commands must run
// before it can be considered current.
package staleness

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
)

// Oracle evaluates the rebuild policy against the filesystem and the
// recorded command fingerprints.
type Oracle struct {
	fs    domain.Statter
	store ports.FingerprintStore
}

// New creates an Oracle. A nil store disables the fingerprint check.
func New(fs domain.Statter, store ports.FingerprintStore) *Oracle {
	return &Oracle{fs: fs, store: store}
}

// Dependency is one dependency's view at evaluation time. The scheduler
// snapshots these only after every dependency has a finalized result, so
// staleness is never evaluated against in-flight work.
type Dependency struct {
	Name string
	// Path is what to stat: the dependency target's output, or the leaf
	// file itself. Empty when there is nothing to stat (phony target).
	Path string
	// Rebuilt is true when the dependency target's result this run is
	// Rebuilt, which propagates staleness without re-statting.
	Rebuilt bool
	// IsTarget distinguishes target dependencies from leaf files.
	IsTarget bool
}

// Decision is the oracle's verdict with the first matching reason.
type Decision struct {
	Stale  bool
	Reason string
}

func stale(reason string) Decision {
	return Decision{Stale: true, Reason: reason}
}

// Evaluate decides whether the target must be rebuilt. commands is the
// target's effective (post-expansion) command text.
func (o *Oracle) Evaluate(t *domain.Target, deps []Dependency, commands []string, force bool) (Decision, error) {
	if t.Phony {
		return stale("phony target"), nil
	}
	if force {
		return stale("forced rebuild"), nil
	}

	out, err := o.fs.Stat(t.OutputPath())
	if err != nil {
		return Decision{}, zerr.With(zerr.Wrap(err, "failed to stat output"), "path", t.OutputPath())
	}
	if !out.Exists {
		return stale("output missing"), nil
	}

	for _, dep := range deps {
		if dep.Rebuilt {
			return stale("dependency rebuilt: " + dep.Name), nil
		}
		if dep.Path == "" {
			continue
		}
		info, err := o.fs.Stat(dep.Path)
		if err != nil {
			return Decision{}, zerr.With(zerr.Wrap(err, "failed to stat dependency"), "path", dep.Path)
		}
		if !info.Exists {
			if dep.IsTarget {
				// The dependency target finished without producing its
				// output; its Rebuilt flag already covered the stale case.
				continue
			}
			return Decision{}, zerr.With(
				zerr.With(
					zerr.Wrap(domain.ErrUnknownTarget, "missing file dependency"),
					"dependency", dep.Name,
				),
				"needed_by", t.Name,
			)
		}
		if info.ModTime.After(out.ModTime) {
			return stale("dependency newer than output: " + dep.Name), nil
		}
	}

	if o.store != nil {
		fp, err := o.store.Get(t.Name)
		if err != nil {
			return Decision{}, zerr.Wrap(err, "failed to read fingerprint store")
		}
		if fp != nil && fp.CommandHash != CommandHash(commands) {
			return stale("command text changed"), nil
		}
	}

	return Decision{}, nil
}

// CommandHash fingerprints the expanded command text of a target.
func CommandHash(commands []string) string {
	h := xxhash.New()
	for _, c := range commands {
		_, _ = h.WriteString(c)
		_, _ = h.WriteString("\n")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
