package domain

import "go.trai.ch/zerr"

var (
	// ErrDuplicateTarget is returned when adding a target whose name is
	// already declared.
	ErrDuplicateTarget = zerr.New("duplicate target")

	// ErrUnknownTarget is returned when a requested name matches no target,
	// no pattern rule and no existing file.
	ErrUnknownTarget = zerr.New("unknown target")

	// ErrCyclicDependency is returned when the dependency graph contains a
	// directed cycle.
	ErrCyclicDependency = zerr.New("cyclic dependency")

	// ErrExpansionCycle is returned when variable expansion re-enters a
	// variable currently being expanded in the same call chain.
	ErrExpansionCycle = zerr.New("variable expansion cycle")

	// ErrUndefinedVariable is returned in strict mode when an expansion
	// references a variable with no definition.
	ErrUndefinedVariable = zerr.New("undefined variable")

	// ErrCommandFailed is returned when a target's command exits nonzero or
	// fails to spawn.
	ErrCommandFailed = zerr.New("command failed")

	// ErrSpecification is returned when the build specification is
	// structurally invalid.
	ErrSpecification = zerr.New("invalid specification")

	// ErrNoTargetsRequested is returned when a build is invoked without any
	// target names.
	ErrNoTargetsRequested = zerr.New("no targets requested")

	// ErrBuildExecutionFailed wraps a run in which at least one target
	// failed or was skipped. The CLI maps it to a nonzero exit code.
	ErrBuildExecutionFailed = zerr.New("build execution failed")
)
