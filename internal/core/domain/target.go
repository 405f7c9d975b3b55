// Package domain contains the core domain models and business logic for the
// target dependency graph.
package domain

// CommandLine is a single command template of a target.
// Text is unexpanded; variable references are substituted at execution time.
type CommandLine struct {
	// Text is the raw command text, possibly containing variable references.
	Text string
	// Silent suppresses echoing the command before it runs.
	Silent bool
	// IgnoreError continues the target's command sequence on nonzero exit.
	IgnoreError bool
}

// Target represents a build node: a named unit of work with dependencies,
// commands and target-scoped variables.
type Target struct {
	Name string
	// Deps holds declared dependency names, in declaration order. A name
	// that matches no target is treated as a leaf file dependency.
	Deps     []string
	Commands []CommandLine
	// Vars are target-scoped raw variable values, visible only while
	// expanding this target's own commands.
	Vars map[string]string
	// Phony marks a target with no filesystem artifact; it is always stale.
	Phony bool
	// Output is the filesystem path this target produces. Defaults to Name
	// for non-phony targets; empty for phony ones.
	Output string
	// FromPattern is true when the target was materialized from a pattern
	// rule rather than declared explicitly.
	FromPattern bool
}

// OutputPath returns the path the target is expected to produce, or ""
// for phony targets.
func (t *Target) OutputPath() string {
	if t.Phony {
		return ""
	}
	if t.Output != "" {
		return t.Output
	}
	return t.Name
}

// Declaration is the parser-boundary representation of a target, consumed
// as an already-validated, structurally sound unit.
type Declaration struct {
	Name     string
	Deps     []string
	Commands []CommandLine
	Vars     map[string]string
	Phony    bool
	Output   string
	// IsPattern marks a pattern-rule template (Name contains a % stem).
	IsPattern bool
}

// GlobalVar is a process-wide variable assignment from the specification.
type GlobalVar struct {
	Name string
	// Raw is the unexpanded value.
	Raw string
	// Exported variables are added to the environment of spawned commands.
	Exported bool
}
