package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// maxPatternDepth bounds recursive pattern materialization (a %.a target
// produced from a %.b produced from a %.c and so on).
const maxPatternDepth = 16

// Graph owns the target set, the pattern rules and the edge structure
// derived from declared dependency names. Targets and edges are immutable
// for the remainder of a run once a subgraph has been resolved.
type Graph struct {
	targets   map[string]*Target
	order     []string
	declIndex map[string]int
	patterns  []*PatternRule
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		targets:   make(map[string]*Target),
		declIndex: make(map[string]int),
	}
}

// FromDeclarations builds a graph from the parser's declaration list and
// verifies the explicit targets form a DAG. A cyclic specification fails
// here, before any command runs.
func FromDeclarations(decls []Declaration) (*Graph, error) {
	g := NewGraph()
	for _, d := range decls {
		if d.IsPattern {
			p, err := patternFromDeclaration(d)
			if err != nil {
				return nil, err
			}
			g.AddPattern(p)
			continue
		}
		t := &Target{
			Name:     d.Name,
			Deps:     d.Deps,
			Commands: d.Commands,
			Vars:     d.Vars,
			Phony:    d.Phony,
			Output:   d.Output,
		}
		if err := g.AddTarget(t); err != nil {
			return nil, err
		}
	}
	if cycles := g.DetectCycles(nil); len(cycles) > 0 {
		return nil, CycleError(cycles[0])
	}
	return g, nil
}

func patternFromDeclaration(d Declaration) (*PatternRule, error) {
	if strings.Count(d.Name, "%") != 1 {
		return nil, zerr.With(zerr.Wrap(ErrSpecification, ""), "pattern", d.Name)
	}
	return &PatternRule{
		Output:   d.Name,
		Deps:     d.Deps,
		Commands: d.Commands,
		Vars:     d.Vars,
	}, nil
}

// AddTarget adds a target to the graph. A second explicit declaration of
// the same name is an error; when an explicit target and a
// pattern-materialized one collide, the explicit one wins.
func (g *Graph) AddTarget(t *Target) error {
	existing, ok := g.targets[t.Name]
	if !ok {
		g.targets[t.Name] = t
		g.declIndex[t.Name] = len(g.order)
		g.order = append(g.order, t.Name)
		return nil
	}
	if existing.FromPattern && !t.FromPattern {
		// Explicit declaration replaces the materialized target but keeps
		// its declaration slot.
		g.targets[t.Name] = t
		return nil
	}
	if t.FromPattern {
		return nil
	}
	return zerr.With(zerr.Wrap(ErrDuplicateTarget, ""), "target", t.Name)
}

// AddPattern registers a pattern rule. Rules are tried in declaration
// order during materialization.
func (g *Graph) AddPattern(p *PatternRule) {
	g.patterns = append(g.patterns, p)
}

// Target returns the named target.
func (g *Graph) Target(name string) (*Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// TargetCount returns the number of targets, materialized ones included.
func (g *Graph) TargetCount() int {
	return len(g.targets)
}

// Targets returns an iterator over targets in declaration order.
func (g *Graph) Targets() iter.Seq[*Target] {
	return func(yield func(*Target) bool) {
		for _, name := range g.order {
			if !yield(g.targets[name]) {
				return
			}
		}
	}
}

// DeclIndex returns the declaration index of the named target. Unknown
// names sort last.
func (g *Graph) DeclIndex(name string) int {
	if i, ok := g.declIndex[name]; ok {
		return i
	}
	return len(g.order)
}

// DetectCycles runs a depth-first search with an explicit recursion stack
// and returns every back-edge as a cycle path. When within is non-nil the
// search is restricted to that member set. Dependency names that are not
// targets are file leaves and cannot participate in a cycle.
func (g *Graph) DetectCycles(within map[string]bool) [][]string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.targets))
	var path []string
	var cycles [][]string

	var visit func(u string)
	visit = func(u string) {
		state[u] = visiting
		path = append(path, u)
		for _, dep := range g.targets[u].Deps {
			if within != nil && !within[dep] {
				continue
			}
			if _, ok := g.targets[dep]; !ok {
				continue
			}
			switch state[dep] {
			case visiting:
				cycles = append(cycles, cyclePath(path, dep))
			case unvisited:
				visit(dep)
			}
		}
		path = path[:len(path)-1]
		state[u] = done
	}

	for _, name := range g.order {
		if within != nil && !within[name] {
			continue
		}
		if state[name] == unvisited {
			visit(name)
		}
	}
	return cycles
}

// cyclePath slices the recursion stack from the back-edge's entry to the
// current node and closes the loop.
func cyclePath(path []string, dep string) []string {
	start := slices.Index(path, dep)
	cycle := slices.Clone(path[start:])
	return append(cycle, dep)
}

// CycleError builds the load-time error naming one representative cycle.
func CycleError(cycle []string) error {
	return zerr.With(zerr.Wrap(ErrCyclicDependency, ""), "cycle", strings.Join(cycle, " -> "))
}

// Subgraph is the set of targets reachable from a build request, with
// reverse edges precomputed for readiness propagation.
type Subgraph struct {
	graph      *Graph
	roots      []string
	members    map[string]bool
	dependents map[string][]string
}

// Resolve returns the subgraph reachable from the requested names,
// materializing pattern rules for names they require. A requested name
// matching no target, no pattern and no existing file fails with
// ErrUnknownTarget. The materialized subgraph is re-checked for cycles so
// the DAG invariant covers pattern-derived edges too.
func (g *Graph) Resolve(names []string, fs Statter) (*Subgraph, error) {
	if len(names) == 0 {
		return nil, ErrNoTargetsRequested
	}

	sg := &Subgraph{
		graph:      g,
		roots:      slices.Clone(names),
		members:    make(map[string]bool),
		dependents: make(map[string][]string),
	}

	var queue []string
	for _, name := range names {
		if g.ensureTarget(name, fs, 0) {
			queue = append(queue, name)
			continue
		}
		if info, err := fs.Stat(name); err == nil && info.Exists {
			// A plain file is trivially current; nothing to schedule.
			continue
		}
		return nil, zerr.With(zerr.Wrap(ErrUnknownTarget, ""), "target", name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if sg.members[name] {
			continue
		}
		sg.members[name] = true

		for _, dep := range g.targets[name].Deps {
			if !g.ensureTarget(dep, fs, 0) {
				continue // leaf file dependency
			}
			sg.dependents[dep] = append(sg.dependents[dep], name)
			if !sg.members[dep] {
				queue = append(queue, dep)
			}
		}
	}

	if cycles := g.DetectCycles(sg.members); len(cycles) > 0 {
		return nil, CycleError(cycles[0])
	}
	return sg, nil
}

// ensureTarget reports whether name is buildable as a target,
// materializing it from a pattern rule when needed.
func (g *Graph) ensureTarget(name string, fs Statter, depth int) bool {
	if _, ok := g.targets[name]; ok {
		return true
	}
	if depth >= maxPatternDepth {
		return false
	}
	for _, p := range g.patterns {
		stem, ok := p.MatchStem(name)
		if !ok {
			continue
		}
		if !g.inputsBuildable(p.DepsFor(stem), fs, depth) {
			continue
		}
		// No explicit target with this name exists, so AddTarget can only
		// take the insert path.
		_ = g.AddTarget(p.Instantiate(name, stem))
		return true
	}
	return false
}

func (g *Graph) inputsBuildable(deps []string, fs Statter, depth int) bool {
	for _, dep := range deps {
		if _, ok := g.targets[dep]; ok {
			continue
		}
		if info, err := fs.Stat(dep); err == nil && info.Exists {
			continue
		}
		if !g.ensureTarget(dep, fs, depth+1) {
			return false
		}
	}
	return true
}

// Roots returns the requested target names.
func (sg *Subgraph) Roots() []string {
	return sg.roots
}

// Contains reports whether the named target is part of the subgraph.
func (sg *Subgraph) Contains(name string) bool {
	return sg.members[name]
}

// Size returns the number of targets in the subgraph.
func (sg *Subgraph) Size() int {
	return len(sg.members)
}

// Dependents returns the subgraph members that depend on the named target.
func (sg *Subgraph) Dependents(name string) []string {
	return sg.dependents[name]
}

// Target returns the named target from the underlying graph.
func (sg *Subgraph) Target(name string) (*Target, bool) {
	t, ok := sg.graph.targets[name]
	return t, ok
}

// InDegrees returns each member's dependency count within the subgraph.
func (sg *Subgraph) InDegrees() map[string]int {
	inDegree := make(map[string]int, len(sg.members))
	for name := range sg.members {
		degree := 0
		for _, dep := range sg.graph.targets[name].Deps {
			if sg.members[dep] {
				degree++
			}
		}
		inDegree[name] = degree
	}
	return inDegree
}

// TopologicalOrder returns the subgraph's targets via Kahn's algorithm:
// nodes whose in-degree reaches zero are repeatedly removed and appended.
// Ties among simultaneously ready nodes break by declaration order, so the
// output is stable across runs.
func (sg *Subgraph) TopologicalOrder() []*Target {
	inDegree := sg.InDegrees()

	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sg.sortByDeclaration(ready)

	out := make([]*Target, 0, len(sg.members))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, sg.graph.targets[name])

		freed := false
		for _, dep := range sg.dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
				freed = true
			}
		}
		if freed {
			sg.sortByDeclaration(ready)
		}
	}
	return out
}

func (sg *Subgraph) sortByDeclaration(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		return sg.graph.DeclIndex(a) - sg.graph.DeclIndex(b)
	})
}
