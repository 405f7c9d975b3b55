package domain

import "os"

// Scope is a two-level variable lookup: an optional target layer shadowing
// an immutable global layer, with an optional fallback to the process
// environment. The global layer is populated once at load time and never
// mutated during a run.
type Scope struct {
	global      map[string]string
	exported    map[string]bool
	target      map[string]string
	envFallback bool
}

// NewGlobalScope builds the process-wide scope from the specification's
// global variable assignments. Later assignments to the same name win.
func NewGlobalScope(globals []GlobalVar, envFallback bool) *Scope {
	s := &Scope{
		global:      make(map[string]string, len(globals)),
		exported:    make(map[string]bool),
		envFallback: envFallback,
	}
	for _, g := range globals {
		s.global[g.Name] = g.Raw
		if g.Exported {
			s.exported[g.Name] = true
		}
	}
	return s
}

// ForTarget layers target-scoped variables on top of the global scope.
// The returned scope shares the global layer; it never mutates it.
func (s *Scope) ForTarget(vars map[string]string) *Scope {
	return &Scope{
		global:      s.global,
		exported:    s.exported,
		target:      vars,
		envFallback: s.envFallback,
	}
}

// Lookup resolves a variable name to its raw (unexpanded) value. Target
// scope shadows global scope; global misses fall back to the process
// environment when configured.
func (s *Scope) Lookup(name string) (string, bool) {
	if s.target != nil {
		if v, ok := s.target[name]; ok {
			return v, true
		}
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	if s.envFallback {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
	}
	return "", false
}

// ExportedNames returns the names of globals marked for export into
// spawned command environments.
func (s *Scope) ExportedNames() []string {
	names := make([]string, 0, len(s.exported))
	for name := range s.exported {
		names = append(names, name)
	}
	return names
}
