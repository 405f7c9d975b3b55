// Package expand implements variable expansion over build specification
// text: $(NAME) references, substitution references, and the wildcard and
// subst built-ins.
package expand

import (
	"slices"
	"strings"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
)

// Expander resolves raw specification text into fully substituted text
// against a variable scope.
type Expander struct {
	fs     ports.FileSystem
	strict bool
}

// New creates an Expander. In strict mode references to undefined
// variables fail instead of expanding to empty text.
func New(fs ports.FileSystem, strict bool) *Expander {
	return &Expander{fs: fs, strict: strict}
}

// Expand substitutes every variable reference in raw using the given
// scope. Nested references resolve innermost-first. Cycles are tracked
// per call, so concurrent expansions of unrelated variables never collide.
func (e *Expander) Expand(raw string, scope *domain.Scope) (string, error) {
	return e.expand(raw, scope, make(map[string]bool))
}

// expand threads the in-progress set through the recursion; entering a
// variable already in the set is an expansion cycle.
func (e *Expander) expand(raw string, scope *domain.Scope, inProgress map[string]bool) (string, error) {
	var b strings.Builder
	for i := 0; i < len(raw); {
		if raw[i] != '$' {
			b.WriteByte(raw[i])
			i++
			continue
		}
		if i+1 >= len(raw) {
			b.WriteByte('$')
			break
		}
		next := raw[i+1]
		switch next {
		case '$':
			b.WriteByte('$')
			i += 2
		case '(', '{':
			end, ok := matchDelim(raw, i+1)
			if !ok {
				return "", zerr.With(
					zerr.Wrap(domain.ErrSpecification, "unterminated variable reference"),
					"text", raw,
				)
			}
			// Innermost-first: the reference text is itself expanded before
			// interpretation, so $(A_$(B)) looks up the concatenated name.
			inner, err := e.expand(raw[i+2:end], scope, inProgress)
			if err != nil {
				return "", err
			}
			val, err := e.resolveRef(inner, scope, inProgress)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = end + 1
		default:
			// Single-character reference: automatic variables $@ $< $^.
			val, err := e.lookup(string(next), scope, inProgress)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += 2
		}
	}
	return b.String(), nil
}

// resolveRef interprets the already-expanded text of one $(...) reference.
// The built-ins are pure functions over that text; they do not recurse
// into variable lookup.
func (e *Expander) resolveRef(ref string, scope *domain.Scope, inProgress map[string]bool) (string, error) {
	if pat, ok := strings.CutPrefix(ref, "wildcard "); ok {
		return e.wildcard(pat)
	}
	if args, ok := strings.CutPrefix(ref, "subst "); ok {
		return subst(args)
	}
	if name, repl, ok := strings.Cut(ref, ":"); ok {
		if from, to, ok := strings.Cut(repl, "="); ok {
			val, err := e.lookup(name, scope, inProgress)
			if err != nil {
				return "", err
			}
			return substituteSuffix(val, from, to), nil
		}
	}
	return e.lookup(ref, scope, inProgress)
}

// lookup resolves a variable name and expands its raw value, guarding
// against re-entry within the same call chain.
func (e *Expander) lookup(name string, scope *domain.Scope, inProgress map[string]bool) (string, error) {
	if inProgress[name] {
		return "", zerr.With(zerr.Wrap(domain.ErrExpansionCycle, ""), "variable", name)
	}
	raw, ok := scope.Lookup(name)
	if !ok {
		if e.strict {
			return "", zerr.With(zerr.Wrap(domain.ErrUndefinedVariable, ""), "variable", name)
		}
		return "", nil
	}
	inProgress[name] = true
	defer delete(inProgress, name)
	return e.expand(raw, scope, inProgress)
}

// wildcard expands each space-separated pattern over the filesystem.
// Matches are sorted for deterministic output.
func (e *Expander) wildcard(patterns string) (string, error) {
	var matches []string
	for _, pat := range strings.Fields(patterns) {
		m, err := e.fs.Glob(pat)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "wildcard expansion failed"), "pattern", pat)
		}
		matches = append(matches, m...)
	}
	slices.Sort(matches)
	return strings.Join(matches, " "), nil
}

// subst implements $(subst from,to,text).
func subst(args string) (string, error) {
	parts := strings.SplitN(args, ",", 3)
	if len(parts) != 3 {
		return "", zerr.With(
			zerr.Wrap(domain.ErrSpecification, "subst requires three arguments"),
			"args", args,
		)
	}
	return strings.ReplaceAll(parts[2], parts[0], parts[1]), nil
}

// substituteSuffix implements the substitution reference $(VAR:.c=.o):
// every whitespace-separated word ending in from gets the suffix swapped.
func substituteSuffix(val, from, to string) string {
	words := strings.Fields(val)
	for i, w := range words {
		if rest, ok := strings.CutSuffix(w, from); ok {
			words[i] = rest + to
		}
	}
	return strings.Join(words, " ")
}

// matchDelim finds the closing delimiter for the opener at open,
// accounting for nested references of the same kind.
func matchDelim(s string, open int) (int, bool) {
	openCh := s[open]
	closeCh := byte(')')
	if openCh == '{' {
		closeCh = '}'
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
