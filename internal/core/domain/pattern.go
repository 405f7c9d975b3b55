package domain

import "strings"

// PatternRule is a templated target declaration matched against file-name
// stems, e.g. output "%.o" with dependency "%.c".
type PatternRule struct {
	// Output is the output pattern; it contains exactly one % stem marker.
	Output   string
	Deps     []string
	Commands []CommandLine
	Vars     map[string]string
}

// MatchStem reports whether name matches the rule's output pattern and
// returns the text captured by the % marker.
func (p *PatternRule) MatchStem(name string) (string, bool) {
	prefix, suffix, ok := strings.Cut(p.Output, "%")
	if !ok {
		return "", false
	}
	// The stem must be non-empty.
	if len(name) <= len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// DepsFor returns the rule's dependency names with the stem substituted.
func (p *PatternRule) DepsFor(stem string) []string {
	deps := make([]string, len(p.Deps))
	for i, d := range p.Deps {
		deps[i] = strings.ReplaceAll(d, "%", stem)
	}
	return deps
}

// Instantiate materializes a concrete target for name using the given stem.
func (p *PatternRule) Instantiate(name, stem string) *Target {
	return &Target{
		Name:        name,
		Deps:        p.DepsFor(stem),
		Commands:    append([]CommandLine(nil), p.Commands...),
		Vars:        p.Vars,
		FromPattern: true,
	}
}
