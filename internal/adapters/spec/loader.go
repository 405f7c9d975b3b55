// Package spec provides the build-specification loader for fab.
package spec

import (
	"os"
	"strings"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.SpecLoader = (*Loader)(nil)

// Loader implements ports.SpecLoader using a YAML file.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Fabfile represents the structure of the fab.yaml specification file.
// Targets and patterns are kept as raw nodes so declaration order is
// preserved; order matters for scheduling tie-breaks and the default
// target.
type Fabfile struct {
	Vars     yaml.Node `yaml:"vars"`
	Exports  []string  `yaml:"exports"`
	Targets  yaml.Node `yaml:"targets"`
	Patterns yaml.Node `yaml:"patterns"`
}

// TargetDTO represents a target or pattern definition in the
// specification.
type TargetDTO struct {
	Deps   []string          `yaml:"deps"`
	Cmds   []CommandDTO      `yaml:"cmds"`
	Vars   map[string]string `yaml:"vars"`
	Phony  bool              `yaml:"phony"`
	Output string            `yaml:"output"`
}

// CommandDTO is one command entry: either a bare string, optionally
// prefixed with @ (silent) or - (ignore errors), or an explicit mapping.
type CommandDTO struct {
	Run         string `yaml:"run"`
	Silent      bool   `yaml:"silent"`
	IgnoreError bool   `yaml:"ignore_error"`
}

// UnmarshalYAML accepts both the scalar shorthand and the mapping form.
func (c *CommandDTO) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		text := value.Value
		for {
			if rest, ok := strings.CutPrefix(text, "@"); ok {
				c.Silent = true
				text = rest
				continue
			}
			if rest, ok := strings.CutPrefix(text, "-"); ok {
				c.IgnoreError = true
				text = rest
				continue
			}
			break
		}
		c.Run = strings.TrimSpace(text)
		return nil
	}

	type plain CommandDTO
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = CommandDTO(p)
	return nil
}

// Load reads a specification file and returns its declarations in file
// order.
func (l *Loader) Load(path string) (*ports.SpecFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read spec file")
	}

	var fabfile Fabfile
	if err := yaml.Unmarshal(data, &fabfile); err != nil {
		return nil, zerr.Wrap(err, "failed to parse spec file")
	}

	sf := &ports.SpecFile{}

	globals, err := parseGlobals(&fabfile)
	if err != nil {
		return nil, err
	}
	sf.Globals = globals

	if err := appendDeclarations(sf, &fabfile.Targets, false); err != nil {
		return nil, err
	}
	if err := appendDeclarations(sf, &fabfile.Patterns, true); err != nil {
		return nil, err
	}

	for _, d := range sf.Declarations {
		if !d.IsPattern {
			sf.Default = d.Name
			break
		}
	}

	return sf, nil
}

func parseGlobals(fabfile *Fabfile) ([]domain.GlobalVar, error) {
	if fabfile.Vars.Kind == 0 {
		return nil, nil
	}
	if fabfile.Vars.Kind != yaml.MappingNode {
		return nil, zerr.Wrap(domain.ErrSpecification, "vars must be a mapping")
	}

	exported := make(map[string]bool, len(fabfile.Exports))
	for _, name := range fabfile.Exports {
		exported[name] = true
	}

	content := fabfile.Vars.Content
	globals := make([]domain.GlobalVar, 0, len(content)/2)
	for i := 0; i+1 < len(content); i += 2 {
		name := content[i].Value
		globals = append(globals, domain.GlobalVar{
			Name:     name,
			Raw:      content[i+1].Value,
			Exported: exported[name],
		})
	}
	return globals, nil
}

func appendDeclarations(sf *ports.SpecFile, node *yaml.Node, pattern bool) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return zerr.Wrap(domain.ErrSpecification, "targets must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if name == "" {
			return zerr.Wrap(domain.ErrSpecification, "target name must not be empty")
		}
		if !pattern && strings.Contains(name, "%") {
			return zerr.With(
				zerr.Wrap(domain.ErrSpecification, "% is only valid in pattern rules"),
				"target", name,
			)
		}

		var dto TargetDTO
		if err := node.Content[i+1].Decode(&dto); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid target definition"), "target", name)
		}

		commands := make([]domain.CommandLine, len(dto.Cmds))
		for j, cmd := range dto.Cmds {
			commands[j] = domain.CommandLine{
				Text:        cmd.Run,
				Silent:      cmd.Silent,
				IgnoreError: cmd.IgnoreError,
			}
		}

		sf.Declarations = append(sf.Declarations, domain.Declaration{
			Name:      name,
			Deps:      dto.Deps,
			Commands:  commands,
			Vars:      dto.Vars,
			Phony:     dto.Phony,
			Output:    dto.Output,
			IsPattern: pattern,
		})
	}
	return nil
}
