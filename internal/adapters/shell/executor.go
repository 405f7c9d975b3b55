// Package shell provides the shell executor adapter.
package shell

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor by handing the command line to the
// system shell. The engine performs no shell interpretation of its own;
// the expanded text is passed through verbatim.
type Executor struct {
	shell string
}

// NewExecutor creates a new shell Executor.
func NewExecutor() *Executor {
	return &Executor{shell: defaultShell()}
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Run executes command via `sh -c` with env layered over the process
// environment. Output streams to the given writers. Nonzero exit and
// spawn failures return an error carrying the exit code.
func (e *Executor) Run(ctx context.Context, command string, env []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, e.shell, "-c", command) //nolint:gosec // user provided command

	cmd.Env = resolveEnvironment(os.Environ(), env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitCode int
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1 // spawn failure or signal
		}
		return zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
	}

	return nil
}

// resolveEnvironment merges the overlay entries over the system
// environment; overlay keys win.
func resolveEnvironment(sysEnv, overlay []string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(overlay))
	order := make([]string, 0, len(sysEnv)+len(overlay))

	set := func(entry string) {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return
		}
		if _, seen := envMap[k]; !seen {
			order = append(order, k)
		}
		envMap[k] = v
	}
	for _, entry := range sysEnv {
		set(entry)
	}
	for _, entry := range overlay {
		set(entry)
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+envMap[k])
	}
	return result
}
