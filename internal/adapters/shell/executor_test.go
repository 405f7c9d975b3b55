package shell

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdout(t *testing.T) {
	e := NewExecutor()
	var stdout, stderr bytes.Buffer

	err := e.Run(context.Background(), "echo hello", nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_CapturesStderr(t *testing.T) {
	e := NewExecutor()
	var stdout, stderr bytes.Buffer

	err := e.Run(context.Background(), "echo oops >&2", nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRun_EnvironmentOverlay(t *testing.T) {
	e := NewExecutor()
	var stdout, stderr bytes.Buffer

	err := e.Run(context.Background(), "echo $FAB_TEST_VAR", []string{"FAB_TEST_VAR=overlay"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "overlay\n", stdout.String())
}

func TestRun_NonzeroExit(t *testing.T) {
	e := NewExecutor()
	var stdout, stderr bytes.Buffer

	err := e.Run(context.Background(), "exit 3", nil, &stdout, &stderr)
	require.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := e.Run(ctx, "sleep 10", nil, &stdout, &stderr)
	require.Error(t, err)
}

func TestResolveEnvironment(t *testing.T) {
	sys := []string{"PATH=/bin", "HOME=/root", "LANG=C"}
	overlay := []string{"HOME=/tmp", "EXTRA=1"}

	got := resolveEnvironment(sys, overlay)

	// Overlay keys win; first-seen order is preserved; new keys append.
	assert.Equal(t, []string{"PATH=/bin", "HOME=/tmp", "LANG=C", "EXTRA=1"}, got)
}

func TestResolveEnvironment_IgnoresMalformedEntries(t *testing.T) {
	got := resolveEnvironment([]string{"VALID=1", "malformed"}, nil)
	assert.Equal(t, []string{"VALID=1"}, got)
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/bash")
	assert.Equal(t, "/bin/bash", defaultShell())

	t.Setenv("SHELL", "")
	assert.Equal(t, "/bin/sh", defaultShell())
}
