package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	tests := []struct {
		name         string
		spec         string
		args         []string
		expectedExit int
	}{
		{
			name: "successful build",
			spec: `
targets:
  hello:
    phony: true
    cmds:
      - "@echo hello"
`,
			args:         []string{"fab", "build", "hello"},
			expectedExit: 0,
		},
		{
			name: "failing target",
			spec: `
targets:
  broken:
    phony: true
    cmds:
      - "@exit 1"
`,
			args:         []string{"fab", "build", "broken"},
			expectedExit: 1,
		},
		{
			name:         "missing spec file",
			spec:         "",
			args:         []string{"fab", "build"},
			expectedExit: 1,
		},
		{
			name: "version",
			spec: "",
			args: []string{"fab", "version"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			if tt.spec != "" {
				require.NoError(t, os.WriteFile("fab.yaml", []byte(tt.spec), 0o644))
			}

			os.Args = tt.args
			assert.Equal(t, tt.expectedExit, run())
		})
	}
}
