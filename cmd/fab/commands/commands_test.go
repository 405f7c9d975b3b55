package commands_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/fab/cmd/fab/commands"
	"go.trai.ch/fab/internal/adapters/telemetry"
	"go.trai.ch/fab/internal/app"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/core/ports/mocks"
	"go.trai.ch/fab/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type cliMocks struct {
	loader   *mocks.MockSpecLoader
	executor *mocks.MockExecutor
	store    *mocks.MockFingerprintStore
	fs       *mocks.MockFileSystem
}

func setupCLI(t *testing.T) (*commands.CLI, cliMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := cliMocks{
		loader:   mocks.NewMockSpecLoader(ctrl),
		executor: mocks.NewMockExecutor(ctrl),
		store:    mocks.NewMockFingerprintStore(ctrl),
		fs:       mocks.NewMockFileSystem(ctrl),
	}
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()

	sched := scheduler.NewScheduler(
		m.executor, m.store, m.fs, telemetry.NewNoOpTracer(), logger,
	)
	a := app.New(m.loader, sched, m.fs, mocks.NewMockWatcher(ctrl), logger)
	return commands.New(a), m
}

func phonySpec(names ...string) *ports.SpecFile {
	sf := &ports.SpecFile{}
	for _, name := range names {
		sf.Declarations = append(sf.Declarations, domain.Declaration{
			Name:     name,
			Phony:    true,
			Commands: []domain.CommandLine{{Text: "echo " + name}},
		})
	}
	if len(names) > 0 {
		sf.Default = names[0]
	}
	return sf
}

func TestBuildCommand(t *testing.T) {
	cli, m := setupCLI(t)

	m.loader.EXPECT().Load("fab.yaml").Return(phonySpec("greet"), nil)
	m.executor.EXPECT().Run(
		gomock.Any(), "echo greet", gomock.Any(), gomock.Any(), gomock.Any(),
	).Return(nil)
	m.store.EXPECT().Put(gomock.Any()).Return(nil)

	var out, errOut bytes.Buffer
	cli.SetOutput(&out, &errOut)
	cli.SetArgs([]string{"build", "greet"})

	require.NoError(t, cli.Execute(context.Background()))
}

func TestBuildCommand_CustomSpecFile(t *testing.T) {
	cli, m := setupCLI(t)

	m.loader.EXPECT().Load("other.yaml").Return(phonySpec("greet"), nil)
	m.executor.EXPECT().Run(
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
	).Return(nil)
	m.store.EXPECT().Put(gomock.Any()).Return(nil)

	cli.SetOutput(io.Discard, io.Discard)
	cli.SetArgs([]string{"build", "-f", "other.yaml", "greet"})

	require.NoError(t, cli.Execute(context.Background()))
}

func TestBuildCommand_DefaultTarget(t *testing.T) {
	cli, m := setupCLI(t)

	m.loader.EXPECT().Load("fab.yaml").Return(phonySpec("first", "second"), nil)
	m.executor.EXPECT().Run(
		gomock.Any(), "echo first", gomock.Any(), gomock.Any(), gomock.Any(),
	).Return(nil)
	m.store.EXPECT().Put(gomock.Any()).Return(nil)

	cli.SetOutput(io.Discard, io.Discard)
	cli.SetArgs([]string{"build"})

	require.NoError(t, cli.Execute(context.Background()))
}

func TestBuildCommand_FailureSummary(t *testing.T) {
	cli, m := setupCLI(t)

	m.loader.EXPECT().Load("fab.yaml").Return(phonySpec("broken"), nil)
	m.executor.EXPECT().Run(
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
	).Return(assert.AnError)

	var out, errOut bytes.Buffer
	cli.SetOutput(&out, &errOut)
	cli.SetArgs([]string{"build", "broken"})

	err := cli.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	assert.Contains(t, errOut.String(), "target 'broken' failed")
}

func TestBuildCommand_DryRun(t *testing.T) {
	// No executor or store expectations; a dispatch would fail the test.
	cli, m := setupCLI(t)
	m.loader.EXPECT().Load("fab.yaml").Return(phonySpec("greet"), nil)

	cli.SetOutput(io.Discard, io.Discard)
	cli.SetArgs([]string{"build", "--dry-run", "greet"})

	require.NoError(t, cli.Execute(context.Background()))
}

func TestGraphCommand(t *testing.T) {
	cli, m := setupCLI(t)

	sf := &ports.SpecFile{
		Declarations: []domain.Declaration{
			{Name: "a", Deps: []string{"b"}, Phony: true},
			{Name: "b", Phony: true},
		},
		Default: "a",
	}
	m.loader.EXPECT().Load("fab.yaml").Return(sf, nil)

	var out bytes.Buffer
	cli.SetOutput(&out, io.Discard)
	cli.SetArgs([]string{"graph", "a"})

	require.NoError(t, cli.Execute(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{"b: []", "a: [b]"}, lines)
}

func TestCleanCommand(t *testing.T) {
	cli, m := setupCLI(t)

	sf := &ports.SpecFile{
		Declarations: []domain.Declaration{
			{Name: "out.bin", Commands: []domain.CommandLine{{Text: "true"}}},
		},
		Default: "out.bin",
	}
	m.loader.EXPECT().Load("fab.yaml").Return(sf, nil)
	m.fs.EXPECT().Remove("out.bin").Return(nil)

	cli.SetOutput(io.Discard, io.Discard)
	cli.SetArgs([]string{"clean", "out.bin"})

	require.NoError(t, cli.Execute(context.Background()))
}

func TestVersionCommand(t *testing.T) {
	cli, _ := setupCLI(t)

	var out bytes.Buffer
	cli.SetOutput(&out, io.Discard)
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, out.String(), "fab version")
}

func TestUnknownTarget(t *testing.T) {
	cli, m := setupCLI(t)

	m.loader.EXPECT().Load("fab.yaml").Return(phonySpec("known"), nil)
	m.fs.EXPECT().Stat("unknown").Return(domain.FileInfo{}, nil)

	cli.SetOutput(io.Discard, io.Discard)
	cli.SetArgs([]string{"build", "unknown"})

	err := cli.Execute(context.Background())
	require.ErrorIs(t, err, domain.ErrUnknownTarget)
}
