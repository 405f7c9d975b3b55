package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/fab/internal/adapters/fs"
	"go.trai.ch/fab/internal/adapters/logger"
	"go.trai.ch/fab/internal/adapters/shell"
	"go.trai.ch/fab/internal/adapters/spec"
	"go.trai.ch/fab/internal/adapters/state"
	"go.trai.ch/fab/internal/adapters/telemetry"
	"go.trai.ch/fab/internal/adapters/watch"
	"go.trai.ch/fab/internal/app"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/engine/scheduler"
)

// newTestApp wires the real adapters against a temporary working
// directory, exercising the full load-resolve-schedule-execute path.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	t.Chdir(t.TempDir())

	log := logger.New()
	log.SetOutput(bytes.NewBuffer(nil))

	store, err := state.NewStore(state.DefaultPath)
	require.NoError(t, err)

	filesystem := fs.New()
	sched := scheduler.NewScheduler(
		shell.NewExecutor(),
		store,
		filesystem,
		telemetry.NewNoOpTracer(),
		log,
	)
	watcher, err := watch.NewWatcher(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Stop() })

	return app.New(spec.NewLoader(), sched, filesystem, watcher, log)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const copySpec = `
vars:
  GREETING: hello
targets:
  out.txt:
    deps: [in.txt]
    cmds:
      - "@cp in.txt out.txt"
  shout:
    phony: true
    cmds:
      - echo $(GREETING) > shouted.txt
`

func TestBuild_CreatesOutput(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	report, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{})
	require.NoError(t, err)

	res, ok := report.Result("out.txt")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeRebuilt, res.Outcome)

	data, err := os.ReadFile("out.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestBuild_SecondRunIsUpToDate(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	_, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{})
	require.NoError(t, err)

	report, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{})
	require.NoError(t, err)

	res, _ := report.Result("out.txt")
	assert.Equal(t, domain.OutcomeUpToDate, res.Outcome)
}

func TestBuild_ForceRebuilds(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	_, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{})
	require.NoError(t, err)

	report, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{Force: true})
	require.NoError(t, err)

	res, _ := report.Result("out.txt")
	assert.Equal(t, domain.OutcomeRebuilt, res.Outcome)
	assert.Equal(t, "forced rebuild", res.Reason)
}

func TestBuild_DefaultTarget(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	// No targets requested; the first declared target builds.
	report, err := a.Build(context.Background(), "fab.yaml", nil, domain.BuildOptions{})
	require.NoError(t, err)

	_, ok := report.Result("out.txt")
	assert.True(t, ok)
}

func TestBuild_TouchedLeafRebuildsChain(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", `
targets:
  top.txt:
    deps: [mid.txt]
    cmds:
      - "@cp mid.txt top.txt"
  mid.txt:
    deps: [leaf.txt]
    cmds:
      - "@cp leaf.txt mid.txt"
  unrelated.txt:
    deps: [other.txt]
    cmds:
      - "@cp other.txt unrelated.txt"
`)
	writeFile(t, "leaf.txt", "v1")
	writeFile(t, "other.txt", "keep")

	targets := []string{"top.txt", "unrelated.txt"}
	_, err := a.Build(context.Background(), "fab.yaml", targets, domain.BuildOptions{})
	require.NoError(t, err)

	// Touch the leaf forward; everything depending on it transitively
	// becomes stale, the unrelated branch does not.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes("leaf.txt", future, future))

	report, err := a.Build(context.Background(), "fab.yaml", targets, domain.BuildOptions{})
	require.NoError(t, err)

	res, _ := report.Result("mid.txt")
	assert.Equal(t, domain.OutcomeRebuilt, res.Outcome)
	res, _ = report.Result("top.txt")
	assert.Equal(t, domain.OutcomeRebuilt, res.Outcome)
	res, _ = report.Result("unrelated.txt")
	assert.Equal(t, domain.OutcomeUpToDate, res.Outcome)
}

func TestBuild_FailingCommand(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", `
targets:
  broken:
    phony: true
    cmds:
      - "@exit 7"
  dependent:
    deps: [broken]
    phony: true
    cmds:
      - echo never
`)

	report, err := a.Build(context.Background(), "fab.yaml", []string{"dependent"}, domain.BuildOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.NotNil(t, report)

	res, _ := report.Result("broken")
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	res, _ = report.Result("dependent")
	assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
}

func TestBuild_CyclicSpecification(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", `
targets:
  a: {deps: [b], phony: true}
  b: {deps: [a], phony: true}
`)

	_, err := a.Build(context.Background(), "fab.yaml", []string{"a"}, domain.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrCyclicDependency)
}

func TestBuild_PatternRule(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", `
targets:
  final:
    deps: [note.up]
    phony: true
    cmds:
      - "@cat note.up > final.txt"
patterns:
  "%.up":
    deps: ["%.txt"]
    cmds:
      - "@tr a-z A-Z < $< > $@"
`)
	writeFile(t, "note.txt", "quiet")

	_, err := a.Build(context.Background(), "fab.yaml", []string{"final"}, domain.BuildOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile("note.up")
	require.NoError(t, err)
	assert.Equal(t, "QUIET", string(data))
}

func TestClean_RemovesOutputs(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	_, err := a.Build(context.Background(), "fab.yaml", []string{"out.txt"}, domain.BuildOptions{})
	require.NoError(t, err)
	require.FileExists(t, "out.txt")

	require.NoError(t, a.Clean(context.Background(), "fab.yaml", []string{"out.txt"}))
	assert.NoFileExists(t, "out.txt")

	// Cleaning again is harmless.
	require.NoError(t, a.Clean(context.Background(), "fab.yaml", []string{"out.txt"}))
}

func TestShowGraph(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, "fab.yaml", copySpec)
	writeFile(t, "in.txt", "payload")

	var buf bytes.Buffer
	require.NoError(t, a.ShowGraph(context.Background(), "fab.yaml", []string{"out.txt"}, &buf))
	assert.Equal(t, "out.txt: [in.txt]\n", buf.String())
}

func TestShowGraph_Golden(t *testing.T) {
	// The fixture dir must be resolved before newTestApp changes the
	// working directory.
	wd, err := os.Getwd()
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir(filepath.Join(wd, "testdata")))

	a := newTestApp(t)
	writeFile(t, "fab.yaml", `
targets:
  app:
    deps: [main.o, util.o]
    cmds:
      - cc main.o util.o -o app
  main.o:
    deps: [main.c]
    cmds:
      - cc -c main.c
  util.o:
    deps: [util.c]
    cmds:
      - cc -c util.c
`)
	writeFile(t, "main.c", "int main() { return 0; }\n")
	writeFile(t, "util.c", "void util() {}\n")

	var buf bytes.Buffer
	require.NoError(t, a.ShowGraph(context.Background(), "fab.yaml", []string{"app"}, &buf))
	g.Assert(t, "show_graph", buf.Bytes())
}

func TestBuild_MissingSpec(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Build(context.Background(), "fab.yaml", nil, domain.BuildOptions{})
	require.Error(t, err)
}
