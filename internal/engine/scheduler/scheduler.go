// Package scheduler drives a resolved subgraph to completion: it walks
// targets in dependency order, dispatches ready work to a bounded worker
// pool and aggregates write-once build results.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/expand"
	"go.trai.ch/fab/internal/engine/staleness"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Scheduler manages the execution of targets in the dependency graph.
type Scheduler struct {
	executor ports.Executor
	store    ports.FingerprintStore
	fs       ports.FileSystem
	tracer   ports.Tracer
	logger   ports.Logger
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	executor ports.Executor,
	store ports.FingerprintStore,
	fs ports.FileSystem,
	tracer ports.Tracer,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		executor: executor,
		store:    store,
		fs:       fs,
		tracer:   tracer,
		logger:   logger,
	}
}

// Run resolves the requested targets against the graph and builds the
// subgraph with bounded parallelism. The returned report holds one
// finalized result per target; the error joins every per-target failure.
func (s *Scheduler) Run(
	ctx context.Context,
	graph *domain.Graph,
	scope *domain.Scope,
	targetNames []string,
	opts domain.BuildOptions,
) (*domain.RunReport, error) {
	started := time.Now()

	sg, err := graph.Resolve(targetNames, s.fs)
	if err != nil {
		return nil, err
	}

	state, err := s.newRunState(ctx, graph, sg, scope, opts)
	if err != nil {
		return nil, err
	}

	planned := make([]string, 0, sg.Size())
	for _, t := range sg.TopologicalOrder() {
		planned = append(planned, t.Name)
	}
	s.tracer.EmitPlan(ctx, planned)

	if err := state.prestatLeaves(ctx); err != nil {
		return nil, err
	}

	runErr := state.runExecutionLoop()

	report := state.report(graph, sg, time.Since(started))
	return report, runErr
}

// result is a worker's finalized view of one target, consumed by the
// scheduling loop.
type result struct {
	target      string
	outcome     domain.Outcome
	reason      string
	err         error
	fingerprint string
	duration    time.Duration
}

// runState owns all mutable scheduling data. Every mutation (readiness
// counters, the ready queue, result finalization) happens on the loop
// goroutine; workers only execute commands and send results.
type runState struct {
	s        *Scheduler
	ctx      context.Context
	graph    *domain.Graph
	sg       *domain.Subgraph
	scope    *domain.Scope
	expander *expand.Expander
	oracle   *staleness.Oracle
	opts     domain.BuildOptions

	inDegree  map[string]int
	ready     []string
	active    int
	resultsCh chan result
	results   map[string]domain.BuildResult
	errs      error

	env []string

	prestat map[string]domain.FileInfo
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	graph *domain.Graph,
	sg *domain.Subgraph,
	scope *domain.Scope,
	opts domain.BuildOptions,
) (*runState, error) {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}

	state := &runState{
		s:         s,
		ctx:       ctx,
		graph:     graph,
		sg:        sg,
		scope:     scope,
		expander:  expand.New(s.fs, opts.StrictVars),
		opts:      opts,
		inDegree:  sg.InDegrees(),
		resultsCh: make(chan result, opts.Jobs),
		results:   make(map[string]domain.BuildResult, sg.Size()),
		prestat:   make(map[string]domain.FileInfo),
	}
	state.oracle = staleness.New(state, s.store)

	for name, degree := range state.inDegree {
		if degree == 0 {
			state.ready = append(state.ready, name)
		}
	}
	state.sortReady()

	env, err := state.exportedEnv()
	if err != nil {
		return nil, err
	}
	state.env = env

	return state, nil
}

// exportedEnv expands the exported global variables once per run into
// KEY=VALUE entries for spawned commands.
func (state *runState) exportedEnv() ([]string, error) {
	names := state.scope.ExportedNames()
	slices.Sort(names)

	env := make([]string, 0, len(names))
	for _, name := range names {
		raw, ok := state.scope.Lookup(name)
		if !ok {
			continue
		}
		val, err := state.expander.Expand(raw, state.scope)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to expand exported variable"), "variable", name)
		}
		env = append(env, name+"="+val)
	}
	return env, nil
}

// prestatLeaves stats every leaf file dependency concurrently before the
// execution loop starts, warming the run's stat cache. Target outputs are
// never cached here; they change as the run progresses.
func (state *runState) prestatLeaves(ctx context.Context) error {
	leafSet := make(map[string]bool)
	for t := range state.graph.Targets() {
		if !state.sg.Contains(t.Name) {
			continue
		}
		for _, dep := range t.Deps {
			if !state.sg.Contains(dep) {
				leafSet[dep] = true
			}
		}
	}
	if len(leafSet) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for leaf := range leafSet {
		g.Go(func() error {
			info, err := state.s.fs.Stat(leaf)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to stat dependency"), "path", leaf)
			}
			mu.Lock()
			state.prestat[leaf] = info
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Stat consults the pre-warmed leaf cache before the filesystem. runState
// implements domain.Statter for the oracle.
func (state *runState) Stat(path string) (domain.FileInfo, error) {
	if info, ok := state.prestat[path]; ok {
		return info, nil
	}
	return state.s.fs.Stat(path)
}

func (state *runState) runExecutionLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			return errors.Join(state.errs, state.ctx.Err())
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}

	return state.errs
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.opts.Jobs && state.ctx.Err() == nil {
		// The load ceiling is a polling gate: it declines to dispatch while
		// the load average is above the threshold, but always keeps at
		// least one worker busy so the run makes progress.
		if state.opts.MaxLoad > 0 && state.active > 0 && loadAverage() > state.opts.MaxLoad {
			break
		}

		name := state.ready[0]
		state.ready = state.ready[1:]
		state.active++

		t, _ := state.sg.Target(name)
		deps := state.snapshotDeps(t)
		go func() {
			state.resultsCh <- state.buildTarget(t, deps)
		}()
	}
}

// snapshotDeps captures each dependency's finalized state on the loop
// goroutine, so workers never read shared maps.
func (state *runState) snapshotDeps(t *domain.Target) []staleness.Dependency {
	deps := make([]staleness.Dependency, 0, len(t.Deps))
	for _, name := range t.Deps {
		dep := staleness.Dependency{Name: name, Path: name}
		if dt, ok := state.sg.Target(name); ok && state.sg.Contains(name) {
			dep.IsTarget = true
			dep.Path = dt.OutputPath()
			dep.Rebuilt = state.results[name].Outcome == domain.OutcomeRebuilt
		}
		deps = append(deps, dep)
	}
	return deps
}

// buildTarget runs on a worker: staleness check, command expansion and
// sequential command execution. All of a target's commands run in
// declared order; later commands may assume earlier ones' side effects.
func (state *runState) buildTarget(t *domain.Target, deps []staleness.Dependency) result {
	started := time.Now()
	ctx, span := state.s.tracer.Start(state.ctx, t.Name)

	res := state.execute(ctx, t, deps, span)
	res.duration = time.Since(started)

	switch res.outcome {
	case domain.OutcomeUpToDate:
		span.Cached()
		span.End(nil)
	default:
		span.End(res.err)
	}
	return res
}

func (state *runState) execute(ctx context.Context, t *domain.Target, deps []staleness.Dependency, span ports.Span) result {
	commands, err := state.expandCommands(t)
	if err != nil {
		return result{target: t.Name, outcome: domain.OutcomeFailed, reason: "expansion failed", err: err}
	}

	decision, err := state.oracle.Evaluate(t, deps, commands, state.opts.Force)
	if err != nil {
		return result{target: t.Name, outcome: domain.OutcomeFailed, reason: "staleness check failed", err: err}
	}
	if !decision.Stale {
		return result{target: t.Name, outcome: domain.OutcomeUpToDate}
	}

	if state.opts.DryRun {
		for _, cmd := range commands {
			_, _ = span.Write([]byte(cmd + "\n"))
		}
		return result{target: t.Name, outcome: domain.OutcomeRebuilt, reason: decision.Reason}
	}

	for i, cmd := range commands {
		if !t.Commands[i].Silent {
			_, _ = span.Write([]byte(cmd + "\n"))
		}
		err := state.s.executor.Run(ctx, cmd, state.env, span, span.Stderr())
		if err == nil {
			continue
		}
		if t.Commands[i].IgnoreError {
			_, _ = span.Stderr().Write([]byte("ignored: " + err.Error() + "\n"))
			continue
		}
		return result{
			target:  t.Name,
			outcome: domain.OutcomeFailed,
			reason:  "command failed",
			err: zerr.With(
				zerr.With(
					zerr.Wrap(errors.Join(domain.ErrCommandFailed, err), "command failed"),
					"target", t.Name,
				),
				"command", cmd,
			),
		}
	}

	return result{
		target:      t.Name,
		outcome:     domain.OutcomeRebuilt,
		reason:      decision.Reason,
		fingerprint: staleness.CommandHash(commands),
	}
}

// expandCommands expands the target's command templates against its scope,
// automatic variables included.
func (state *runState) expandCommands(t *domain.Target) ([]string, error) {
	scope := state.scope.ForTarget(state.automaticVars(t))

	commands := make([]string, len(t.Commands))
	for i, cmd := range t.Commands {
		text, err := state.expander.Expand(cmd.Text, scope)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "command expansion failed"), "target", t.Name)
		}
		commands[i] = text
	}
	return commands, nil
}

// automaticVars layers $@, $< and $^ over the target's own variables.
// Scoped variables are visible only to this target's commands; they are
// never inherited by dependencies.
func (state *runState) automaticVars(t *domain.Target) map[string]string {
	vars := make(map[string]string, len(t.Vars)+3)
	for k, v := range t.Vars {
		vars[k] = v
	}
	out := t.OutputPath()
	if out == "" {
		out = t.Name
	}
	vars["@"] = out
	if len(t.Deps) > 0 {
		vars["<"] = t.Deps[0]
	} else {
		vars["<"] = ""
	}
	vars["^"] = strings.Join(t.Deps, " ")
	return vars
}

func (state *runState) handleResult(res result) {
	state.active--

	if res.err != nil {
		state.errs = errors.Join(state.errs, res.err)
	}

	state.finalize(res.target, domain.BuildResult{
		Target:   res.target,
		Outcome:  res.outcome,
		Reason:   res.reason,
		Err:      res.err,
		Duration: res.duration,
	})

	if res.outcome == domain.OutcomeFailed {
		state.skipDependents(res.target)
		return
	}

	if res.outcome == domain.OutcomeRebuilt && res.fingerprint != "" && !state.opts.DryRun {
		state.recordFingerprint(res.target, res.fingerprint)
	}

	state.propagateReadiness(res.target)
}

// finalize records a target's build result exactly once. A result is
// never overwritten within a run.
func (state *runState) finalize(name string, br domain.BuildResult) {
	if _, done := state.results[name]; done {
		return
	}
	state.results[name] = br
}

// skipDependents transitively finalizes every not-yet-started dependent as
// skipped. Already-completed independent branches are unaffected.
func (state *runState) skipDependents(name string) {
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range state.sg.Dependents(current) {
			if _, done := state.results[dep]; done {
				continue
			}
			state.finalize(dep, domain.BuildResult{
				Target:  dep,
				Outcome: domain.OutcomeSkipped,
				Reason:  "dependency failed: " + current,
			})
			state.errs = errors.Join(state.errs, zerr.With(
				zerr.With(
					zerr.Wrap(domain.ErrBuildExecutionFailed, "target skipped"),
					"target", dep,
				),
				"failed_dependency", current,
			))
			queue = append(queue, dep)
		}
	}
}

func (state *runState) recordFingerprint(name, hash string) {
	err := state.s.store.Put(domain.Fingerprint{
		Target:      name,
		CommandHash: hash,
		Timestamp:   time.Now(),
	})
	if err != nil {
		// A stale fingerprint only causes a spurious rebuild next run;
		// not worth failing the build over.
		state.s.logger.Warn("failed to record fingerprint for " + name + ": " + err.Error())
	}
}

// propagateReadiness decrements dependents' counters and enqueues those
// whose dependencies all have finalized results.
func (state *runState) propagateReadiness(name string) {
	enqueued := false
	for _, dep := range state.sg.Dependents(name) {
		state.inDegree[dep]--
		if state.inDegree[dep] != 0 {
			continue
		}
		if _, done := state.results[dep]; done {
			// Finalized early as skipped; never dispatch it.
			continue
		}
		state.ready = append(state.ready, dep)
		enqueued = true
	}
	if enqueued {
		state.sortReady()
	}
}

// sortReady keeps dispatch order deterministic: ties among simultaneously
// ready targets break by declaration order.
func (state *runState) sortReady() {
	slices.SortFunc(state.ready, func(a, b string) int {
		return state.graph.DeclIndex(a) - state.graph.DeclIndex(b)
	})
}

// report assembles the run report in declaration order.
func (state *runState) report(graph *domain.Graph, sg *domain.Subgraph, elapsed time.Duration) *domain.RunReport {
	report := &domain.RunReport{Elapsed: elapsed}
	for t := range graph.Targets() {
		if !sg.Contains(t.Name) {
			continue
		}
		res, ok := state.results[t.Name]
		if !ok {
			// Cancelled before dispatch.
			res = domain.BuildResult{
				Target:  t.Name,
				Outcome: domain.OutcomeSkipped,
				Reason:  "run cancelled",
			}
		}
		report.Results = append(report.Results, res)
		if res.Outcome == domain.OutcomeFailed || res.Outcome == domain.OutcomeSkipped {
			report.Failed = true
		}
	}
	return report
}
