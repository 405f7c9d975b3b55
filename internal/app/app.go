// Package app implements the application layer for fab.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"go.trai.ch/fab/internal/adapters/watch" //nolint:depguard // Wired in app layer
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	specLoader ports.SpecLoader
	scheduler  *scheduler.Scheduler
	fs         ports.FileSystem
	watcher    ports.Watcher
	logger     ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.SpecLoader,
	sched *scheduler.Scheduler,
	fs ports.FileSystem,
	watcher ports.Watcher,
	logger ports.Logger,
) *App {
	return &App{
		specLoader: loader,
		scheduler:  sched,
		fs:         fs,
		watcher:    watcher,
		logger:     logger,
	}
}

// Build loads the specification at specPath and builds the requested
// targets. When no targets are requested the first declared target is
// built. The returned report is non-nil whenever scheduling started,
// including runs that finished with failures.
func (a *App) Build(
	ctx context.Context,
	specPath string,
	targetNames []string,
	opts domain.BuildOptions,
) (*domain.RunReport, error) {
	graph, scope, sf, err := a.load(specPath)
	if err != nil {
		return nil, err
	}

	if len(targetNames) == 0 {
		if sf.Default == "" {
			return nil, zerr.Wrap(domain.ErrNoTargetsRequested, "specification declares no targets")
		}
		targetNames = []string{sf.Default}
	}

	report, err := a.scheduler.Run(ctx, graph, scope, targetNames, opts)
	if report == nil {
		return nil, err
	}
	if err != nil || report.Failed {
		return report, zerr.Wrap(
			errors.Join(domain.ErrBuildExecutionFailed, err),
			"build finished with failures",
		)
	}
	return report, nil
}

// Watch builds the requested targets, then rebuilds them whenever a
// file below the working directory changes. Build failures are reported
// and watching continues; Watch returns when ctx is cancelled or the
// watcher shuts down.
func (a *App) Watch(
	ctx context.Context,
	specPath string,
	targetNames []string,
	opts domain.BuildOptions,
) error {
	if err := a.buildOnce(ctx, specPath, targetNames, opts); err != nil {
		return err
	}

	if err := a.watcher.Start(ctx, "."); err != nil {
		return err
	}
	defer func() { _ = a.watcher.Stop() }()

	rebuild := make(chan struct{}, 1)
	debouncer := watch.NewDebouncer(watch.DefaultDebounceWindow, func(paths []string) {
		for _, path := range paths {
			a.logger.Info("changed: " + path)
		}
		select {
		case rebuild <- struct{}{}:
		default:
		}
	})

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
		debouncer.Flush()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rebuild:
			if err := a.buildOnce(ctx, specPath, targetNames, opts); err != nil {
				// A load error mid-session (broken edit to the
				// specification) is reported; watching continues.
				a.logger.Error(err)
			}
		}
	}
}

// buildOnce runs a single build, swallowing per-target failures so a
// watch session survives a broken build.
func (a *App) buildOnce(
	ctx context.Context,
	specPath string,
	targetNames []string,
	opts domain.BuildOptions,
) error {
	_, err := a.Build(ctx, specPath, targetNames, opts)
	if err != nil && !errors.Is(err, domain.ErrBuildExecutionFailed) {
		return err
	}
	return nil
}

// Clean removes the outputs of the requested targets and everything
// they depend on. With no targets requested, every declared target's
// output is removed. Phony targets have no outputs and are skipped.
func (a *App) Clean(ctx context.Context, specPath string, targetNames []string) error {
	graph, _, _, err := a.load(specPath)
	if err != nil {
		return err
	}

	targets, err := a.selectTargets(graph, targetNames)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, t := range targets {
		path := t.OutputPath()
		if path == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.fs.Remove(path); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to remove output"), "path", path)
			}
			a.logger.Info("removed " + path)
			return nil
		})
	}
	return g.Wait()
}

// ShowGraph writes the dependency graph of the requested targets to w
// in topological order, one target per line.
func (a *App) ShowGraph(_ context.Context, specPath string, targetNames []string, w io.Writer) error {
	graph, _, _, err := a.load(specPath)
	if err != nil {
		return err
	}

	targets, err := a.selectTargets(graph, targetNames)
	if err != nil {
		return err
	}

	for _, t := range targets {
		if _, err := fmt.Fprintf(w, "%s: %v\n", t.Name, t.Deps); err != nil {
			return zerr.Wrap(err, "failed to write graph")
		}
	}
	return nil
}

func (a *App) load(specPath string) (*domain.Graph, *domain.Scope, *ports.SpecFile, error) {
	sf, err := a.specLoader.Load(specPath)
	if err != nil {
		return nil, nil, nil, zerr.Wrap(err, "failed to load specification")
	}

	graph, err := domain.FromDeclarations(sf.Declarations)
	if err != nil {
		return nil, nil, nil, err
	}

	scope := domain.NewGlobalScope(sf.Globals, true)
	return graph, scope, sf, nil
}

// selectTargets resolves the requested names to targets in topological
// order, defaulting to every declared target.
func (a *App) selectTargets(graph *domain.Graph, targetNames []string) ([]*domain.Target, error) {
	if len(targetNames) == 0 {
		for t := range graph.Targets() {
			targetNames = append(targetNames, t.Name)
		}
	}
	if len(targetNames) == 0 {
		return nil, zerr.Wrap(domain.ErrNoTargetsRequested, "specification declares no targets")
	}

	sg, err := graph.Resolve(targetNames, a.fs)
	if err != nil {
		return nil, err
	}
	return sg.TopologicalOrder(), nil
}
