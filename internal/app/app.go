// Package app wires linthost together: configuration, logging, the process
// runner, the check orchestrator, diagnostic sinks, the optional Lua filter,
// metrics and the file watcher.
package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/linthost/internal/config"
	"github.com/dshills/linthost/internal/diagnostics"
	"github.com/dshills/linthost/internal/integration/process"
	"github.com/dshills/linthost/internal/lint"
	"github.com/dshills/linthost/internal/logging"
	"github.com/dshills/linthost/internal/metrics"
	"github.com/dshills/linthost/internal/plugin/lua"
	"github.com/dshills/linthost/internal/watch"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. A missing file means defaults.
	ConfigPath string

	// LogLevel overrides the configured level when set.
	LogLevel string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Sinks receive annotations in addition to the built-in store.
	Sinks []lint.Sink

	// Runner replaces the supervised process runner.
	Runner lint.Runner

	// OnCheckCompleted is called on the orchestrator goroutine after every
	// finished check.
	OnCheckCompleted func(lint.CheckResult)
}

// App is the composed linthost application.
type App struct {
	config   *config.Config
	log      *logging.Logger
	registry *prometheus.Registry

	supervisor   *process.Supervisor
	store        *diagnostics.Store
	filter       *lua.Filter
	metrics      *metrics.Metrics
	orchestrator *lint.Orchestrator

	onCompleted func(lint.CheckResult)

	mu      sync.Mutex
	waiters []chan lint.CheckResult
	pending map[string]int

	shutdownOnce sync.Once
}

// New loads the configuration named by opts and builds the application.
func New(opts Options) (*App, error) {
	cfg, err := config.NewLoader().Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	return NewWithConfig(cfg, opts)
}

// NewWithConfig builds the application from an already loaded config.
func NewWithConfig(cfg *config.Config, opts Options) (*App, error) {
	level := cfg.LogLevel()
	if opts.LogLevel != "" {
		l, ok := logging.ParseLevel(opts.LogLevel)
		if !ok {
			return nil, &InitError{Component: "logging", Err: &config.FieldError{
				Field: "log-level", Value: opts.LogLevel, Message: "must be debug, info, warn or error",
			}}
		}
		level = l
	}
	log := logging.New(logging.Config{Level: level, Output: opts.LogOutput})

	a := &App{
		config:      cfg,
		log:         log,
		registry:    prometheus.NewRegistry(),
		store:       diagnostics.NewStore(),
		onCompleted: opts.OnCheckCompleted,
		pending:     make(map[string]int),
	}

	// 1. Metrics
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	// 2. Process runner
	runner := opts.Runner
	if runner == nil {
		a.supervisor = process.NewSupervisor(
			process.WithMaxProcesses(1),
			process.WithSupervisorLogger(log),
		)
		rc := process.DefaultRunnerConfig()
		rc.Shell = cfg.Lint.Shell
		rc.CaptureStderr = cfg.Lint.CaptureStderr
		rc.Timeout = cfg.LintTimeout()
		runner = process.NewRunner(a.supervisor, rc)
	}

	// 3. Filter script
	if cfg.Script.Path != "" {
		f, err := lua.LoadFilter(cfg.Script.Path,
			lua.WithFilterLogger(log),
			lua.WithFilterTimeout(cfg.ScriptTimeout()),
		)
		if err != nil {
			return nil, &InitError{Component: "filter script", Err: err}
		}
		a.filter = f
	}

	// 4. Orchestrator
	sinks := diagnostics.Multi{a.store}
	sinks = append(sinks, opts.Sinks...)

	orchOpts := []lint.Option{
		lint.WithTools(cfg.LintTools()),
		lint.WithLogger(log),
		lint.WithObserver(a.metrics),
		lint.WithCheckCompleted(a.checkCompleted),
	}
	if a.filter != nil {
		orchOpts = append(orchOpts, lint.WithFilter(a.filter))
	}
	a.orchestrator = lint.NewOrchestrator(runner, sinks, orchOpts...)

	log.Debug("application initialized",
		"config", cfg.Source,
		"tools", len(cfg.Tools),
		"shell", cfg.Lint.Shell,
		"filter", cfg.Script.Path,
	)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger {
	return a.log
}

// Store returns the diagnostic store.
func (a *App) Store() *diagnostics.Store {
	return a.store
}

// Orchestrator returns the check orchestrator.
func (a *App) Orchestrator() *lint.Orchestrator {
	return a.orchestrator
}

// Metrics returns the metrics observer.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Registry returns the Prometheus registry holding the application metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// RequestCheck opens path in the store and queues a check for it. The file
// is closed again when its last queued check comes back clean, so the store
// only holds files with diagnostics or checks outstanding.
func (a *App) RequestCheck(path string) {
	a.mu.Lock()
	a.pending[filepath.Clean(path)]++
	a.mu.Unlock()

	a.store.Open(path)
	a.orchestrator.RequestCheck(path)
}

// Checkable reports whether path has one of the configured lint extensions.
// An empty extension list accepts every file.
func (a *App) Checkable(path string) bool {
	exts := a.config.Extensions()
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Check runs the orchestrator until every path has been checked once and
// returns the results in completion order. Paths are checked in the given
// order; duplicates are checked twice. Paths without a configured lint
// extension are skipped with a warning.
func (a *App) Check(ctx context.Context, paths []string) ([]lint.CheckResult, error) {
	paths = a.checkable(paths)
	if len(paths) == 0 {
		return nil, nil
	}

	results := make(chan lint.CheckResult, len(paths))
	a.addWaiter(results)
	defer a.removeWaiter(results)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.orchestrator.Run(ctx)
	}()

	for _, p := range paths {
		a.RequestCheck(p)
	}

	out := make([]lint.CheckResult, 0, len(paths))
	for len(out) < len(paths) {
		select {
		case res := <-results:
			out = append(out, res)
		case err := <-runErr:
			return out, err
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}

	cancel()
	<-runErr
	return out, nil
}

// Watch checks matching files under roots whenever they change, until ctx
// is cancelled. When metrics.addr is configured the metrics endpoint is
// served alongside.
func (a *App) Watch(ctx context.Context, roots []string) error {
	wcfg := watch.Config{
		Extensions: a.config.Extensions(),
		IgnoreDirs: a.config.Watch.Ignore,
		Debounce:   a.config.WatchDebounce(),
	}
	w, err := watch.New(a, wcfg, a.log)
	if err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	for _, root := range roots {
		if err := w.Add(root); err != nil {
			w.Close()
			return &InitError{Component: "watcher", Err: err}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCancel(a.orchestrator.Run(gctx))
	})
	g.Go(func() error {
		return w.Run(gctx)
	})
	if addr := a.config.Metrics.Addr; addr != "" {
		g.Go(func() error {
			a.log.Info("serving metrics", "addr", addr)
			return a.metrics.Serve(gctx, addr)
		})
	}

	a.log.Info("watching", "roots", roots, "dirs", w.Stats().WatchedDirs)
	err = g.Wait()

	st := w.Stats()
	a.log.Info("watch stopped",
		"events", st.Events,
		"triggered", st.Triggered,
		"checks", a.orchestrator.Stats().ChecksCompleted,
	)
	return err
}

// Shutdown stops running tools and releases the filter script. It is safe
// to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.supervisor != nil {
			a.supervisor.Shutdown(a.config.ShutdownTimeout())
		}
		if a.filter != nil {
			if err := a.filter.Close(); err != nil {
				a.log.Debug("closing filter", "error", err)
			}
		}
		a.log.Debug("application shut down")
	})
}

func (a *App) checkable(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !a.Checkable(p) {
			a.log.Warn("skipping file without a lint extension", "path", p, "extensions", a.config.Extensions())
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *App) checkCompleted(res lint.CheckResult) {
	if a.onCompleted != nil {
		a.onCompleted(res)
	}

	key := filepath.Clean(res.Path)
	a.mu.Lock()
	a.pending[key]--
	if a.pending[key] <= 0 {
		delete(a.pending, key)
		// Closed under mu so a concurrent RequestCheck reopens it after.
		if res.Annotations() == 0 {
			a.store.Close(res.Path)
		}
	}
	waiters := append([]chan lint.CheckResult(nil), a.waiters...)
	a.mu.Unlock()

	for _, w := range waiters {
		select {
		case w <- res:
		default:
		}
	}
}

func (a *App) addWaiter(ch chan lint.CheckResult) {
	a.mu.Lock()
	a.waiters = append(a.waiters, ch)
	a.mu.Unlock()
}

func (a *App) removeWaiter(ch chan lint.CheckResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, w := range a.waiters {
		if w == ch {
			a.waiters = append(a.waiters[:i], a.waiters[i+1:]...)
			return
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
