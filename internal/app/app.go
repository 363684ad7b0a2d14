// Package app wires gitdecor's components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/gitdecor/internal/config"
	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/host"
	"github.com/dshills/gitdecor/internal/ignore"
	"github.com/dshills/gitdecor/internal/integration/git"
	"github.com/dshills/gitdecor/internal/logging"
	"github.com/dshills/gitdecor/internal/registry"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty skips the file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Repositories are opened in addition to the configured ones.
	Repositories []string

	// Watch starts a watcher on every repository when watching is enabled
	// in the configuration.
	Watch bool
}

// Application owns the git manager, the decoration registry and the host
// sink for one process.
type Application struct {
	opts   Options
	config *config.Config
	logger *logging.Logger

	git      *git.Manager
	sink     *host.Sink
	registry *registry.Registry[*git.Repository]

	running      atomic.Bool
	shutdown     atomic.Bool
	shutdownOnce sync.Once
	done         chan struct{}
}

// New loads configuration and creates every component. Repositories are not
// opened until Start.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &ComponentError{Component: "config", Action: "load", Err: err}
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, &ComponentError{Component: "config", Action: "validate", Err: err}
		}
	}
	return NewWithConfig(cfg, opts), nil
}

// NewWithConfig creates the application from an already loaded configuration.
func NewWithConfig(cfg *config.Config, opts Options) *Application {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel()
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	logger := logging.New(logCfg)

	a := &Application{
		opts:   opts,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	a.git = git.NewManager(git.ManagerConfig{Logger: logger})
	a.sink = host.New(host.WithLogger(logger))
	a.registry = registry.New[*git.Repository](a.git, a.sink,
		registry.WithLogger(logger),
		registry.WithEnabled(cfg.Decorations.Enabled),
		registry.WithQueueOptions(
			ignore.WithQuietPeriod(cfg.Ignore.QuietPeriod.Std()),
			ignore.WithLookupTimeout(cfg.Ignore.LookupTimeout.Std()),
		),
	)
	return a
}

// Config returns the effective configuration.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the root logger.
func (a *Application) Logger() *logging.Logger { return a.logger }

// Sink returns the host decoration sink.
func (a *Application) Sink() *host.Sink { return a.sink }

// Registry returns the provider registry.
func (a *Application) Registry() *registry.Registry[*git.Repository] { return a.registry }

// Git returns the repository manager.
func (a *Application) Git() *git.Manager { return a.git }

// Start opens every configured repository plus opts.Repositories
// concurrently. It fails if no repository could be opened.
func (a *Application) Start(ctx context.Context) error {
	if a.shutdown.Load() {
		return ErrShutdown
	}

	paths := append(a.config.RepositoryPaths(), a.opts.Repositories...)
	if len(paths) == 0 {
		return ErrNoRepositories
	}

	errs := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			_, err := a.OpenRepository(gctx, p)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			a.logger.WithField("path", paths[i]).Error("open repository: %v", err)
			failed = append(failed, err)
		}
	}
	if len(a.git.Sessions()) == 0 {
		return &ComponentError{Component: "git", Action: "open repositories", Err: errors.Join(failed...)}
	}
	return nil
}

// OpenRepository opens the repository at path and, when watching is on,
// starts its watcher.
func (a *Application) OpenRepository(ctx context.Context, path string) (*git.Repository, error) {
	if a.shutdown.Load() {
		return nil, ErrShutdown
	}

	repo, err := a.git.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	if a.opts.Watch && a.config.Watch.Enabled {
		err := repo.Watch(git.WatchConfig{
			Debounce: a.config.Watch.Debounce.Std(),
			Exclude:  a.config.Watch.Exclude,
		})
		if err != nil {
			a.logger.WithField("root", repo.Root()).Warn("watch: %v", err)
		}
	}
	return repo, nil
}

// Decorate returns the merged decoration for each path, in order.
func (a *Application) Decorate(ctx context.Context, paths []string) []host.Result {
	return a.sink.DecorateAll(ctx, paths)
}

// Entry is one decorated path from the status providers.
type Entry struct {
	Root       string
	Path       string
	Decoration decoration.Decoration
}

// StatusEntries lists every path the status providers decorate, ordered by
// root then path.
func (a *Application) StatusEntries() []Entry {
	var out []Entry
	for _, repo := range a.git.Sessions() {
		p, ok := a.registry.Lookup(repo.ID())
		if !ok {
			continue
		}
		for path, d := range p.Aggregator.Snapshot() {
			out = append(out, Entry{Root: repo.Root(), Path: path, Decoration: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Root != out[j].Root {
			return out[i].Root < out[j].Root
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Run refreshes every session and then blocks until ctx is cancelled or
// Shutdown is called.
func (a *Application) Run(ctx context.Context) error {
	if a.shutdown.Load() {
		return ErrShutdown
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	for _, repo := range a.git.Sessions() {
		g.Go(func() error {
			if err := repo.Refresh(gctx); err != nil && !errors.Is(err, git.ErrRepositoryClosed) {
				a.logger.WithField("root", repo.Root()).Warn("refresh: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.done:
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Done is closed when Shutdown completes.
func (a *Application) Done() <-chan struct{} {
	return a.done
}

// Shutdown releases every provider, closes every repository and the sink.
// It is safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.shutdown.Store(true)
		a.registry.Dispose()
		_ = a.git.Close()
		a.sink.Close()
		a.logger.Debug("shutdown complete")
		close(a.done)
	})
}
