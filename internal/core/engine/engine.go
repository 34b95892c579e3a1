package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/autosave-go/internal/core/command"
	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/core/registry"
	"github.com/yndnr/autosave-go/internal/core/trigger"
	"github.com/yndnr/autosave-go/internal/infra/clock"
	"github.com/yndnr/autosave-go/internal/storage/backup"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/storage/savefile"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
	"github.com/yndnr/autosave-go/internal/valuesource"
)

// ErrAlreadyRunning is returned by a second concurrent Run.
var ErrAlreadyRunning = errors.New("engine: already running")

// Deps are the collaborators of an Engine. Source and Resolver are
// required; the rest have defaults.
type Deps struct {
	Source   valuesource.Source
	Resolver definition.Resolver
	// Writer defaults to an OS-backed writer reporting to Health.
	Writer *savefile.Writer
	Health *health.Monitor
	// Journal is optional.
	Journal   *journal.Journal
	Publisher status.Publisher
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Engine is the save/restore scheduler.
type Engine struct {
	source    valuesource.Source
	writer    *savefile.Writer
	health    *health.Monitor
	journal   *journal.Journal
	publisher status.Publisher
	clock     clock.Clock
	logger    *slog.Logger

	registry *registry.Registry
	backups  *backup.Manager
	timers   *trigger.Timers
	queue    *command.Queue

	cfgMu sync.RWMutex
	cfg   Config

	// Owned by the worker goroutine.
	conns     map[*domain.SaveSet]*setConn
	sequences map[string]*sequence
	dated     map[string]bool
	heartbeat uint64
	lastEvent string
	errLog    map[string]*rate.Limiter

	running      atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	shutdownOnce sync.Once
}

// sequence tracks the rotation state of one set's sequence files.
type sequence struct {
	last time.Time
}

// NewEngine creates an engine. It does not start the worker; call Run.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Source == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("value source required")
	}
	if deps.Resolver == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("definition resolver required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Health == nil {
		deps.Health = health.NewMonitor(health.Config{}, nil, deps.Logger)
	}
	if deps.Writer == nil {
		deps.Writer = savefile.NewWriter(
			savefile.WithRecorder(deps.Health),
			savefile.WithNow(deps.Clock.Now),
		)
	}
	if deps.Publisher == nil {
		deps.Publisher = status.Multi(nil)
	}

	cfg = cfg.clamp()
	return &Engine{
		source:    deps.Source,
		writer:    deps.Writer,
		health:    deps.Health,
		journal:   deps.Journal,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		logger:    deps.Logger,
		registry:  registry.New(deps.Resolver),
		backups:   backup.NewManager(deps.Writer, deps.Logger),
		timers:    trigger.NewTimers(deps.Clock),
		queue:     command.New(cfg.QueueSize, cfg.QueueTimeout),
		cfg:       cfg,
		conns:     make(map[*domain.SaveSet]*setConn),
		sequences: make(map[string]*sequence),
		dated:     make(map[string]bool),
		errLog:    make(map[string]*rate.Limiter),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Config returns the current tunables.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetConfig replaces the tunables. They are clamped at the start of the
// next cycle. Queue sizing is fixed at construction.
func (e *Engine) SetConfig(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

// Health returns the storage health monitor.
func (e *Engine) Health() *health.Monitor {
	return e.health
}

// Run executes the scheduler until ctx is cancelled or Shutdown is called.
// Commands still queued at exit complete with ErrEngineShutdown.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	e.logger.Info("scheduler started")
	defer e.logger.Info("scheduler stopped")
	defer e.teardownAll()

	for {
		start := time.Now()
		e.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}
		e.serve(ctx, start.Add(e.Config().clamp().MinCycle))
		if ctx.Err() != nil {
			break
		}
	}

	e.queue.Close()
	for _, cmd := range e.queue.Drain() {
		cmd.Complete(domain.Result{Err: domain.ErrEngineShutdown})
	}
	return nil
}

// serve executes commands as they arrive until deadline.
func (e *Engine) serve(ctx context.Context, deadline time.Time) {
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			e.processCommands(ctx)
			return
		}
		for _, cmd := range e.queue.Wait(ctx, wait) {
			e.execute(ctx, cmd)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-e.queue.Closed():
			// Shutting down; Run completes what is left.
			return
		default:
		}
	}
}

// processCommands executes everything already queued.
func (e *Engine) processCommands(ctx context.Context) {
	for _, cmd := range e.queue.Drain() {
		e.execute(ctx, cmd)
	}
}

// Shutdown stops the worker and waits for it to exit. It is safe to call
// more than once, and before Run.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		close(e.stopCh)
		e.queue.Close()
	})
	if e.running.Load() {
		<-e.doneCh
	}
}

// Submit queues cmd and waits for its result.
func (e *Engine) Submit(ctx context.Context, cmd *domain.Command) (domain.Result, error) {
	done := make(chan domain.Result, 1)
	cmd.Done = func(r domain.Result) { done <- r }
	if err := e.Enqueue(ctx, cmd); err != nil {
		return domain.Result{}, err
	}
	select {
	case r := <-done:
		return r, r.Err
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	}
}

// Enqueue queues cmd without waiting for it to run.
func (e *Engine) Enqueue(ctx context.Context, cmd *domain.Command) error {
	now := e.clock.Now()
	if cmd.ID == "" {
		cmd.ID = domain.NewID(now)
	}
	cmd.Enqueued = now
	return e.queue.Push(ctx, cmd)
}

// Define creates a set or adds a trigger method to an existing one.
func (e *Engine) Define(ctx context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error) {
	return e.Submit(ctx, &domain.Command{Kind: domain.CmdDefine, Name: name, Method: m, Schedule: sched, Macros: macros})
}

// Remove deletes a set.
func (e *Engine) Remove(ctx context.Context, name string) (domain.Result, error) {
	return e.Submit(ctx, &domain.Command{Kind: domain.CmdRemove, Name: name})
}

// Reload replaces a set with a freshly loaded definition. A zero method
// keeps the set's current methods and schedule.
func (e *Engine) Reload(ctx context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error) {
	return e.Submit(ctx, &domain.Command{Kind: domain.CmdReload, Name: name, Method: m, Schedule: sched, Macros: macros})
}

// ManualSave writes a set now. A non-empty file overrides the output file.
func (e *Engine) ManualSave(ctx context.Context, name, file string) (domain.Result, error) {
	return e.Submit(ctx, &domain.Command{Kind: domain.CmdManualSave, Name: name, File: file})
}

// ManualRestore pushes saved values back to the value source.
func (e *Engine) ManualRestore(ctx context.Context, file string, from domain.RestoreFrom, macros string) (domain.Result, error) {
	return e.Submit(ctx, &domain.Command{Kind: domain.CmdManualRestore, Name: file, From: from, Macros: macros})
}

// Trigger flags a registered set for a save on the next cycle.
func (e *Engine) Trigger(name string) error {
	s, ok := e.registry.Get(name)
	if !ok {
		return domain.ErrDefinitionNotFound.WithDetails(name)
	}
	s.Flag(domain.MethodManual)
	return nil
}

// Registered describes a set known to the engine.
type Registered struct {
	Name   string
	Macros string
}

// Registered lists the sets currently in the registry.
func (e *Engine) Registered() []Registered {
	sets := e.registry.Sets()
	out := make([]Registered, 0, len(sets))
	for _, s := range sets {
		if s.Alive() {
			out = append(out, Registered{Name: s.Name, Macros: s.Macros})
		}
	}
	return out
}

// History returns the newest journal entries of a set.
func (e *Engine) History(ctx context.Context, name string, limit int) ([]journal.Entry, error) {
	if e.journal == nil {
		return nil, nil
	}
	return e.journal.History(ctx, name, limit)
}
