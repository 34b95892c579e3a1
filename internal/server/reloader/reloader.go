package reloader

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/core/engine"
	"github.com/yndnr/autosave-go/internal/infra/confloader"
)

// DefaultDebounce is how long the reloader waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Engine is the part of the engine the reloader drives.
type Engine interface {
	Registered() []engine.Registered
	Reload(ctx context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error)
}

// Reloader maps definition file changes to set reloads.
type Reloader struct {
	engine   Engine
	resolver definition.Resolver
	watcher  *confloader.Watcher
	debounce time.Duration
	logger   *slog.Logger

	changed chan string

	mu sync.Mutex
	// files caches the files each set read on its last good resolve, so a
	// broken edit still maps back to its set.
	files map[string][]string
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) {
		r.logger = l
	}
}

// New creates a reloader watching dirs.
func New(eng Engine, resolver definition.Resolver, dirs []string, opts ...Option) (*Reloader, error) {
	r := &Reloader{
		engine:   eng,
		resolver: resolver,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		changed:  make(chan string, 64),
		files:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(r.logger))
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.WatchDir(dir); err != nil {
			_ = w.Stop()
			return nil, err
		}
	}
	w.OnChange(r.notify)
	r.watcher = w
	return r, nil
}

func (r *Reloader) notify(path string) {
	select {
	case r.changed <- filepath.Clean(path):
	default:
		r.logger.Warn("definition change dropped, reloader busy", "file", path)
	}
}

// Run watches until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) {
	r.watcher.StartAsync()
	defer func() { _ = r.watcher.Stop() }()

	r.refresh()

	pending := make(map[string]bool)
	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-r.changed:
			pending[path] = true
			timer.Reset(r.debounce)
		case <-timer.C:
			r.apply(ctx, pending)
			pending = make(map[string]bool)
		}
	}
}

// refresh resolves every registered set and records the files it reads.
func (r *Reloader) refresh() {
	for _, s := range r.engine.Registered() {
		r.filesOf(s)
	}
}

func (r *Reloader) filesOf(s engine.Registered) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, err := r.resolver.Resolve(s.Name, s.Macros)
	if err == nil {
		files := make([]string, len(def.Files))
		for i, f := range def.Files {
			files[i] = filepath.Clean(f)
		}
		r.files[s.Name] = files
		return files
	}
	return r.files[s.Name]
}

// Affected returns the registered sets that read any of the changed files.
func (r *Reloader) Affected(changed map[string]bool) []string {
	var out []string
	for _, s := range r.engine.Registered() {
		for _, f := range r.filesOf(s) {
			if changed[f] {
				out = append(out, s.Name)
				break
			}
		}
	}
	return out
}

func (r *Reloader) apply(ctx context.Context, changed map[string]bool) {
	for _, name := range r.Affected(changed) {
		res, err := r.engine.Reload(ctx, name, 0, domain.Schedule{}, "")
		if err != nil {
			r.logger.Error("definition reload failed, keeping previous set", "set", name, "error", err)
			continue
		}
		r.logger.Info("definition reloaded", "set", name, "status", res.Status.String())
	}
}
