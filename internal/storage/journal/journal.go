package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal: closed")

const (
	keyPrefix = "save/"

	DefaultKeep       = 100
	DefaultGCInterval = 10 * time.Minute
	gcThreshold       = 0.5
)

// Kind labels what an entry records.
type Kind string

const (
	KindPrimary  Kind = "primary"
	KindBackup   Kind = "backup"
	KindSequence Kind = "sequence"
	KindManual   Kind = "manual"
	KindRestore  Kind = "restore"
)

// Entry is one recorded attempt.
type Entry struct {
	ID           string        `json:"id"`
	Set          string        `json:"set"`
	Kind         Kind          `json:"kind"`
	File         string        `json:"file,omitempty"`
	Status       string        `json:"status"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
	Points       int           `json:"points,omitempty"`
	NotConnected int           `json:"not_connected,omitempty"`
	Time         time.Time     `json:"time"`
	Elapsed      time.Duration `json:"elapsed,omitempty"`
}

// Config configures the journal.
type Config struct {
	Dir        string
	Keep       int
	GCInterval time.Duration
	// InMemory keeps the journal off disk.
	InMemory bool
}

// Journal is a Badger-backed history store.
type Journal struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	metricsAppends prometheus.Counter
	metricsSize    prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens (or creates) the journal.
func Open(cfg Config, logger *slog.Logger) (*Journal, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("journal: dir is required")
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}

	j := &Journal{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go j.gcLoop()

	logger.Info("save journal opened", "dir", cfg.Dir, "keep", cfg.Keep)
	return j, nil
}

func setPrefix(set string) []byte {
	return []byte(keyPrefix + set + "/")
}

func seekEnd(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}

// Append records e, assigning its ID, and trims the set's history.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	j.mu.Lock()
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return e, ErrClosed
	}
	if e.Set == "" {
		return e, domain.ErrInvalidArgument.WithDetails("journal entry needs a set")
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.ID == "" {
		e.ID = domain.NewID(e.Time)
	}

	value, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("journal: marshal: %w", err)
	}
	key := append(setPrefix(e.Set), e.ID...)

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return j.trim(txn, e.Set)
	})
	if err != nil {
		return e, fmt.Errorf("journal: append: %w", err)
	}
	if j.metricsAppends != nil {
		j.metricsAppends.Inc()
	}
	return e, nil
}

// trim deletes entries beyond Keep, oldest first.
func (j *Journal) trim(txn *badger.Txn, set string) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	prefix := setPrefix(set)
	opts.Prefix = prefix
	it := txn.NewIterator(opts)

	var stale [][]byte
	n := 0
	// Reverse iteration must seek past the last possible key under prefix.
	for it.Seek(seekEnd(prefix)); it.ValidForPrefix(prefix); it.Next() {
		n++
		if n > j.cfg.Keep {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	it.Close()

	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// History returns up to limit entries for set, newest first. A limit of
// zero or less returns everything retained.
func (j *Journal) History(ctx context.Context, set string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		prefix := setPrefix(set)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekEnd(prefix)); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				j.logger.Warn("skipping corrupt journal entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	return out, nil
}

// Forget drops all history of set.
func (j *Journal) Forget(ctx context.Context, set string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return j.db.DropPrefix(setPrefix(set))
}

// Close stops GC and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.stopCh)
	<-j.doneCh
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close db: %w", err)
	}
	j.logger.Info("save journal closed")
	return nil
}

// RegisterMetrics registers journal metrics.
func (j *Journal) RegisterMetrics(reg prometheus.Registerer) *Journal {
	j.metricsAppends = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autosave",
		Subsystem: "journal",
		Name:      "appends_total",
		Help:      "Save attempts recorded in the journal",
	})
	j.metricsSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "autosave",
		Subsystem: "journal",
		Name:      "size_bytes",
		Help:      "Journal storage size in bytes (LSM + value log)",
	})
	reg.MustRegister(j.metricsAppends, j.metricsSize)
	j.updateSize()
	return j
}

func (j *Journal) updateSize() {
	if j.metricsSize == nil {
		return
	}
	lsm, vlog := j.db.Size()
	j.metricsSize.Set(float64(lsm + vlog))
}

func (j *Journal) gcLoop() {
	defer close(j.doneCh)
	if j.cfg.InMemory {
		<-j.stopCh
		return
	}

	ticker := time.NewTicker(j.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				if err := j.db.RunValueLogGC(gcThreshold); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						j.logger.Error("journal gc failed", "error", err)
					}
					break
				}
			}
			j.updateSize()
		case <-j.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
