package engine

import (
	"time"

	"github.com/yndnr/autosave-go/internal/core/command"
	"github.com/yndnr/autosave-go/internal/storage/backup"
)

const (
	// MinSequencePeriod is the floor applied to Config.SequencePeriod.
	MinSequencePeriod = 10 * time.Second

	DefaultRetryInterval        = 60 * time.Second
	DefaultMinCycle             = time.Second
	DefaultSequencePeriod       = 60 * time.Second
	DefaultSequenceFiles        = 3
	DefaultFetchTimeoutPerPoint = 100 * time.Millisecond

	// minFetchTimeout bounds the fetch deadline of very small sets.
	minFetchTimeout = time.Second
)

// Config holds scheduler tunables.
type Config struct {
	// Dir is where save files are written.
	Dir string
	// AllowIncomplete permits writing sets with unreachable points.
	AllowIncomplete bool
	// RetryInterval spaces write attempts of a failed set.
	RetryInterval time.Duration
	// MinCycle is the minimum scheduler cycle period.
	MinCycle time.Duration
	// CallbackTimeout enables the timer watchdog when positive.
	CallbackTimeout time.Duration
	// SequencePeriod spaces sequence-file rotations.
	SequencePeriod time.Duration
	// SequenceFiles is the number of rotating sequence files.
	SequenceFiles int
	// FetchTimeoutPerPoint scales the value fetch deadline with set size.
	FetchTimeoutPerPoint time.Duration
	QueueSize            int
	QueueTimeout         time.Duration
	// DatedBackups copies each primary to a dated name before its first
	// save in this process.
	DatedBackups bool
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		Dir:                  ".",
		AllowIncomplete:      true,
		RetryInterval:        DefaultRetryInterval,
		MinCycle:             DefaultMinCycle,
		SequencePeriod:       DefaultSequencePeriod,
		SequenceFiles:        DefaultSequenceFiles,
		FetchTimeoutPerPoint: DefaultFetchTimeoutPerPoint,
		QueueSize:            command.DefaultSize,
		QueueTimeout:         command.DefaultPushTimeout,
	}
}

// clamp returns c with out-of-range tunables pulled back into range.
func (c Config) clamp() Config {
	if c.SequencePeriod < MinSequencePeriod {
		c.SequencePeriod = MinSequencePeriod
	}
	c.SequenceFiles = backup.ClampFiles(c.SequenceFiles)
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.MinCycle <= 0 {
		c.MinCycle = DefaultMinCycle
	}
	if c.FetchTimeoutPerPoint <= 0 {
		c.FetchTimeoutPerPoint = DefaultFetchTimeoutPerPoint
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	return c
}
