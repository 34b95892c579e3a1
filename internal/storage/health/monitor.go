package health

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// DefaultThreshold is the consecutive failure count that marks storage unhealthy.
const DefaultThreshold = 3

// DefaultRemountInterval is the minimum spacing between remount attempts.
const DefaultRemountInterval = 60 * time.Second

// RemountConfig describes the mount to re-establish.
type RemountConfig struct {
	Source   string        `koanf:"source"`
	Target   string        `koanf:"target"`
	FSType   string        `koanf:"fstype"`
	Options  string        `koanf:"options"`
	Interval time.Duration `koanf:"interval"`
}

// Enabled reports whether a remount target is configured.
func (c RemountConfig) Enabled() bool {
	return c.Target != "" && c.Source != ""
}

// Config configures a Monitor.
type Config struct {
	Threshold int
	Remount   RemountConfig
}

// Mounter performs the unmount/mount pair.
type Mounter interface {
	Unmount(target string) error
	Mount(source, target, fstype, options string) error
}

// Snapshot is a copy of the monitor state.
type Snapshot struct {
	Healthy     bool      `json:"healthy"`
	Consecutive int       `json:"consecutive_errors"`
	Threshold   int       `json:"threshold"`
	LastError   string    `json:"last_error,omitempty"`
	LastRemount time.Time `json:"last_remount_attempt,omitempty"`
	Remounts    int       `json:"remounts"`
}

// Monitor is the process-wide storage health state.
//
// Record methods may be called from any goroutine. MaybeRemount is only
// called by the scheduler.
type Monitor struct {
	cfg     Config
	mounter Mounter
	logger  *slog.Logger

	mu          sync.Mutex
	consecutive int
	healthy     bool
	lastErr     error
	lastAttempt time.Time
	remounts    int
}

// NewMonitor creates a healthy monitor. mounter may be nil when no remount
// target is configured.
func NewMonitor(cfg Config, mounter Mounter, logger *slog.Logger) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Remount.Interval <= 0 {
		cfg.Remount.Interval = DefaultRemountInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:     cfg,
		mounter: mounter,
		logger:  logger,
		healthy: true,
	}
}

// RecordFailure counts one failed write.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutive++
	m.lastErr = err
	if m.healthy && m.consecutive >= m.cfg.Threshold {
		m.healthy = false
		m.logger.Error("storage marked unhealthy",
			"consecutive_errors", m.consecutive,
			"error", err)
	}
}

// RecordSuccess resets the failure count and restores health.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		m.logger.Info("storage healthy again", "after_errors", m.consecutive)
	}
	m.consecutive = 0
	m.healthy = true
	m.lastErr = nil
}

// IsHealthy reports whether the failure count is below the threshold.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// MaybeRemount attempts a remount when storage is unhealthy, a target is
// configured and the retry interval has elapsed. It reports whether a
// remount succeeded in this call.
func (m *Monitor) MaybeRemount(now time.Time) bool {
	m.mu.Lock()
	due := !m.healthy && m.cfg.Remount.Enabled() && m.mounter != nil &&
		(m.lastAttempt.IsZero() || now.Sub(m.lastAttempt) >= m.cfg.Remount.Interval)
	if due {
		m.lastAttempt = now
	}
	m.mu.Unlock()
	if !due {
		return false
	}

	rc := m.cfg.Remount
	// The target may already be gone; a failed unmount is expected then.
	if err := m.mounter.Unmount(rc.Target); err != nil {
		m.logger.Debug("unmount before remount failed", "target", rc.Target, "error", err)
	}
	if err := m.mounter.Mount(rc.Source, rc.Target, rc.FSType, rc.Options); err != nil {
		err = domain.ErrRemountFailed.WithDetails(rc.Target).Wrap(err)
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.logger.Error("remount failed", "source", rc.Source, "target", rc.Target, "error", err)
		return false
	}

	m.mu.Lock()
	m.remounts++
	m.mu.Unlock()
	m.logger.Info("storage remounted", "source", rc.Source, "target", rc.Target)
	return true
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Healthy:     m.healthy,
		Consecutive: m.consecutive,
		Threshold:   m.cfg.Threshold,
		LastRemount: m.lastAttempt,
		Remounts:    m.remounts,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
