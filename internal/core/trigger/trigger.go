package trigger

import (
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// Input is the per-cycle state the save decision depends on.
type Input struct {
	Pending          domain.Method
	Failed           bool
	JustRemounted    bool
	SinceLastAttempt time.Duration
	RetryInterval    time.Duration
}

// SaveNeeded evaluates the save decision for one cycle.
func SaveNeeded(in Input) bool {
	if in.Pending.Any(domain.MethodSingleShot) || in.Pending.Has(domain.MethodMonitored) {
		return true
	}
	return in.Failed && (in.JustRemounted || in.SinceLastAttempt >= in.RetryInterval)
}

// Consumed returns the bits a save attempt clears, given the pending bits
// observed when the decision was made. A lone TIMER or CHANGE survives.
func Consumed(pending domain.Method) domain.Method {
	c := pending & domain.MethodSingleShot
	if pending.Has(domain.MethodMonitored) {
		c |= domain.MethodMonitored
	}
	return c
}

// WatchdogWindow returns how long the set may go without a timer callback
// before the watchdog fires, or zero when no callback is outstanding.
func WatchdogWindow(s *domain.SaveSet, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	pending := s.Pending()
	var window time.Duration
	if s.Enabled.Any(domain.MethodPeriodic) && !pending.Any(domain.MethodPeriodic) {
		window = s.Schedule.Period
	}
	if s.Enabled.Has(domain.MethodMonitored) && !pending.Any(domain.MethodTimer) && s.Schedule.MonitorPeriod > window {
		window = s.Schedule.MonitorPeriod
	}
	if window == 0 {
		return 0
	}
	return window + timeout
}

// Watchdog forces every requested bit on when the set's timers appear
// stuck. It reports whether it fired.
func Watchdog(s *domain.SaveSet, now time.Time, timeout time.Duration) bool {
	window := WatchdogWindow(s, timeout)
	if window == 0 {
		return false
	}
	last := s.LastCallback()
	if last.IsZero() || now.Sub(last) <= window {
		return false
	}
	s.TouchCallback(now)
	return s.Flag(s.Requested)
}
