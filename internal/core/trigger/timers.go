package trigger

import (
	"sync"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/infra/clock"
)

type armed struct {
	periodic clock.Timer
	monitor  clock.Timer
}

// Timers arms the periodic and monitor callbacks of save sets.
type Timers struct {
	clock clock.Clock

	mu     sync.Mutex
	timers map[*domain.SaveSet]*armed
}

// NewTimers creates a timer owner on c.
func NewTimers(c clock.Clock) *Timers {
	return &Timers{clock: c, timers: make(map[*domain.SaveSet]*armed)}
}

func (t *Timers) slot(s *domain.SaveSet) *armed {
	a, ok := t.timers[s]
	if !ok {
		a = &armed{}
		t.timers[s] = a
	}
	return a
}

// ArmPeriodic (re)arms the periodic callback, which sets PERIODIC.
func (t *Timers) ArmPeriodic(s *domain.SaveSet, d time.Duration) {
	t.arm(s, d, domain.MethodPeriodic, func(a *armed) *clock.Timer { return &a.periodic })
}

// ArmMonitor (re)arms the monitor-period callback, which sets TIMER.
func (t *Timers) ArmMonitor(s *domain.SaveSet, d time.Duration) {
	t.arm(s, d, domain.MethodTimer, func(a *armed) *clock.Timer { return &a.monitor })
}

func (t *Timers) arm(s *domain.SaveSet, d time.Duration, bit domain.Method, field func(*armed) *clock.Timer) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := field(t.slot(s))
	if *slot != nil {
		(*slot).Stop()
	}
	s.TouchCallback(t.clock.Now())
	*slot = t.clock.AfterFunc(d, func() {
		if !s.Alive() {
			return
		}
		s.TouchCallback(t.clock.Now())
		s.Flag(bit)
	})
}

// Rearm re-arms whatever the consumed bits drove.
func (t *Timers) Rearm(s *domain.SaveSet, consumed domain.Method) {
	if consumed.Any(domain.MethodPeriodic) && s.Enabled.Any(domain.MethodPeriodic) {
		t.ArmPeriodic(s, s.Schedule.Period)
	}
	if consumed.Has(domain.MethodMonitored) && s.Enabled.Has(domain.MethodMonitored) {
		t.ArmMonitor(s, s.Schedule.MonitorPeriod)
	}
}

// Stop cancels every timer of s.
func (t *Timers) Stop(s *domain.SaveSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.timers[s]
	if !ok {
		return
	}
	if a.periodic != nil {
		a.periodic.Stop()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	delete(t.timers, s)
}

// StopAll cancels every timer.
func (t *Timers) StopAll() {
	t.mu.Lock()
	sets := make([]*domain.SaveSet, 0, len(t.timers))
	for s := range t.timers {
		sets = append(sets, s)
	}
	t.mu.Unlock()
	for _, s := range sets {
		t.Stop(s)
	}
}
