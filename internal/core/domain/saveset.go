package domain

import (
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Schedule holds the per-method timing parameters of a SaveSet.
type Schedule struct {
	// Period is the periodic save interval.
	Period time.Duration `json:"period,omitempty"`
	// MonitorPeriod is the minimum time between change-triggered saves.
	MonitorPeriod time.Duration `json:"monitor_period,omitempty"`
	// TriggerPoint is the point whose updates trigger a save.
	TriggerPoint string `json:"trigger,omitempty"`
}

// merge copies the fields relevant to m from o.
func (s *Schedule) merge(m Method, o Schedule) {
	if m.Any(MethodPeriodic) {
		s.Period = o.Period
	}
	if m.Any(MethodMonitored) {
		s.MonitorPeriod = o.MonitorPeriod
	}
	if m.Any(MethodTriggered) {
		s.TriggerPoint = o.TriggerPoint
	}
}

// SaveSet is a named, independently scheduled collection of Points.
//
// Fields without atomic types are owned by the scheduler goroutine.
type SaveSet struct {
	// Name is the definition-resource name identifying the set.
	Name   string
	Macros string
	Points []*Point

	// Label is the free-form config label from the definition.
	Label string
	// PathPoint and NamePoint, when set, resolve the output target from
	// point values. Backups are disabled for such sets.
	PathPoint string
	NamePoint string

	Requested Method
	Enabled   Method
	Schedule  Schedule

	// OutputFile is the primary save-file base name.
	OutputFile string
	// LastTarget is the path most recently written.
	LastTarget string
	DoBackups  bool
	// BackupSeq is the next sequence slot; -1 until first chosen.
	BackupSeq int

	Status      Status
	StatusMsg   string
	LastAttempt time.Time
	LastSave    time.Time
	LastBackup  time.Time
	Unreachable int

	// Slot is the status-reporting slot held by this set.
	Slot int

	pending      atomic.Uint32
	alive        atomic.Bool
	lastCallback atomic.Int64
}

// NewSaveSet creates a live set for the given definition name.
func NewSaveSet(name string, points []*Point) *SaveSet {
	s := &SaveSet{
		Name:       name,
		Points:     points,
		OutputFile: SaveFileName(name),
		DoBackups:  true,
		BackupSeq:  -1,
		Slot:       -1,
	}
	s.alive.Store(true)
	return s
}

// SaveFileName derives "<base>.sav" from a definition name like "auto_settings.req".
func SaveFileName(definition string) string {
	base := filepath.Base(definition)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".sav"
}

// Flag ORs trigger reasons into the pending set. It is safe to call from
// any goroutine and is a no-op once the set has been removed.
func (s *SaveSet) Flag(m Method) bool {
	if !s.alive.Load() {
		return false
	}
	for {
		old := s.pending.Load()
		if s.pending.CompareAndSwap(old, old|uint32(m)) {
			return true
		}
	}
}

// Pending returns the pending trigger reasons.
func (s *SaveSet) Pending() Method {
	return Method(s.pending.Load())
}

// ClearPending removes trigger reasons from the pending set.
func (s *SaveSet) ClearPending(m Method) {
	for {
		old := s.pending.Load()
		if s.pending.CompareAndSwap(old, old&^uint32(m)) {
			return
		}
	}
}

// Alive reports whether the set is still registered.
func (s *SaveSet) Alive() bool {
	return s.alive.Load()
}

// Kill marks the set removed; later Flag calls are dropped.
func (s *SaveSet) Kill() {
	s.alive.Store(false)
}

// TouchCallback records that a scheduled timer callback landed (or was armed).
func (s *SaveSet) TouchCallback(t time.Time) {
	s.lastCallback.Store(t.UnixNano())
}

// LastCallback returns the time recorded by TouchCallback.
func (s *SaveSet) LastCallback() time.Time {
	n := s.lastCallback.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// MergeMethod adds m to the requested methods with its schedule.
// It fails if any bit of m is already requested.
func (s *SaveSet) MergeMethod(m Method, sched Schedule) error {
	if s.Requested.Any(m) {
		return ErrDuplicateTriggerMethod.WithDetailsf("%s already has %s", s.Name, (s.Requested & m).String())
	}
	s.Requested |= m
	s.Schedule.merge(m, sched)
	return nil
}

// UsesPointTarget reports whether the output target comes from point values.
func (s *SaveSet) UsesPointTarget() bool {
	return s.PathPoint != "" || s.NamePoint != ""
}

// Point returns the first point with the given name.
func (s *SaveSet) Point(name string) *Point {
	for _, p := range s.Points {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// SetStatus replaces status and message together.
func (s *SaveSet) SetStatus(st Status, msg string) {
	s.Status = st
	s.StatusMsg = msg
}
