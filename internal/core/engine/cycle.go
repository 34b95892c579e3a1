package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/core/trigger"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/storage/savefile"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

// runCycle is one scheduler pass over every set. Command service happens
// separately in serve.
func (e *Engine) runCycle(ctx context.Context) {
	cfg := e.Config().clamp()
	now := e.clock.Now()

	justRemounted := e.health.MaybeRemount(now)
	if justRemounted {
		e.event("storage remounted")
	}

	worst := domain.StatusInit
	sets := e.registry.Sets()
	reports := make([]status.Set, 0, len(sets))
	for _, s := range sets {
		if ctx.Err() != nil {
			return
		}
		if s.Enabled != s.Requested {
			e.enable(ctx, s)
		}
		if trigger.Watchdog(s, e.clock.Now(), cfg.CallbackTimeout) {
			e.logger.Warn("timer callbacks overdue, forcing save", "set", s.Name)
		}

		pending := s.Pending()
		in := trigger.Input{
			Pending:          pending,
			Failed:           s.Status == domain.StatusFail,
			JustRemounted:    justRemounted,
			SinceLastAttempt: e.clock.Now().Sub(s.LastAttempt),
			RetryInterval:    cfg.RetryInterval,
		}
		if trigger.SaveNeeded(in) {
			e.save(ctx, s, cfg, journal.KindPrimary)
			consumed := trigger.Consumed(pending)
			s.ClearPending(consumed)
			e.timers.Rearm(s, consumed)
		}

		if e.sequenceDue(s, cfg) {
			e.rotate(ctx, s, cfg)
		}

		worst = domain.Worst(worst, s.Status)
		reports = append(reports, e.report(s))
	}

	e.registry.Compact()
	e.publish(worst, reports)
}

// enable wires every requested method that is not enabled yet. Each
// method is enabled independently and retried next cycle on failure.
func (e *Engine) enable(ctx context.Context, s *domain.SaveSet) {
	e.connectPoints(ctx, s)
	missing := s.Requested &^ s.Enabled

	if missing.Any(domain.MethodPeriodic) && s.Schedule.Period > 0 {
		e.timers.ArmPeriodic(s, s.Schedule.Period)
		s.Enabled |= domain.MethodPeriodic
	}
	if missing.Any(domain.MethodTriggered) && e.connectTrigger(ctx, s) {
		s.Enabled |= domain.MethodTriggered
	}
	if missing.Any(domain.MethodMonitored) && s.Schedule.MonitorPeriod > 0 {
		e.conn(s).onChange.Store(uint32(domain.MethodChange))
		e.timers.ArmMonitor(s, s.Schedule.MonitorPeriod)
		s.Enabled |= domain.MethodMonitored
	}
	if missing.Any(domain.MethodManual) {
		s.Enabled |= domain.MethodManual
	}
	if s.Enabled != s.Requested {
		e.logger.Debug("set partially enabled", "set", s.Name,
			"requested", s.Requested.String(), "enabled", s.Enabled.String())
	}
}

// primaryPath resolves where s is written. Sets with path/name directive
// points take the target from those points when they hold a value.
func (e *Engine) primaryPath(ctx context.Context, s *domain.SaveSet, cfg Config) string {
	dir, name := cfg.Dir, s.OutputFile
	if s.UsesPointTarget() {
		if s.PathPoint != "" {
			if v, ok := e.readTarget(ctx, s, s.PathPoint); ok {
				dir = v
			}
		}
		if s.NamePoint != "" {
			if v, ok := e.readTarget(ctx, s, s.NamePoint); ok {
				name = v
			}
		}
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// save fetches and writes s to its primary file, maintaining the backup.
// It updates the set's status and timestamps.
func (e *Engine) save(ctx context.Context, s *domain.SaveSet, cfg Config, kind journal.Kind) {
	start := e.clock.Now()
	s.LastAttempt = start
	e.connectPoints(ctx, s)
	s.Unreachable = e.fetch(ctx, s)

	if s.Unreachable > 0 && !cfg.AllowIncomplete {
		msg := fmt.Sprintf("%d point(s) not connected, incomplete saves disallowed", s.Unreachable)
		s.SetStatus(domain.StatusFail, msg)
		e.record(ctx, s, journal.Entry{Kind: kind, Status: domain.StatusFail.String(), Message: msg, Time: start})
		return
	}

	primary := e.primaryPath(ctx, s, cfg)
	points := snapshots(s)
	meta := savefile.Meta{Time: start, Label: s.Label}

	var warn string
	if s.DoBackups {
		regenerated, err := e.backups.EnsureBackup(primary, points, meta)
		switch {
		case err != nil:
			warn = "backup: " + err.Error()
			e.throttledError(s.Name+"/backup", "backup not ensured", "set", s.Name, "error", err)
		case regenerated:
			e.logger.Info("backup regenerated", "set", s.Name, "file", primary)
		}
	}
	if cfg.DatedBackups && !e.dated[s.Name] {
		e.dated[s.Name] = true
		if path, err := e.backups.DatedCopy(primary, start); err != nil {
			e.logger.Warn("dated backup failed", "set", s.Name, "error", err)
		} else if path != "" {
			e.logger.Info("dated backup written", "set", s.Name, "file", path)
		}
	}

	info, err := e.writer.Write(primary, points, meta)
	if err != nil {
		s.SetStatus(domain.StatusFail, err.Error())
		e.throttledError(s.Name, "save failed", "set", s.Name, "file", primary, "error", err)
		e.event(fmt.Sprintf("%s: save failed", s.Name))
		e.record(ctx, s, journal.Entry{
			Kind:    kind,
			File:    primary,
			Status:  domain.StatusFail.String(),
			Error:   err.Error(),
			Time:    start,
			Elapsed: e.clock.Now().Sub(start),
		})
		return
	}
	s.LastSave = info.Written
	s.LastTarget = primary

	if s.DoBackups {
		if err := e.backups.CopyToBackup(primary); err != nil {
			warn = "backup: " + err.Error()
			e.throttledError(s.Name+"/backup", "backup copy failed", "set", s.Name, "error", err)
		} else {
			s.LastBackup = info.Written
		}
	}

	switch {
	case warn != "":
		s.SetStatus(domain.StatusWarn, warn)
	case s.Unreachable > 0:
		s.SetStatus(domain.StatusWarn, fmt.Sprintf("%d point(s) not connected", s.Unreachable))
	default:
		s.SetStatus(domain.StatusOK, "")
	}
	e.logger.Debug("set saved", "set", s.Name, "file", primary,
		"points", info.Points, "not_connected", info.NotConnected, "elapsed", e.clock.Now().Sub(start))
	e.record(ctx, s, journal.Entry{
		Kind:         kind,
		File:         primary,
		Status:       s.Status.String(),
		Message:      s.StatusMsg,
		Points:       info.Points,
		NotConnected: info.NotConnected,
		Time:         start,
		Elapsed:      e.clock.Now().Sub(start),
	})
}

func (e *Engine) sequenceDue(s *domain.SaveSet, cfg Config) bool {
	if !s.DoBackups || s.LastSave.IsZero() {
		return false
	}
	seq, ok := e.sequences[s.Name]
	if !ok {
		seq = &sequence{last: e.clock.Now()}
		e.sequences[s.Name] = seq
		return false
	}
	return e.clock.Now().Sub(seq.last) >= cfg.SequencePeriod
}

// rotate writes the next sequence file of s from its primary, or from the
// cached point values when the primary cannot be copied.
func (e *Engine) rotate(ctx context.Context, s *domain.SaveSet, cfg Config) {
	now := e.clock.Now()
	e.sequences[s.Name].last = now
	primary := s.LastTarget
	if primary == "" {
		primary = e.primaryPath(ctx, s, cfg)
	}

	r, err := e.backups.RotateSequence(primary, s.BackupSeq, cfg.SequenceFiles, snapshots(s), savefile.Meta{Time: now, Label: s.Label})
	entry := journal.Entry{Kind: journal.KindSequence, File: r.Path, Time: now}
	if err != nil {
		if s.Status == domain.StatusOK {
			s.SetStatus(domain.StatusSeqWarn, "sequence: "+err.Error())
		}
		e.throttledError(s.Name+"/sequence", "sequence file failed", "set", s.Name, "file", r.Path, "error", err)
		entry.Status, entry.Error = domain.StatusSeqWarn.String(), err.Error()
	} else {
		if s.Status == domain.StatusSeqWarn {
			s.SetStatus(domain.StatusOK, "")
		}
		entry.Status = domain.StatusOK.String()
		if r.FromPoints {
			entry.Message = "written from cached points"
		}
	}
	s.BackupSeq = r.Next
	e.record(ctx, s, entry)
}

func snapshots(s *domain.SaveSet) []domain.PointSnapshot {
	out := make([]domain.PointSnapshot, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Snapshot()
	}
	return out
}

func (e *Engine) report(s *domain.SaveSet) status.Set {
	return status.Set{
		Name:        s.Name,
		Slot:        s.Slot,
		Status:      s.Status,
		Text:        s.Status.String(),
		Message:     s.StatusMsg,
		File:        s.LastTarget,
		Requested:   s.Requested.String(),
		Enabled:     s.Enabled.String(),
		Pending:     s.Pending().String(),
		Points:      len(s.Points),
		Unreachable: s.Unreachable,
		LastSave:    s.LastSave,
		LastAttempt: s.LastAttempt,
		LastBackup:  s.LastBackup,
	}
}

func (e *Engine) publish(worst domain.Status, sets []status.Set) {
	e.heartbeat++
	e.publisher.Publish(status.Report{
		Global: status.Global{
			Status:    worst,
			Text:      worst.String(),
			Heartbeat: e.heartbeat,
			Time:      e.clock.Now(),
			LastEvent: e.lastEvent,
			Healthy:   e.health.IsHealthy(),
			Sets:      len(sets),
		},
		Sets: sets,
	})
}

// event records the most recent notable message for the status board.
func (e *Engine) event(msg string) {
	e.lastEvent = e.clock.Now().Format(time.RFC3339) + " " + msg
}

// record appends to the journal if there is one.
func (e *Engine) record(ctx context.Context, s *domain.SaveSet, entry journal.Entry) {
	if e.journal == nil {
		return
	}
	entry.Set = s.Name
	if _, err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Debug("journal append failed", "set", s.Name, "error", err)
	}
}

// throttledError logs at error level at most once a minute per key, so a
// dead disk does not flood the log.
func (e *Engine) throttledError(key, msg string, args ...any) {
	l, ok := e.errLog[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute), 1)
		e.errLog[key] = l
	}
	if l.Allow() {
		e.logger.Error(msg, args...)
		return
	}
	e.logger.Debug(msg, args...)
}
