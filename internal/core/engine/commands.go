package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/storage/savefile"
)

// execute runs one command on the worker and completes it.
func (e *Engine) execute(ctx context.Context, cmd *domain.Command) {
	var r domain.Result
	switch cmd.Kind {
	case domain.CmdDefine:
		r = e.doDefine(cmd)
	case domain.CmdRemove:
		r = e.doRemove(cmd)
	case domain.CmdReload:
		r = e.doReload(cmd)
	case domain.CmdManualSave:
		r = e.doManualSave(ctx, cmd)
	case domain.CmdManualRestore:
		r = e.doManualRestore(ctx, cmd)
	default:
		r = domain.Result{Status: domain.StatusFail, Err: domain.ErrInvalidArgument.WithDetailsf("unknown command %d", cmd.Kind)}
	}
	if r.Err != nil && r.Message == "" {
		r.Message = r.Err.Error()
	}
	e.logger.Debug("command done", "id", cmd.ID, "kind", cmd.Kind.String(), "name", cmd.Name,
		"status", r.Status.String(), "error", r.Err)
	cmd.Complete(r)
}

func fail(err error) domain.Result {
	return domain.Result{Status: domain.StatusFail, Err: err}
}

func (e *Engine) doDefine(cmd *domain.Command) domain.Result {
	s, created, err := e.registry.Define(cmd.Name, cmd.Method, cmd.Schedule, cmd.Macros)
	if err != nil {
		return fail(err)
	}
	if created {
		e.logger.Info("set defined", "set", s.Name, "method", cmd.Method.String(), "points", len(s.Points), "slot", s.Slot)
		e.event(s.Name + ": defined")
	} else {
		e.logger.Info("method added", "set", s.Name, "method", cmd.Method.String())
	}
	return domain.Result{Status: s.Status, Message: s.Requested.String()}
}

func (e *Engine) doRemove(cmd *domain.Command) domain.Result {
	s, err := e.registry.Remove(cmd.Name)
	if err != nil {
		return fail(err)
	}
	e.disconnect(s)
	e.logger.Info("set removed", "set", s.Name)
	e.event(s.Name + ": removed")
	return domain.Result{Status: domain.StatusOK}
}

// doReload rebuilds a set. Without a method the set keeps its current
// methods, schedule and, when none are given, its macros.
func (e *Engine) doReload(cmd *domain.Command) domain.Result {
	m, sched, macros := cmd.Method, cmd.Schedule, cmd.Macros
	if m == 0 {
		if s, ok := e.registry.Get(cmd.Name); ok {
			m, sched = s.Requested, s.Schedule
			if macros == "" {
				macros = s.Macros
			}
		}
	}
	old, cur, err := e.registry.Reload(cmd.Name, m, sched, macros)
	if err != nil {
		return fail(err)
	}
	if old != nil {
		e.disconnect(old)
		cur.BackupSeq = old.BackupSeq
	}
	e.logger.Info("set reloaded", "set", cur.Name, "method", cur.Requested.String(), "points", len(cur.Points))
	e.event(cur.Name + ": reloaded")
	return domain.Result{Status: cur.Status, Message: cur.Requested.String()}
}

// doManualSave writes a set immediately. With an override file the write
// bypasses backups and leaves the set's status and pending bits alone. A
// name that is not registered is loaded for this one save.
func (e *Engine) doManualSave(ctx context.Context, cmd *domain.Command) domain.Result {
	cfg := e.Config().clamp()
	s, registered := e.registry.Get(cmd.Name)

	if registered && cmd.File == "" {
		e.save(ctx, s, cfg, journal.KindManual)
		r := domain.Result{Status: s.Status, Message: s.StatusMsg, File: s.LastTarget}
		if s.Status == domain.StatusFail {
			r.Err = domain.ErrIoWriteFailed.WithDetails(s.StatusMsg)
		}
		return r
	}

	if !registered {
		var err error
		s, err = e.registry.Build(cmd.Name, cmd.Macros)
		if err != nil {
			return fail(err)
		}
		s.DoBackups = false
		defer e.disconnect(s)
	}

	name := cmd.File
	if name == "" {
		name = s.OutputFile
	}
	path, err := inSaveDir(cfg.Dir, name)
	if err != nil {
		return fail(err)
	}

	start := e.clock.Now()
	e.connectPoints(ctx, s)
	unreachable := e.fetch(ctx, s)
	if registered {
		s.Unreachable = unreachable
	}
	if unreachable > 0 && !cfg.AllowIncomplete {
		return fail(domain.ErrValueSourceUnreachable.WithDetailsf("%d point(s) not connected", unreachable))
	}

	info, err := e.writer.Write(path, snapshots(s), savefile.Meta{Time: start, Label: s.Label})
	entry := journal.Entry{Kind: journal.KindManual, File: path, Time: start, Elapsed: e.clock.Now().Sub(start)}
	if err != nil {
		entry.Status, entry.Error = domain.StatusFail.String(), err.Error()
		e.record(ctx, s, entry)
		e.logger.Error("manual save failed", "set", s.Name, "file", path, "error", err)
		return domain.Result{Status: domain.StatusFail, File: path, Err: err}
	}

	r := domain.Result{Status: domain.StatusOK, File: path}
	if unreachable > 0 {
		r.Status = domain.StatusWarn
		r.Message = fmt.Sprintf("%d point(s) not connected", unreachable)
	}
	entry.Status, entry.Message = r.Status.String(), r.Message
	entry.Points, entry.NotConnected = info.Points, info.NotConnected
	e.record(ctx, s, entry)
	e.logger.Info("manual save", "set", s.Name, "file", path, "points", info.Points)
	return r
}

// inSaveDir resolves a caller-supplied file name against dir. Relative
// names must stay inside dir; absolute names are accepted only when they
// point into it.
func inSaveDir(dir, name string) (string, error) {
	rel := name
	if filepath.IsAbs(name) {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return "", domain.ErrInvalidArgument.WithDetailsf("save dir %s", dir).Wrap(err)
		}
		if rel, err = filepath.Rel(absDir, name); err != nil {
			rel = name
		}
	}
	if !filepath.IsLocal(rel) {
		return "", domain.ErrInvalidArgument.WithDetailsf("%s is outside the save directory", name)
	}
	return filepath.Join(dir, rel), nil
}

// restoreSource resolves which file a restore reads.
func (e *Engine) restoreSource(cmd *domain.Command, cfg Config) (string, error) {
	if cmd.From == domain.RestoreFromFile {
		return inSaveDir(cfg.Dir, cmd.Name)
	}

	primary := filepath.Join(cfg.Dir, domain.SaveFileName(cmd.Name))
	if s, ok := e.registry.Get(cmd.Name); ok && s.LastTarget != "" {
		primary = s.LastTarget
	}
	return e.backups.FirstValid(e.backups.Candidates(primary, cfg.SequenceFiles))
}

// doManualRestore pushes the valid points of a save file back through the
// value source. Macros are applied to point names. Points that cannot be
// written are counted and reported, not fatal.
func (e *Engine) doManualRestore(ctx context.Context, cmd *domain.Command) domain.Result {
	cfg := e.Config().clamp()
	path, err := e.restoreSource(cmd, cfg)
	if err != nil {
		return fail(err)
	}
	f, err := e.writer.Read(path)
	if err != nil {
		return fail(err)
	}
	macros, err := definition.ParseMacros(cmd.Macros)
	if err != nil {
		return fail(err)
	}

	putCtx, cancel := context.WithTimeout(ctx, e.connectTimeout(len(f.Entries)))
	defer cancel()

	var restored, failed int
	var firstErr error
	for _, ent := range f.Entries {
		name, err := macros.Expand(ent.Name)
		if err == nil {
			err = e.put(putCtx, name, ent.Value)
		}
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		restored++
	}

	r := domain.Result{Status: domain.StatusOK, File: path,
		Message: fmt.Sprintf("%d point(s) restored", restored)}
	if failed > 0 {
		r.Status = domain.StatusWarn
		r.Message = fmt.Sprintf("%d point(s) restored, %d failed", restored, failed)
		e.logger.Warn("restore incomplete", "file", path, "failed", failed, "error", firstErr)
	}
	if restored == 0 && failed > 0 {
		r.Status = domain.StatusFail
		r.Err = firstErr
	}
	if e.journal != nil {
		entry := journal.Entry{Set: cmd.Name, Kind: journal.KindRestore, File: path,
			Status: r.Status.String(), Message: r.Message, Points: restored, Time: e.clock.Now()}
		if _, err := e.journal.Append(ctx, entry); err != nil {
			e.logger.Debug("journal append failed", "file", path, "error", err)
		}
	}
	e.logger.Info("restore done", "file", path, "restored", restored, "skipped", f.Skipped)
	return r
}

// put connects name for a single write.
func (e *Engine) put(ctx context.Context, name string, v domain.Value) error {
	h, err := e.source.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer e.source.Disconnect(h)
	return e.source.Put(ctx, h, v)
}
