package backup

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/savefile"
)

const (
	backupSuffix = "B"
	badSuffix    = "_bad"
	datedLayout  = "060102-150405"

	// MaxSequenceFiles bounds the number of rotating copies.
	MaxSequenceFiles = 10
)

// BackupPath returns the backup file for primary.
func BackupPath(primary string) string {
	return primary + backupSuffix
}

// SequencePath returns sequence file slot for primary.
func SequencePath(primary string, slot int) string {
	return primary + strconv.Itoa(slot)
}

// DatedPath returns the one-off dated copy name for primary at t.
func DatedPath(primary string, t time.Time) string {
	ext := filepath.Ext(primary)
	return strings.TrimSuffix(primary, ext) + "_" + t.Format(datedLayout) + ext
}

// Manager performs backup and sequence operations through a savefile.Writer.
type Manager struct {
	w      *savefile.Writer
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(w *savefile.Writer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{w: w, logger: logger}
}

// EnsureBackup makes sure a valid backup exists before primary is
// overwritten. A missing or corrupt backup is regenerated from points, the
// corrupt copy being archived first. It reports whether the backup had to
// be regenerated.
func (m *Manager) EnsureBackup(primary string, points []domain.PointSnapshot, meta savefile.Meta) (bool, error) {
	bp := BackupPath(primary)
	verr := m.w.Verify(bp)
	if verr == nil {
		return false, nil
	}

	if _, err := m.w.FS().Stat(bp); err == nil {
		bad := bp + badSuffix
		if err := m.w.FS().Rename(bp, bad); err != nil {
			m.logger.Warn("cannot archive corrupt backup", "file", bp, "error", err)
		} else {
			m.logger.Warn("archived corrupt backup", "file", bp, "archive", bad, "reason", verr)
		}
	}

	if _, err := m.w.Write(bp, points, meta); err != nil {
		return true, domain.ErrBackupCorrupt.WithDetails(bp).Wrap(err)
	}
	return true, nil
}

// CopyToBackup replaces the backup with the freshly written primary.
func (m *Manager) CopyToBackup(primary string) error {
	if _, err := m.w.Copy(primary, BackupPath(primary)); err != nil {
		return domain.ErrBackupCorrupt.WithDetails(BackupPath(primary)).Wrap(err)
	}
	return nil
}

// DatedCopy copies an existing primary to its dated name. A missing
// primary is not an error and yields an empty path.
func (m *Manager) DatedCopy(primary string, t time.Time) (string, error) {
	if _, err := m.w.FS().Stat(primary); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	dst := DatedPath(primary, t)
	if _, err := m.w.Copy(primary, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// StartSlot picks where rotation begins: the first missing slot, or else
// the slot with the oldest modification time.
func (m *Manager) StartSlot(primary string, n int) int {
	n = ClampFiles(n)
	oldest := 0
	var oldestTime time.Time
	for i := 0; i < n; i++ {
		st, err := m.w.FS().Stat(SequencePath(primary, i))
		if err != nil {
			return i
		}
		if i == 0 || st.ModTime().Before(oldestTime) {
			oldest = i
			oldestTime = st.ModTime()
		}
	}
	return oldest
}

// Rotation is the outcome of one sequence step.
type Rotation struct {
	Slot int
	Next int
	Path string
	// FromPoints is set when the primary could not be copied and the slot
	// was written from the live points instead.
	FromPoints bool
}

// RotateSequence writes the next sequence file. slot < 0 (or out of range)
// selects the start slot from the files on disk.
func (m *Manager) RotateSequence(primary string, slot, n int, points []domain.PointSnapshot, meta savefile.Meta) (Rotation, error) {
	n = ClampFiles(n)
	if slot < 0 || slot >= n {
		slot = m.StartSlot(primary, n)
	}
	r := Rotation{Slot: slot, Next: (slot + 1) % n, Path: SequencePath(primary, slot)}

	_, err := m.w.Copy(primary, r.Path)
	if err == nil {
		return r, nil
	}
	m.logger.Debug("sequence copy failed, writing from points", "file", r.Path, "error", err)
	r.FromPoints = true
	if _, err := m.w.Write(r.Path, points, meta); err != nil {
		return r, err
	}
	return r, nil
}

// ClampFiles bounds a sequence file count to 1..MaxSequenceFiles.
func ClampFiles(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxSequenceFiles:
		return MaxSequenceFiles
	default:
		return n
	}
}

// Candidates lists restore sources for primary in preference order:
// primary, backup, then sequence files newest first.
func (m *Manager) Candidates(primary string, n int) []string {
	out := []string{primary, BackupPath(primary)}

	type seq struct {
		path string
		mod  time.Time
	}
	var seqs []seq
	for i := 0; i < ClampFiles(n); i++ {
		p := SequencePath(primary, i)
		if st, err := m.w.FS().Stat(p); err == nil {
			seqs = append(seqs, seq{p, st.ModTime()})
		}
	}
	sort.SliceStable(seqs, func(i, j int) bool { return seqs[i].mod.After(seqs[j].mod) })
	for _, s := range seqs {
		out = append(out, s.path)
	}
	return out
}

// FirstValid returns the first candidate that passes verification.
func (m *Manager) FirstValid(candidates []string) (string, error) {
	var last error
	for _, c := range candidates {
		if err := m.w.Verify(c); err != nil {
			last = err
			continue
		}
		return c, nil
	}
	if last == nil {
		last = domain.ErrIoOpenFailed.WithDetails("no candidates")
	}
	return "", last
}
