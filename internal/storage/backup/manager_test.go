package backup

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/savefile"
)

var meta = savefile.Meta{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

func points(v string) []domain.PointSnapshot {
	return []domain.PointSnapshot{{Name: "A", Value: domain.Value{v}, Elements: 1, Valid: true, Connected: true, EverConnected: true}}
}

func newTestManager() *Manager {
	return NewManager(savefile.NewWriter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func valueIn(t *testing.T, path string) string {
	t.Helper()
	f, err := savefile.NewWriter().Read(path)
	if err != nil {
		t.Fatalf("Read(%s): %v", path, err)
	}
	v, _ := f.Lookup("A")
	return v[0]
}

func TestPaths(t *testing.T) {
	if got := BackupPath("/d/a.sav"); got != "/d/a.savB" {
		t.Errorf("BackupPath = %s", got)
	}
	if got := SequencePath("/d/a.sav", 2); got != "/d/a.sav2" {
		t.Errorf("SequencePath = %s", got)
	}
	ts := time.Date(2024, 5, 1, 10, 2, 3, 0, time.UTC)
	if got := DatedPath("/d/a.sav", ts); got != "/d/a_240501-100203.sav" {
		t.Errorf("DatedPath = %s", got)
	}
}

func TestEnsureBackup(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "a.sav")
	m := newTestManager()

	t.Run("missing backup is generated from points", func(t *testing.T) {
		regen, err := m.EnsureBackup(primary, points("1"), meta)
		if err != nil || !regen {
			t.Fatalf("EnsureBackup = %v, %v", regen, err)
		}
		if got := valueIn(t, BackupPath(primary)); got != "1" {
			t.Errorf("backup value = %s", got)
		}
	})

	t.Run("valid backup is left alone", func(t *testing.T) {
		regen, err := m.EnsureBackup(primary, points("2"), meta)
		if err != nil || regen {
			t.Fatalf("EnsureBackup = %v, %v", regen, err)
		}
		if got := valueIn(t, BackupPath(primary)); got != "1" {
			t.Errorf("backup value = %s", got)
		}
	})

	t.Run("corrupt backup is archived and regenerated", func(t *testing.T) {
		if err := os.WriteFile(BackupPath(primary), []byte("A 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		regen, err := m.EnsureBackup(primary, points("3"), meta)
		if err != nil || !regen {
			t.Fatalf("EnsureBackup = %v, %v", regen, err)
		}
		if got := valueIn(t, BackupPath(primary)); got != "3" {
			t.Errorf("backup value = %s", got)
		}
		bad, err := os.ReadFile(BackupPath(primary) + "_bad")
		if err != nil || string(bad) != "A 1\n" {
			t.Errorf("archive = %q, %v", bad, err)
		}
	})
}

func TestBackupSurvivesFailedPrimary(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "a.sav")
	w := savefile.NewWriter()
	m := NewManager(w, nil)

	for i := 0; i < 3; i++ {
		if _, err := m.EnsureBackup(primary, points("x"), meta); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(primary, points("v"), meta); err != nil {
			t.Fatal(err)
		}
		if err := m.CopyToBackup(primary); err != nil {
			t.Fatal(err)
		}
	}

	// A failed primary write must leave both files valid.
	broken := savefile.NewWriter(savefile.WithFileSystem(failingFS{}))
	if _, err := broken.Write(primary, points("bad"), meta); err == nil {
		t.Fatal("expected write failure")
	}
	if err := w.Verify(BackupPath(primary)); err != nil {
		t.Errorf("backup invalid after failed write: %v", err)
	}
	if err := w.Verify(primary); err != nil {
		t.Errorf("primary invalid after failed write: %v", err)
	}
}

func TestRotateSequence(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "a.sav")
	m := newTestManager()

	// No primary yet: slots are written from points.
	r, err := m.RotateSequence(primary, -1, 3, points("p"), meta)
	if err != nil {
		t.Fatalf("RotateSequence: %v", err)
	}
	if r.Slot != 0 || r.Next != 1 || !r.FromPoints {
		t.Errorf("rotation = %+v", r)
	}

	if _, err := savefile.NewWriter().Write(primary, points("q"), meta); err != nil {
		t.Fatal(err)
	}
	slot := r.Next
	seen := []int{}
	for i := 0; i < 4; i++ {
		r, err = m.RotateSequence(primary, slot, 3, points("p"), meta)
		if err != nil {
			t.Fatal(err)
		}
		if r.FromPoints {
			t.Error("primary exists, copy expected")
		}
		seen = append(seen, r.Slot)
		slot = r.Next
	}
	want := []int{1, 2, 0, 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("slots = %v, want %v", seen, want)
		}
	}
	if got := valueIn(t, SequencePath(primary, 0)); got != "q" {
		t.Errorf("slot 0 = %s", got)
	}
}

func TestStartSlot_OldestOrMissing(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "a.sav")
	m := newTestManager()
	now := time.Now()

	for i, age := range []time.Duration{time.Minute, 3 * time.Minute, 2 * time.Minute} {
		p := SequencePath(primary, i)
		if err := os.WriteFile(p, []byte("<END>\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := now.Add(-age)
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
	}
	if got := m.StartSlot(primary, 3); got != 1 {
		t.Errorf("StartSlot = %d, want oldest slot 1", got)
	}
	if got := m.StartSlot(primary, 5); got != 3 {
		t.Errorf("StartSlot = %d, want missing slot 3", got)
	}
}

func TestCandidatesAndFirstValid(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "a.sav")
	m := newTestManager()
	w := savefile.NewWriter()

	if err := os.WriteFile(primary, []byte("truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(SequencePath(primary, 1), points("s1"), meta); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	os.Chtimes(SequencePath(primary, 1), old, old)
	if _, err := w.Write(SequencePath(primary, 0), points("s0"), meta); err != nil {
		t.Fatal(err)
	}

	c := m.Candidates(primary, 3)
	want := []string{primary, BackupPath(primary), SequencePath(primary, 0), SequencePath(primary, 1)}
	if len(c) != len(want) {
		t.Fatalf("candidates = %v", c)
	}
	for i := range want {
		if c[i] != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, c[i], want[i])
		}
	}
	got, err := m.FirstValid(c)
	if err != nil || got != SequencePath(primary, 0) {
		t.Errorf("FirstValid = %s, %v", got, err)
	}
	if _, err := m.FirstValid([]string{primary}); !errors.Is(err, domain.ErrIoVerifyFailed) {
		t.Errorf("FirstValid(bad) = %v", err)
	}
}

func TestClampFiles(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 3: 3, 10: 10, 11: 10} {
		if got := ClampFiles(in); got != want {
			t.Errorf("ClampFiles(%d) = %d", in, got)
		}
	}
}

type failingFS struct {
	savefile.OSFileSystem
}

func (failingFS) CreateTemp(dir, pattern string) (savefile.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return syncFails{f}, nil
}

type syncFails struct {
	*os.File
}

func (syncFails) Sync() error { return errors.New("EIO") }
