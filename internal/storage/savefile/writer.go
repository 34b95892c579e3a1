package savefile

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// FileMode is the permission of committed save files.
const FileMode fs.FileMode = 0644

// DefaultStaleTolerance bounds how far a freshly written file's mtime may
// lag the start of the write before the file is treated as bad.
const DefaultStaleTolerance = 10 * time.Minute

// IOErrorRecorder receives the outcome of every write.
type IOErrorRecorder interface {
	RecordFailure(err error)
	RecordSuccess()
}

// Info describes a completed write.
type Info struct {
	Path         string
	Size         int64
	Points       int
	NotConnected int
	Written      time.Time
}

// Writer performs durable save-file writes.
type Writer struct {
	fs             FileSystem
	recorder       IOErrorRecorder
	now            func() time.Time
	staleTolerance time.Duration
}

// Option configures a Writer.
type Option func(*Writer)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fs FileSystem) Option {
	return func(w *Writer) { w.fs = fs }
}

// WithRecorder attaches an I/O error recorder.
func WithRecorder(r IOErrorRecorder) Option {
	return func(w *Writer) { w.recorder = r }
}

// WithStaleTolerance overrides DefaultStaleTolerance.
func WithStaleTolerance(d time.Duration) Option {
	return func(w *Writer) { w.staleTolerance = d }
}

// WithNow overrides the wall clock used for the staleness check.
func WithNow(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a Writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		fs:             OSFileSystem{},
		now:            time.Now,
		staleTolerance: DefaultStaleTolerance,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FS returns the filesystem the writer operates on.
func (w *Writer) FS() FileSystem {
	return w.fs
}

// Write renders points and durably replaces path with the result.
func (w *Writer) Write(path string, points []domain.PointSnapshot, meta Meta) (*Info, error) {
	data := Render(points, meta)
	info, err := w.commit(path, data)
	if err != nil {
		return nil, err
	}
	info.Points = len(points)
	for _, p := range points {
		if !p.Valid {
			info.NotConnected++
		}
	}
	return info, nil
}

// Copy durably replaces dst with the contents of src after checking that
// src is itself a complete save file.
func (w *Writer) Copy(src, dst string) (*Info, error) {
	f, err := w.fs.Open(src)
	if err != nil {
		err = domain.ErrIoOpenFailed.WithDetails(src).Wrap(err)
		w.fail(err)
		return nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		err = domain.ErrIoOpenFailed.WithDetails(src).Wrap(err)
		w.fail(err)
		return nil, err
	}
	if len(data) == 0 || !bytes.HasSuffix(data, []byte(Sentinel)) {
		err := domain.ErrIoVerifyFailed.WithDetailsf("%s: source incomplete", src)
		w.fail(err)
		return nil, err
	}
	return w.commit(dst, data)
}

func (w *Writer) commit(path string, data []byte) (*Info, error) {
	start := w.now()

	f, err := w.fs.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, w.fail(domain.ErrIoOpenFailed.WithDetails(path).Wrap(err))
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = w.fs.Remove(tmp)
		}
	}()

	n, err := f.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		f.Close()
		return nil, w.fail(domain.ErrIoWriteFailed.WithDetails(path).Wrap(err))
	}
	if err := f.Chmod(FileMode); err != nil {
		f.Close()
		return nil, w.fail(domain.ErrIoWriteFailed.WithDetailsf("%s: chmod", path).Wrap(err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, w.fail(domain.ErrIoSyncFailed.WithDetails(path).Wrap(err))
	}
	if err := f.Close(); err != nil {
		return nil, w.fail(domain.ErrIoWriteFailed.WithDetailsf("%s: close", path).Wrap(err))
	}

	size, err := w.check(tmp, int64(len(data)), start)
	if err != nil {
		return nil, w.fail(err)
	}

	if err := w.fs.Rename(tmp, path); err != nil {
		return nil, w.fail(domain.ErrIoWriteFailed.WithDetailsf("%s: rename", path).Wrap(err))
	}
	committed = true
	if err := w.fs.SyncDir(filepath.Dir(path)); err != nil {
		return nil, w.fail(domain.ErrIoSyncFailed.WithDetailsf("%s: sync directory", path).Wrap(err))
	}

	if w.recorder != nil {
		w.recorder.RecordSuccess()
	}
	return &Info{Path: path, Size: size, Written: start}, nil
}

// Verify checks that path is a non-empty file ending in the sentinel.
func (w *Writer) Verify(path string) error {
	_, err := w.check(path, 0, time.Time{})
	return err
}

// check re-opens path read-only and confirms the sentinel sits at the end.
// A non-zero want pins the expected size; a non-zero notBefore rejects
// files whose mtime is implausibly old.
func (w *Writer) check(path string, want int64, notBefore time.Time) (int64, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return 0, domain.ErrIoOpenFailed.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: stat", path).Wrap(err)
	}
	size := st.Size()
	if size == 0 {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: zero size", path)
	}
	if want > 0 && size != want {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: size %d, wrote %d", path, size, want)
	}
	if !notBefore.IsZero() && st.ModTime().Before(notBefore.Add(-w.staleTolerance)) {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: stale mtime %s", path, st.ModTime().Format(TimeFormat))
	}
	if size < int64(len(Sentinel)) {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: too short", path)
	}

	buf := make([]byte, len(Sentinel))
	if _, err := f.ReadAt(buf, size-int64(len(Sentinel))); err != nil {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: read sentinel", path).Wrap(err)
	}
	if string(buf) != Sentinel {
		return 0, domain.ErrIoVerifyFailed.WithDetailsf("%s: sentinel not found", path)
	}
	return size, nil
}

func (w *Writer) fail(err error) error {
	if w.recorder != nil {
		w.recorder.RecordFailure(err)
	}
	return err
}

// Read opens and parses path.
func (w *Writer) Read(path string) (*Contents, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return nil, domain.ErrIoOpenFailed.WithDetails(path).Wrap(err)
	}
	defer f.Close()
	out, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("savefile: read %s: %w", path, err)
	}
	return out, nil
}
