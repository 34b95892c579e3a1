package health

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeMounter struct {
	unmounts, mounts int
	unmountErr       error
	mountErr         error
}

func (f *fakeMounter) Unmount(string) error {
	f.unmounts++
	return f.unmountErr
}

func (f *fakeMounter) Mount(string, string, string, string) error {
	f.mounts++
	return f.mountErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var cfg = Config{
	Threshold: 2,
	Remount: RemountConfig{
		Source:   "nfs:/export",
		Target:   "/mnt/save",
		FSType:   "nfs",
		Interval: 30 * time.Second,
	},
}

func TestMonitor_Threshold(t *testing.T) {
	m := NewMonitor(cfg, nil, testLogger())
	boom := errors.New("boom")

	m.RecordFailure(boom)
	if !m.IsHealthy() {
		t.Fatal("one failure should not cross threshold 2")
	}
	m.RecordFailure(boom)
	if m.IsHealthy() {
		t.Fatal("second failure should mark unhealthy")
	}
	if s := m.Snapshot(); s.Consecutive != 2 || s.LastError != "boom" {
		t.Errorf("snapshot = %+v", s)
	}
	m.RecordSuccess()
	if !m.IsHealthy() || m.Snapshot().Consecutive != 0 {
		t.Error("success should reset")
	}
}

func TestMonitor_MaybeRemount(t *testing.T) {
	fm := &fakeMounter{unmountErr: errors.New("not mounted")}
	m := NewMonitor(cfg, fm, testLogger())
	now := time.Unix(1000, 0)

	if m.MaybeRemount(now) {
		t.Fatal("healthy storage must not remount")
	}
	m.RecordFailure(errors.New("x"))
	m.RecordFailure(errors.New("x"))

	if !m.MaybeRemount(now) {
		t.Fatal("remount should succeed despite unmount error")
	}
	if fm.unmounts != 1 || fm.mounts != 1 {
		t.Errorf("unmounts=%d mounts=%d", fm.unmounts, fm.mounts)
	}
	if m.MaybeRemount(now.Add(10 * time.Second)) {
		t.Error("remount attempted before interval")
	}
	if !m.MaybeRemount(now.Add(30 * time.Second)) {
		t.Error("remount should be due after interval")
	}
}

func TestMonitor_RemountFailure(t *testing.T) {
	fm := &fakeMounter{mountErr: errors.New("EBUSY")}
	m := NewMonitor(cfg, fm, testLogger())
	m.RecordFailure(errors.New("x"))
	m.RecordFailure(errors.New("x"))

	if m.MaybeRemount(time.Unix(0, 0)) {
		t.Fatal("failed mount must report false")
	}
	if s := m.Snapshot(); s.Healthy || s.LastError == "" {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestMonitor_NoTarget(t *testing.T) {
	fm := &fakeMounter{}
	m := NewMonitor(Config{Threshold: 1}, fm, testLogger())
	m.RecordFailure(errors.New("x"))
	if m.MaybeRemount(time.Unix(0, 0)) || fm.mounts != 0 {
		t.Error("no remount without a configured target")
	}
}
