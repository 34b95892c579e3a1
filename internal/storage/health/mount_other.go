//go:build !linux

package health

import "errors"

var errUnsupported = errors.New("health: remount not supported on this platform")

// SyscallMounter is unavailable off Linux.
type SyscallMounter struct{}

func (SyscallMounter) Unmount(string) error { return errUnsupported }

func (SyscallMounter) Mount(string, string, string, string) error { return errUnsupported }
