// Package buildinfo provides build information for autosave.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/autosave-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Commit and GoVersion fall back to what the Go toolchain embedded in the
// binary when they are not set.
package buildinfo
