// Package domain defines the core domain models for autosave.
//
// The models carry no I/O. This package contains:
//
//   - Point: one externally sourced value with its cached rendering
//   - SaveSet: an independently scheduled group of points with one save file
//   - Method: the trigger-method bitset shared by requested/enabled/pending
//   - Status: per-set and global save status levels
//   - Command: an operator request consumed by the scheduler
//   - Errors: the coded error taxonomy
//
// Only the scheduler goroutine mutates SaveSet topology. Other goroutines
// may OR bits into a SaveSet's pending set or update a Point's cache.
package domain
