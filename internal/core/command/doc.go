// Package command provides the bounded queue that carries operator
// requests into the scheduler goroutine.
package command
