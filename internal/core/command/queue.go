package command

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

const (
	DefaultSize        = 64
	DefaultPushTimeout = 5 * time.Second
)

// Queue is a bounded FIFO of commands with a single consumer.
//
// Push blocks for at most the push timeout while the queue is full. After
// Close, Push fails with ErrEngineShutdown; commands already queued can
// still be taken with Drain.
type Queue struct {
	ch          chan *domain.Command
	pushTimeout time.Duration

	// pushMu is held shared by Push and exclusively by Close, so nothing is
	// enqueued once Close returns.
	pushMu    sync.RWMutex
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a queue holding up to size commands.
func New(size int, pushTimeout time.Duration) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	return &Queue{
		ch:          make(chan *domain.Command, size),
		pushTimeout: pushTimeout,
		done:        make(chan struct{}),
	}
}

// Push enqueues cmd.
func (q *Queue) Push(ctx context.Context, cmd *domain.Command) error {
	q.pushMu.RLock()
	defer q.pushMu.RUnlock()

	select {
	case <-q.done:
		return domain.ErrEngineShutdown
	default:
	}

	select {
	case q.ch <- cmd:
		return nil
	default:
	}

	timer := time.NewTimer(q.pushTimeout)
	defer timer.Stop()
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return domain.ErrEngineShutdown
	case <-timer.C:
		return domain.ErrCommandQueueFull.WithDetailsf("%s %s", cmd.Kind, cmd.Name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks up to timeout for the first command, then returns it together
// with everything else already queued. It returns early with nothing when
// ctx is cancelled or the queue is closed. A closed queue always yields
// nothing from Wait, even with commands still queued; those are left for
// Drain.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) []*domain.Command {
	select {
	case <-q.done:
		return nil
	default:
	}

	var first *domain.Command
	if timeout <= 0 {
		select {
		case first = <-q.ch:
		default:
			return nil
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case first = <-q.ch:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		case <-q.done:
			return nil
		}
	}
	return append([]*domain.Command{first}, q.Drain()...)
}

// Drain takes every queued command without blocking.
func (q *Queue) Drain() []*domain.Command {
	var out []*domain.Command
	for {
		select {
		case c := <-q.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close rejects further pushes. It waits for pushes already in flight, so
// a Drain after Close sees every command that was accepted.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
	// Blocked pushers wake on done and release their read locks.
	q.pushMu.Lock()
	q.pushMu.Unlock()
}

// Closed is closed once Close has been called.
func (q *Queue) Closed() <-chan struct{} {
	return q.done
}
