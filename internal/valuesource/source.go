package valuesource

import (
	"context"
	"errors"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// Handle identifies a connected point within a Source.
type Handle struct {
	Name string
	ID   uint64
}

// Reading is the result of a Get.
type Reading struct {
	Value    domain.Value
	Elements int
	Valid    bool
}

// Event is a value or connection-state notification.
type Event struct {
	Name      string
	Value     domain.Value
	Connected bool
	// Initial marks the first event delivered on subscribe. It reflects
	// current state, not a change.
	Initial bool
}

// Source is the value-source collaborator.
type Source interface {
	// Connect resolves a point. It fails with ErrPointAllocationFailed when
	// the point can never be served; an unreachable point still connects
	// and reports Connected=false through Subscribe.
	Connect(ctx context.Context, name string) (Handle, error)

	// Get fetches the current value. Unreachable points yield
	// ErrValueSourceUnreachable; a deadline yields ErrValueSourceTimeout.
	Get(ctx context.Context, h Handle) (Reading, error)

	// Put writes a value.
	Put(ctx context.Context, h Handle, v domain.Value) error

	// Subscribe delivers events for h until cancel is called.
	Subscribe(h Handle) (<-chan Event, func(), error)

	// Disconnect releases h.
	Disconnect(h Handle)

	Close() error
}

// Deadline maps a context error to the value-source taxonomy.
func Deadline(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrValueSourceTimeout.WithDetails(name).Wrap(err)
		}
		return err
	}
	return nil
}
