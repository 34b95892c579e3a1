package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

func cmd(name string) *domain.Command {
	return &domain.Command{Kind: domain.CmdManualSave, Name: name}
}

func TestQueue_FIFO(t *testing.T) {
	q := New(4, time.Second)
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, cmd(n)); err != nil {
			t.Fatal(err)
		}
	}
	got := q.Wait(ctx, time.Second)
	if len(got) != 3 || got[0].Name != "a" || got[2].Name != "c" {
		t.Fatalf("Wait = %v", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d", q.Len())
	}
}

func TestQueue_Full(t *testing.T) {
	q := New(1, 20*time.Millisecond)
	ctx := context.Background()
	if err := q.Push(ctx, cmd("a")); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	err := q.Push(ctx, cmd("b"))
	if !errors.Is(err, domain.ErrCommandQueueFull) {
		t.Fatalf("Push = %v, want queue full", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Push should block for the timeout before failing")
	}
}

func names(cmds []*domain.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

func TestQueue_PushUnblocksWhenDrained(t *testing.T) {
	q := New(1, time.Second)
	ctx := context.Background()
	q.Push(ctx, cmd("a"))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Push(ctx, cmd("b")) }()

	time.Sleep(10 * time.Millisecond)
	// The blocked push may land while Drain is still looping.
	got := names(q.Drain())
	if len(got) == 0 || got[0] != "a" {
		t.Fatalf("Drain = %v, want a first", got)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("blocked Push = %v", err)
	}
	if len(got) == 1 {
		got = append(got, names(q.Wait(ctx, time.Second))...)
	}
	if len(got) != 2 || got[1] != "b" {
		t.Errorf("received %v, want [a b]", got)
	}
}

func TestQueue_NothingAcceptedAfterClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := New(4, time.Second)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if err := q.Push(ctx, cmd("x")); errors.Is(err, domain.ErrEngineShutdown) {
						return
					}
				}
			}()
		}
		time.Sleep(time.Millisecond)
		q.Close()
		q.Drain()
		wg.Wait()
		if q.Len() != 0 {
			t.Fatalf("round %d: %d command(s) stranded after Close+Drain", round, q.Len())
		}
		if err := q.Push(ctx, cmd("late")); !errors.Is(err, domain.ErrEngineShutdown) {
			t.Fatalf("Push after Close = %v", err)
		}
	}
}

func TestQueue_WaitTimeout(t *testing.T) {
	q := New(1, time.Second)
	start := time.Now()
	if got := q.Wait(context.Background(), 15*time.Millisecond); got != nil {
		t.Errorf("Wait = %v", got)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("Wait returned before its timeout")
	}
	if got := q.Wait(context.Background(), 0); got != nil {
		t.Errorf("Wait(0) = %v", got)
	}
}

func TestQueue_Close(t *testing.T) {
	// Wait on a closed queue must leave queued commands for Drain every
	// time, not only when select happens to pick done.
	for round := 0; round < 100; round++ {
		q := New(2, time.Second)
		ctx := context.Background()
		q.Push(ctx, cmd("a"))
		q.Close()
		q.Close()

		if err := q.Push(ctx, cmd("b")); !errors.Is(err, domain.ErrEngineShutdown) {
			t.Fatalf("round %d: Push after close = %v", round, err)
		}
		if got := q.Wait(ctx, time.Second); got != nil {
			t.Fatalf("round %d: Wait after close = %v", round, names(got))
		}
		if got := q.Wait(ctx, 0); got != nil {
			t.Fatalf("round %d: Wait(0) after close = %v", round, names(got))
		}
		if got := q.Drain(); len(got) != 1 || got[0].Name != "a" {
			t.Fatalf("round %d: Drain after close = %v, want [a]", round, names(got))
		}
	}
}
