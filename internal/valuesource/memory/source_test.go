package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

func TestSource_GetPut(t *testing.T) {
	s := New(map[string]domain.Value{"A": {"1"}})
	ctx := context.Background()

	h, err := s.Connect(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Get(ctx, h)
	if err != nil || !r.Valid || !r.Value.Equal(domain.Value{"1"}) {
		t.Fatalf("Get = %+v, %v", r, err)
	}
	if err := s.Put(ctx, h, domain.Value{"5"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Value("A"); !v.Equal(domain.Value{"5"}) {
		t.Errorf("Value = %v", v)
	}
	if len(s.Puts()) != 1 {
		t.Errorf("Puts = %v", s.Puts())
	}
}

func TestSource_Unreachable(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	h, err := s.Connect(ctx, "GHOST")
	if err != nil {
		t.Fatalf("unknown points should connect lazily: %v", err)
	}
	if _, err := s.Get(ctx, h); !errors.Is(err, domain.ErrValueSourceUnreachable) {
		t.Errorf("Get = %v", err)
	}
	s.Refuse("NEVER")
	if _, err := s.Connect(ctx, "NEVER"); !errors.Is(err, domain.ErrPointAllocationFailed) {
		t.Errorf("Connect(refused) = %v", err)
	}
}

func TestSource_Timeout(t *testing.T) {
	s := New(map[string]domain.Value{"A": {"1"}})
	h, _ := s.Connect(context.Background(), "A")
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := s.Get(ctx, h); !errors.Is(err, domain.ErrValueSourceTimeout) {
		t.Errorf("Get = %v", err)
	}
}

func TestSource_Subscribe(t *testing.T) {
	s := New(map[string]domain.Value{"A": {"1"}})
	h, _ := s.Connect(context.Background(), "A")
	ch, cancel, err := s.Subscribe(h)
	if err != nil {
		t.Fatal(err)
	}

	ev := <-ch
	if !ev.Initial || !ev.Connected {
		t.Errorf("first event = %+v", ev)
	}
	s.Set("A", "2")
	ev = <-ch
	if ev.Initial || !ev.Value.Equal(domain.Value{"2"}) {
		t.Errorf("change event = %+v", ev)
	}
	s.DisconnectPoint("A")
	if ev = <-ch; ev.Connected {
		t.Errorf("disconnect event = %+v", ev)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}
