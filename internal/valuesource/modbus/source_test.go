package modbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// fakeClient is an in-memory device with 16 holding registers and 16 coils.
type fakeClient struct {
	mu    sync.Mutex
	regs  [16]uint16
	coils [16]bool
	down  bool
}

var errDown = errors.New("connection refused")

func (f *fakeClient) bits(addr, qty uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	out := make([]byte, (qty+7)/8)
	for i := uint16(0); i < qty; i++ {
		if f.coils[addr+i] {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

func (f *fakeClient) registers(addr, qty uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	out := make([]byte, 2*qty)
	for i := uint16(0); i < qty; i++ {
		out[2*i] = byte(f.regs[addr+i] >> 8)
		out[2*i+1] = byte(f.regs[addr+i])
	}
	return out, nil
}

func (f *fakeClient) ReadCoils(a, q uint16) ([]byte, error) { return f.bits(a, q) }
func (f *fakeClient) ReadDiscreteInputs(a, q uint16) ([]byte, error) { return f.bits(a, q) }
func (f *fakeClient) ReadHoldingRegisters(a, q uint16) ([]byte, error) { return f.registers(a, q) }
func (f *fakeClient) ReadInputRegisters(a, q uint16) ([]byte, error) { return f.registers(a, q) }

func (f *fakeClient) WriteMultipleCoils(addr, qty uint16, value []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint16(0); i < qty; i++ {
		f.coils[addr+i] = value[i/8]&(1<<(i%8)) != 0
	}
	return nil, nil
}

func (f *fakeClient) WriteMultipleRegisters(addr, qty uint16, value []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint16(0); i < qty; i++ {
		f.regs[addr+i] = uint16(value[2*i])<<8 | uint16(value[2*i+1])
	}
	return nil, nil
}

func newTestSource(t *testing.T, fc *fakeClient) *Source {
	t.Helper()
	s, err := NewWithClient(Config{
		PollInterval: time.Hour,
		Tags: []Tag{
			{Name: "SP", Kind: KindHolding, Address: 0},
			{Name: "WF", Kind: KindHolding, Address: 4, Count: 3},
			{Name: "EN", Kind: KindCoil, Address: 2, Count: 2},
			{Name: "RO", Kind: KindInput, Address: 8},
		},
	}, fc, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSource_GetPut(t *testing.T) {
	fc := &fakeClient{}
	fc.regs[0] = 42
	fc.regs[4], fc.regs[5], fc.regs[6] = 1, 2, 65535
	s := newTestSource(t, fc)
	ctx := context.Background()

	sp, _ := s.Connect(ctx, "SP")
	r, err := s.Get(ctx, sp)
	if err != nil || !r.Value.Equal(domain.Value{"42"}) {
		t.Fatalf("Get(SP) = %+v, %v", r, err)
	}
	wf, _ := s.Connect(ctx, "WF")
	if r, _ := s.Get(ctx, wf); !r.Value.Equal(domain.Value{"1", "2", "65535"}) || r.Elements != 3 {
		t.Errorf("Get(WF) = %+v", r)
	}

	if err := s.Put(ctx, sp, domain.Value{"7"}); err != nil {
		t.Fatal(err)
	}
	if fc.regs[0] != 7 {
		t.Errorf("register 0 = %d", fc.regs[0])
	}

	en, _ := s.Connect(ctx, "EN")
	if err := s.Put(ctx, en, domain.Value{"1", "0"}); err != nil {
		t.Fatal(err)
	}
	if r, _ := s.Get(ctx, en); !r.Value.Equal(domain.Value{"1", "0"}) {
		t.Errorf("Get(EN) = %+v", r)
	}

	ro, _ := s.Connect(ctx, "RO")
	if err := s.Put(ctx, ro, domain.Value{"1"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(RO) = %v", err)
	}
	if err := s.Put(ctx, sp, domain.Value{"70000"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(out of range) = %v", err)
	}
}

func TestSource_UnknownTag(t *testing.T) {
	s := newTestSource(t, &fakeClient{})
	if _, err := s.Connect(context.Background(), "NOPE"); !errors.Is(err, domain.ErrPointAllocationFailed) {
		t.Errorf("Connect = %v", err)
	}
}

func TestSource_PollEmitsChanges(t *testing.T) {
	fc := &fakeClient{}
	s := newTestSource(t, fc)
	h, _ := s.Connect(context.Background(), "SP")
	ch, cancel, err := s.Subscribe(h)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if ev := <-ch; !ev.Initial {
		t.Fatalf("first event = %+v", ev)
	}

	s.PollOnce() // connects with value 0
	if ev := <-ch; !ev.Connected || !ev.Value.Equal(domain.Value{"0"}) {
		t.Errorf("connect event = %+v", ev)
	}
	s.PollOnce()
	select {
	case ev := <-ch:
		t.Errorf("unchanged poll emitted %+v", ev)
	default:
	}

	fc.mu.Lock()
	fc.regs[0] = 9
	fc.mu.Unlock()
	s.PollOnce()
	if ev := <-ch; !ev.Value.Equal(domain.Value{"9"}) {
		t.Errorf("change event = %+v", ev)
	}

	fc.mu.Lock()
	fc.down = true
	fc.mu.Unlock()
	s.PollOnce()
	if ev := <-ch; ev.Connected {
		t.Errorf("disconnect event = %+v", ev)
	}
	if _, err := s.Get(context.Background(), h); !errors.Is(err, domain.ErrValueSourceUnreachable) {
		t.Errorf("Get while down = %v", err)
	}
}

func TestNewWithClient_BadKind(t *testing.T) {
	_, err := NewWithClient(Config{Tags: []Tag{{Name: "X", Kind: "analog"}}}, &fakeClient{}, nil, nil)
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}
