// Package modbus serves points from a Modbus TCP device. Each point name
// maps to a register or bit range through a tag table; subscriptions are
// fed by polling.
package modbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/valuesource"
)

// Tag kinds.
const (
	KindHolding  = "holding"
	KindInput    = "input"
	KindCoil     = "coil"
	KindDiscrete = "discrete"
)

const (
	DefaultTimeout      = time.Second
	DefaultPollInterval = time.Second
	eventBuffer         = 64
)

// Tag maps a point name to device memory.
type Tag struct {
	Name    string `koanf:"name"`
	Kind    string `koanf:"kind"`
	Address uint16 `koanf:"address"`
	Count   uint16 `koanf:"count"`
}

// Config configures the Modbus source.
type Config struct {
	Endpoint     string        `koanf:"endpoint"`
	UnitID       uint8         `koanf:"unit_id"`
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Tags         []Tag         `koanf:"tags"`
}

// Client is the subset of modbus.Client the source needs.
type Client interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type tagState struct {
	tag       Tag
	last      domain.Value
	connected bool
	subs      map[uint64]chan valuesource.Event
}

// Source is a polling Modbus value source.
type Source struct {
	cfg    Config
	logger *slog.Logger

	// reqMu serializes device requests.
	reqMu  sync.Mutex
	client Client
	closer io.Closer

	mu     sync.Mutex
	tags   map[string]*tagState
	nextID uint64

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New dials nothing up front; the TCP handler connects on first request.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("modbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID
	return NewWithClient(cfg, modbus.NewClient(h), h, logger)
}

// NewWithClient builds a source over an existing client and starts polling.
func NewWithClient(cfg Config, client Client, closer io.Closer, logger *slog.Logger) (*Source, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		cfg:    cfg,
		logger: logger,
		client: client,
		closer: closer,
		tags:   make(map[string]*tagState, len(cfg.Tags)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, t := range cfg.Tags {
		if t.Count == 0 {
			t.Count = 1
		}
		switch t.Kind {
		case KindHolding, KindInput, KindCoil, KindDiscrete:
		default:
			return nil, fmt.Errorf("modbus: tag %s: unknown kind %q", t.Name, t.Kind)
		}
		s.tags[t.Name] = &tagState{tag: t, subs: map[uint64]chan valuesource.Event{}}
	}
	go s.pollLoop()
	return s, nil
}

func (s *Source) read(t Tag) (domain.Value, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	switch t.Kind {
	case KindCoil, KindDiscrete:
		var raw []byte
		var err error
		if t.Kind == KindCoil {
			raw, err = s.client.ReadCoils(t.Address, t.Count)
		} else {
			raw, err = s.client.ReadDiscreteInputs(t.Address, t.Count)
		}
		if err != nil {
			return nil, err
		}
		return unpackBits(raw, int(t.Count)), nil
	default:
		var raw []byte
		var err error
		if t.Kind == KindHolding {
			raw, err = s.client.ReadHoldingRegisters(t.Address, t.Count)
		} else {
			raw, err = s.client.ReadInputRegisters(t.Address, t.Count)
		}
		if err != nil {
			return nil, err
		}
		if len(raw) < int(t.Count)*2 {
			return nil, fmt.Errorf("modbus: short response for %s: %d bytes", t.Name, len(raw))
		}
		out := make(domain.Value, t.Count)
		for i := range out {
			out[i] = strconv.Itoa(int(raw[2*i])<<8 | int(raw[2*i+1]))
		}
		return out, nil
	}
}

func unpackBits(raw []byte, n int) domain.Value {
	out := make(domain.Value, n)
	for i := 0; i < n; i++ {
		if i/8 < len(raw) && raw[i/8]&(1<<uint(i%8)) != 0 {
			out[i] = "1"
		} else {
			out[i] = "0"
		}
	}
	return out
}

func packBits(v domain.Value) ([]byte, error) {
	out := make([]byte, (len(v)+7)/8)
	for i, e := range v {
		b, err := strconv.ParseBool(e)
		if err != nil {
			return nil, fmt.Errorf("modbus: bit %d: %w", i, err)
		}
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out, nil
}

func packRegisters(v domain.Value) ([]byte, error) {
	out := make([]byte, len(v)*2)
	for i, e := range v {
		n, err := strconv.ParseUint(e, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("modbus: register %d: %w", i, err)
		}
		out[2*i] = byte(n >> 8)
		out[2*i+1] = byte(n)
	}
	return out, nil
}

func (s *Source) state(name string) (*tagState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tags[name]
	return st, ok
}

func (s *Source) Connect(ctx context.Context, name string) (valuesource.Handle, error) {
	if err := valuesource.Deadline(ctx, name); err != nil {
		return valuesource.Handle{}, err
	}
	if _, ok := s.state(name); !ok {
		return valuesource.Handle{}, domain.ErrPointAllocationFailed.WithDetailsf("%s: no modbus tag", name)
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()
	return valuesource.Handle{Name: name, ID: id}, nil
}

func (s *Source) Get(ctx context.Context, h valuesource.Handle) (valuesource.Reading, error) {
	if err := valuesource.Deadline(ctx, h.Name); err != nil {
		return valuesource.Reading{}, err
	}
	st, ok := s.state(h.Name)
	if !ok {
		return valuesource.Reading{}, domain.ErrPointAllocationFailed.WithDetails(h.Name)
	}
	v, err := s.read(st.tag)
	if err != nil {
		s.update(st, nil, false)
		return valuesource.Reading{}, domain.ErrValueSourceUnreachable.WithDetails(h.Name).Wrap(err)
	}
	s.update(st, v, true)
	return valuesource.Reading{Value: v, Elements: len(v), Valid: true}, nil
}

func (s *Source) Put(ctx context.Context, h valuesource.Handle, v domain.Value) error {
	if err := valuesource.Deadline(ctx, h.Name); err != nil {
		return err
	}
	st, ok := s.state(h.Name)
	if !ok {
		return domain.ErrPointAllocationFailed.WithDetails(h.Name)
	}
	t := st.tag
	if len(v) == 0 || len(v) > int(t.Count) {
		return domain.ErrInvalidArgument.WithDetailsf("%s: %d elements, tag holds %d", h.Name, len(v), t.Count)
	}

	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	switch t.Kind {
	case KindHolding:
		payload, err := packRegisters(v)
		if err != nil {
			return domain.ErrInvalidArgument.WithDetails(h.Name).Wrap(err)
		}
		if _, err := s.client.WriteMultipleRegisters(t.Address, uint16(len(v)), payload); err != nil {
			return domain.ErrValueSourceUnreachable.WithDetails(h.Name).Wrap(err)
		}
	case KindCoil:
		payload, err := packBits(v)
		if err != nil {
			return domain.ErrInvalidArgument.WithDetails(h.Name).Wrap(err)
		}
		if _, err := s.client.WriteMultipleCoils(t.Address, uint16(len(v)), payload); err != nil {
			return domain.ErrValueSourceUnreachable.WithDetails(h.Name).Wrap(err)
		}
	default:
		return domain.ErrInvalidArgument.WithDetailsf("%s: %s tags are read-only", h.Name, t.Kind)
	}
	return nil
}

func (s *Source) Subscribe(h valuesource.Handle) (<-chan valuesource.Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tags[h.Name]
	if !ok {
		return nil, nil, domain.ErrPointAllocationFailed.WithDetails(h.Name)
	}
	ch := make(chan valuesource.Event, eventBuffer)
	st.subs[h.ID] = ch
	ch <- valuesource.Event{Name: h.Name, Value: st.last.Clone(), Connected: st.connected, Initial: true}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := st.subs[h.ID]; ok && cur == ch {
				delete(st.subs, h.ID)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Source) Disconnect(valuesource.Handle) {}

// update stores a poll result and notifies subscribers of changes.
func (s *Source) update(st *tagState, v domain.Value, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := ok != st.connected || (ok && !v.Equal(st.last))
	st.connected = ok
	if ok {
		st.last = v.Clone()
	}
	if !changed {
		return
	}
	ev := valuesource.Event{Name: st.tag.Name, Value: st.last.Clone(), Connected: ok}
	for _, ch := range st.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PollOnce reads every subscribed tag once.
func (s *Source) PollOnce() {
	s.mu.Lock()
	var due []*tagState
	for _, st := range s.tags {
		if len(st.subs) > 0 {
			due = append(due, st)
		}
	}
	s.mu.Unlock()

	for _, st := range due {
		v, err := s.read(st.tag)
		if err != nil {
			s.logger.Debug("modbus poll failed", "tag", st.tag.Name, "error", err)
		}
		s.update(st, v, err == nil)
	}
}

func (s *Source) pollLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.PollOnce()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.mu.Lock()
		for _, st := range s.tags {
			for id, ch := range st.subs {
				close(ch)
				delete(st.subs, id)
			}
		}
		s.mu.Unlock()
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
