// Package memory is an in-process value source backed by a map. It serves
// configured soft points and doubles as the test source.
package memory

import (
	"context"
	"sync"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/valuesource"
)

const eventBuffer = 64

type entry struct {
	value     domain.Value
	connected bool
	refused   bool
	subs      map[uint64]chan valuesource.Event
}

// Source is a map-backed value source.
type Source struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	handles map[uint64]string
	puts    []Put
	closed  bool
}

// Put records one write made through the source.
type Put struct {
	Name  string
	Value domain.Value
}

// New creates a source seeded with connected values.
func New(initial map[string]domain.Value) *Source {
	s := &Source{
		entries: make(map[string]*entry),
		handles: make(map[uint64]string),
	}
	for name, v := range initial {
		s.entries[name] = &entry{value: v.Clone(), connected: true, subs: map[uint64]chan valuesource.Event{}}
	}
	return s
}

func (s *Source) entry(name string) *entry {
	e, ok := s.entries[name]
	if !ok {
		e = &entry{subs: map[uint64]chan valuesource.Event{}}
		s.entries[name] = e
	}
	return e
}

// Set stores a value, connects the point and notifies subscribers.
func (s *Source) Set(name string, v ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(name)
	e.value = domain.Value(v).Clone()
	e.connected = true
	s.notify(name, e)
}

// DisconnectPoint marks a point unreachable and notifies subscribers.
func (s *Source) DisconnectPoint(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(name)
	e.connected = false
	s.notify(name, e)
}

// Refuse makes future Connect calls for name fail permanently.
func (s *Source) Refuse(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(name).refused = true
}

// Value returns the stored value of name.
func (s *Source) Value(name string) (domain.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value.Clone(), true
}

// Puts returns the writes made through Put, in order.
func (s *Source) Puts() []Put {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Put(nil), s.puts...)
}

// notify must be called with mu held. Slow subscribers lose events; the
// point value is always re-read before a save.
func (s *Source) notify(name string, e *entry) {
	ev := valuesource.Event{Name: name, Value: e.value.Clone(), Connected: e.connected}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Source) Connect(ctx context.Context, name string) (valuesource.Handle, error) {
	if err := valuesource.Deadline(ctx, name); err != nil {
		return valuesource.Handle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return valuesource.Handle{}, domain.ErrValueSourceUnreachable.WithDetails("source closed")
	}
	if s.entry(name).refused {
		return valuesource.Handle{}, domain.ErrPointAllocationFailed.WithDetails(name)
	}
	s.nextID++
	s.handles[s.nextID] = name
	return valuesource.Handle{Name: name, ID: s.nextID}, nil
}

func (s *Source) Get(ctx context.Context, h valuesource.Handle) (valuesource.Reading, error) {
	if err := valuesource.Deadline(ctx, h.Name); err != nil {
		return valuesource.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h.Name]
	if !ok || !e.connected {
		return valuesource.Reading{}, domain.ErrValueSourceUnreachable.WithDetails(h.Name)
	}
	return valuesource.Reading{Value: e.value.Clone(), Elements: len(e.value), Valid: true}, nil
}

func (s *Source) Put(ctx context.Context, h valuesource.Handle, v domain.Value) error {
	if err := valuesource.Deadline(ctx, h.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h.Name]
	if !ok || !e.connected {
		return domain.ErrValueSourceUnreachable.WithDetails(h.Name)
	}
	e.value = v.Clone()
	s.puts = append(s.puts, Put{Name: h.Name, Value: v.Clone()})
	s.notify(h.Name, e)
	return nil
}

func (s *Source) Subscribe(h valuesource.Handle) (<-chan valuesource.Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(h.Name)
	ch := make(chan valuesource.Event, eventBuffer)
	e.subs[h.ID] = ch
	ch <- valuesource.Event{Name: h.Name, Value: e.value.Clone(), Connected: e.connected, Initial: true}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := e.subs[h.ID]; ok && cur == ch {
				delete(e.subs, h.ID)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Source) Disconnect(h valuesource.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h.ID)
}

// Handles returns the number of live handles.
func (s *Source) Handles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, e := range s.entries {
		for id, ch := range e.subs {
			close(ch)
			delete(e.subs, id)
		}
	}
	return nil
}
