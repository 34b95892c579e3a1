package registry

import (
	"sync"

	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
)

// Registry holds save sets in creation order.
type Registry struct {
	resolver definition.Resolver

	mu         sync.RWMutex
	sets       []*domain.SaveSet
	byName     map[string]*domain.SaveSet
	slots      []bool
	tombstones int
}

// New creates an empty registry resolving definitions with resolver.
func New(resolver definition.Resolver) *Registry {
	return &Registry{
		resolver: resolver,
		byName:   make(map[string]*domain.SaveSet),
	}
}

// Get returns the live set called name.
func (r *Registry) Get(name string) (*domain.SaveSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Sets returns the live sets in creation order.
func (r *Registry) Sets() []*domain.SaveSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.SaveSet, 0, len(r.sets)-r.tombstones)
	for _, s := range r.sets {
		if s.Alive() {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Build resolves a definition into an unregistered set.
func (r *Registry) Build(name, macros string) (*domain.SaveSet, error) {
	def, err := r.resolver.Resolve(name, macros)
	if err != nil {
		return nil, err
	}
	points := make([]*domain.Point, 0, len(def.Points))
	for _, p := range def.Points {
		points = append(points, domain.NewPoint(p))
	}
	s := domain.NewSaveSet(name, points)
	s.Macros = macros
	s.Label = def.Label
	s.PathPoint = def.PathPoint
	s.NamePoint = def.NamePoint
	if s.UsesPointTarget() {
		s.DoBackups = false
	}
	return s, nil
}

// Define creates a set, or adds a method to an existing one. It reports
// whether a new set was created. Adding an already requested method fails
// with ErrDuplicateTriggerMethod and leaves the set unchanged.
func (r *Registry) Define(name string, m domain.Method, sched domain.Schedule, macros string) (*domain.SaveSet, bool, error) {
	if m == 0 {
		return nil, false, domain.ErrInvalidArgument.WithDetails("trigger method required")
	}
	if s, ok := r.Get(name); ok {
		if err := s.MergeMethod(m, sched); err != nil {
			return s, false, err
		}
		return s, false, nil
	}

	s, err := r.Build(name, macros)
	if err != nil {
		return nil, false, err
	}
	if err := s.MergeMethod(m, sched); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	s.Slot = r.allocSlot()
	r.sets = append(r.sets, s)
	r.byName[name] = s
	r.mu.Unlock()
	return s, true, nil
}

// Remove kills and unregisters name, freeing its status slot. The caller
// disconnects its points.
func (r *Registry) Remove(name string) (*domain.SaveSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrDefinitionNotFound.WithDetails(name)
	}
	s.Kill()
	delete(r.byName, name)
	r.freeSlot(s.Slot)
	r.tombstones++
	return s, nil
}

// Reload rebuilds name with a fresh method and schedule, taking the old
// set's position and status slot. The replacement is built before the old
// set is touched, so a bad definition leaves the old set in place. A name
// not yet registered is defined.
func (r *Registry) Reload(name string, m domain.Method, sched domain.Schedule, macros string) (old, cur *domain.SaveSet, err error) {
	if m == 0 {
		return nil, nil, domain.ErrInvalidArgument.WithDetails("trigger method required")
	}
	if _, ok := r.Get(name); !ok {
		s, _, err := r.Define(name, m, sched, macros)
		return nil, s, err
	}

	next, err := r.Build(name, macros)
	if err != nil {
		return nil, nil, err
	}
	if err := next.MergeMethod(m, sched); err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old = r.byName[name]
	old.Kill()
	next.Slot = old.Slot
	for i, s := range r.sets {
		if s == old {
			r.sets[i] = next
			break
		}
	}
	r.byName[name] = next
	return old, next, nil
}

// Compact drops tombstoned sets.
func (r *Registry) Compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tombstones == 0 {
		return
	}
	live := r.sets[:0]
	for _, s := range r.sets {
		if s.Alive() {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(r.sets); i++ {
		r.sets[i] = nil
	}
	r.sets = live
	r.tombstones = 0
}

// allocSlot must be called with mu held. The lowest free slot is reused.
func (r *Registry) allocSlot() int {
	for i, used := range r.slots {
		if !used {
			r.slots[i] = true
			return i
		}
	}
	r.slots = append(r.slots, true)
	return len(r.slots) - 1
}

func (r *Registry) freeSlot(i int) {
	if i >= 0 && i < len(r.slots) {
		r.slots[i] = false
	}
}
