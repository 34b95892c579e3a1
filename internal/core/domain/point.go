package domain

import "sync"

// Value is a rendered point value. A scalar has one element.
type Value []string

// IsArray reports whether the value needs the array encoding.
func (v Value) IsArray() bool {
	return len(v) > 1
}

// Clone returns an independent copy.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// Equal reports element-wise equality.
func (v Value) Equal(o Value) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Point is one named external value kept in sync for a SaveSet.
//
// Cached fields are guarded by mu because value-source callbacks update
// them from their own goroutines while the scheduler reads them.
type Point struct {
	Name string

	mu            sync.Mutex
	value         Value
	curElements   int
	maxElements   int // -1 = permanently unusable
	valid         bool
	connected     bool
	everConnected bool
}

// PointSnapshot is a consistent copy of a Point's cached state.
type PointSnapshot struct {
	Name          string
	Value         Value
	Elements      int
	MaxElements   int
	Valid         bool
	Connected     bool
	EverConnected bool
}

// NewPoint creates an unconnected point.
func NewPoint(name string) *Point {
	return &Point{Name: name}
}

// Update stores a freshly fetched or monitored value.
func (p *Point) Update(v Value, elements int, valid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxElements < 0 {
		return
	}
	if valid {
		p.value = v.Clone()
		p.curElements = elements
		if elements > p.maxElements {
			p.maxElements = elements
		}
		p.everConnected = true
		p.connected = true
	}
	p.valid = valid
}

// Invalidate marks the cached value stale without discarding it.
func (p *Point) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// SetConnected records a connection-state change from the value source.
func (p *Point) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
	if connected {
		p.everConnected = true
	} else {
		p.valid = false
	}
}

// MarkUnusable flags the point as permanently unserviceable.
func (p *Point) MarkUnusable() {
	p.mu.Lock()
	p.maxElements = -1
	p.valid = false
	p.connected = false
	p.mu.Unlock()
}

// Usable reports whether the point can still be fetched.
func (p *Point) Usable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxElements >= 0
}

// Snapshot returns a copy of the cached state.
func (p *Point) Snapshot() PointSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PointSnapshot{
		Name:          p.Name,
		Value:         p.value.Clone(),
		Elements:      p.curElements,
		MaxElements:   p.maxElements,
		Valid:         p.valid,
		Connected:     p.connected,
		EverConnected: p.everConnected,
	}
}
