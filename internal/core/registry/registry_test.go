package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
)

// staticResolver serves fixed point lists.
type staticResolver map[string]*definition.Definition

func (s staticResolver) Resolve(name, macros string) (*definition.Definition, error) {
	d, ok := s[name]
	if !ok {
		return nil, domain.ErrDefinitionNotFound.WithDetails(name)
	}
	cp := *d
	return &cp, nil
}

func newTestRegistry() *Registry {
	return New(staticResolver{
		"a.req":   {Name: "a.req", Points: []string{"A", "B", "A"}},
		"b.req":   {Name: "b.req", Points: []string{"C"}},
		"c.req":   {Name: "c.req", Points: []string{"D"}},
		"dyn.req": {Name: "dyn.req", Points: []string{"X"}, PathPoint: "dir", NamePoint: "file", Label: "dyn"},
	})
}

var periodic = domain.Schedule{Period: 5 * time.Second}

func TestDefine(t *testing.T) {
	r := newTestRegistry()

	s, created, err := r.Define("a.req", domain.MethodPeriodic, periodic, "")
	if err != nil || !created {
		t.Fatalf("Define = %v, %v", created, err)
	}
	if len(s.Points) != 3 || s.Points[2].Name != "A" {
		t.Errorf("duplicates must be kept in order: %d points", len(s.Points))
	}
	if s.Slot != 0 || s.OutputFile != "a.sav" {
		t.Errorf("slot=%d file=%s", s.Slot, s.OutputFile)
	}

	again, created, err := r.Define("a.req", domain.MethodMonitored, domain.Schedule{MonitorPeriod: time.Second}, "")
	if err != nil || created || again != s {
		t.Fatalf("adding a method: %v, %v", created, err)
	}
	if s.Requested != domain.MethodPeriodic|domain.MethodMonitored {
		t.Errorf("Requested = %v", s.Requested)
	}

	if _, _, err := r.Define("a.req", domain.MethodPeriodic, periodic, ""); !errors.Is(err, domain.ErrDuplicateTriggerMethod) {
		t.Errorf("duplicate method err = %v", err)
	}
	if _, _, err := r.Define("missing.req", domain.MethodPeriodic, periodic, ""); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Errorf("missing definition err = %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestDefine_PointTargetDisablesBackups(t *testing.T) {
	r := newTestRegistry()
	s, _, err := r.Define("dyn.req", domain.MethodManual, domain.Schedule{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if s.DoBackups || !s.UsesPointTarget() || s.Label != "dyn" {
		t.Errorf("set = %+v", s)
	}
}

func TestRemove(t *testing.T) {
	r := newTestRegistry()
	r.Define("a.req", domain.MethodPeriodic, periodic, "")
	r.Define("b.req", domain.MethodPeriodic, periodic, "")
	r.Define("c.req", domain.MethodPeriodic, periodic, "")

	if _, err := r.Remove("nope.req"); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("Remove(nope) = %v", err)
	}
	if r.Len() != 3 {
		t.Fatal("failed remove changed the registry")
	}

	b, err := r.Remove("b.req")
	if err != nil {
		t.Fatal(err)
	}
	if b.Alive() || b.Flag(domain.MethodManual) {
		t.Error("removed set must be dead")
	}
	sets := r.Sets()
	if len(sets) != 2 || sets[0].Name != "a.req" || sets[1].Name != "c.req" {
		t.Errorf("Sets = %v", names(sets))
	}

	// Re-adding reuses the freed slot.
	b2, _, _ := r.Define("b.req", domain.MethodPeriodic, periodic, "")
	if b2.Slot != b.Slot {
		t.Errorf("slot = %d, want reused %d", b2.Slot, b.Slot)
	}
	r.Compact()
	if got := names(r.Sets()); len(got) != 3 || got[2] != "b.req" {
		t.Errorf("after compact = %v", got)
	}
}

func TestReload(t *testing.T) {
	r := newTestRegistry()
	r.Define("a.req", domain.MethodPeriodic, periodic, "")
	r.Define("b.req", domain.MethodPeriodic, periodic, "")

	old, cur, err := r.Reload("a.req", domain.MethodTriggered, domain.Schedule{TriggerPoint: "T"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if old.Alive() || !cur.Alive() || cur.Slot != old.Slot {
		t.Errorf("old alive=%v cur alive=%v slots %d/%d", old.Alive(), cur.Alive(), old.Slot, cur.Slot)
	}
	if cur.Requested != domain.MethodTriggered {
		t.Errorf("Requested = %v", cur.Requested)
	}
	if got := names(r.Sets()); got[0] != "a.req" {
		t.Errorf("reloaded set lost its position: %v", got)
	}

	// A definition that no longer resolves keeps the old set.
	r.resolver.(staticResolver)["gone.req"] = &definition.Definition{Points: []string{"G"}}
	r.Define("gone.req", domain.MethodPeriodic, periodic, "")
	delete(r.resolver.(staticResolver), "gone.req")
	if _, _, err := r.Reload("gone.req", domain.MethodPeriodic, periodic, ""); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("Reload = %v", err)
	}
	if s, ok := r.Get("gone.req"); !ok || !s.Alive() {
		t.Error("failed reload removed the set")
	}

	// Reloading an unknown name defines it.
	_, c, err := r.Reload("c.req", domain.MethodPeriodic, periodic, "")
	if err != nil || c == nil || r.Len() != 4 {
		t.Errorf("Reload(new) = %v, %v", c, err)
	}
}

func names(sets []*domain.SaveSet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.Name
	}
	return out
}
