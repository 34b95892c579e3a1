package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/valuesource"
)

// link is one connected name within a set.
type link struct {
	handle valuesource.Handle
	ok     bool
	cancel func()
}

// setConn holds the value-source side of a set. Only the worker touches
// the links; watch goroutines read the atomic bits.
type setConn struct {
	points  []link
	trigger link
	// target holds the path/name directive points.
	target map[string]*link

	// onChange is the trigger bit flagged when a point value changes.
	onChange atomic.Uint32
	wg       sync.WaitGroup
}

func (e *Engine) conn(s *domain.SaveSet) *setConn {
	c, ok := e.conns[s]
	if !ok {
		c = &setConn{
			points: make([]link, len(s.Points)),
			target: make(map[string]*link),
		}
		e.conns[s] = c
	}
	return c
}

// connectTimeout bounds connection and fetch calls for n names.
func (e *Engine) connectTimeout(n int) time.Duration {
	d := time.Duration(n) * e.Config().clamp().FetchTimeoutPerPoint
	if d < minFetchTimeout {
		d = minFetchTimeout
	}
	return d
}

// connectPoints connects every usable point that has no handle yet and
// subscribes to it. Points the source can never serve are marked unusable.
func (e *Engine) connectPoints(ctx context.Context, s *domain.SaveSet) {
	c := e.conn(s)
	var missing int
	for i := range c.points {
		if !c.points[i].ok && s.Points[i].Usable() {
			missing++
		}
	}
	if missing == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.connectTimeout(missing))
	defer cancel()
	for i, p := range s.Points {
		l := &c.points[i]
		if l.ok || !p.Usable() {
			continue
		}
		h, err := e.source.Connect(ctx, p.Name)
		if err != nil {
			if errors.Is(err, domain.ErrPointAllocationFailed) {
				p.MarkUnusable()
				e.logger.Warn("point unusable", "set", s.Name, "point", p.Name, "error", err)
			}
			continue
		}
		l.handle, l.ok = h, true
		ch, stop, err := e.source.Subscribe(h)
		if err != nil {
			e.logger.Debug("subscribe failed", "set", s.Name, "point", p.Name, "error", err)
			continue
		}
		l.cancel = stop
		c.wg.Add(1)
		go c.watch(s, p, ch, func() domain.Method { return domain.Method(c.onChange.Load()) })
	}
}

// connectTrigger connects the set's trigger point. It reports success.
func (e *Engine) connectTrigger(ctx context.Context, s *domain.SaveSet) bool {
	c := e.conn(s)
	if c.trigger.ok {
		return true
	}
	name := s.Schedule.TriggerPoint
	if name == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, e.connectTimeout(1))
	defer cancel()
	h, err := e.source.Connect(ctx, name)
	if err != nil {
		e.logger.Debug("trigger point not connected", "set", s.Name, "point", name, "error", err)
		return false
	}
	ch, stop, err := e.source.Subscribe(h)
	if err != nil {
		e.source.Disconnect(h)
		e.logger.Debug("trigger subscribe failed", "set", s.Name, "point", name, "error", err)
		return false
	}
	c.trigger = link{handle: h, ok: true, cancel: stop}
	c.wg.Add(1)
	go c.watch(s, nil, ch, func() domain.Method { return domain.MethodTriggered })
	return true
}

// watch applies events to p and flags the bit returned by flag on every
// real update. The initial subscribe event only seeds the cache.
func (c *setConn) watch(s *domain.SaveSet, p *domain.Point, ch <-chan valuesource.Event, flag func() domain.Method) {
	defer c.wg.Done()
	for ev := range ch {
		if p != nil {
			if ev.Connected {
				p.Update(ev.Value, len(ev.Value), true)
			} else {
				p.SetConnected(false)
			}
		}
		if ev.Initial || !ev.Connected {
			continue
		}
		if m := flag(); m != 0 {
			s.Flag(m)
		}
	}
}

// readTarget fetches a directive point such as the output path.
func (e *Engine) readTarget(ctx context.Context, s *domain.SaveSet, name string) (string, bool) {
	c := e.conn(s)
	l, ok := c.target[name]
	if !ok {
		h, err := e.source.Connect(ctx, name)
		if err != nil {
			return "", false
		}
		l = &link{handle: h, ok: true}
		c.target[name] = l
	}
	r, err := e.source.Get(ctx, l.handle)
	if err != nil || !r.Valid || len(r.Value) == 0 || r.Value[0] == "" {
		return "", false
	}
	return r.Value[0], true
}

// fetch reads every point of s. It returns the number of points that
// could not be read; those keep their stale value and are marked invalid.
func (e *Engine) fetch(ctx context.Context, s *domain.SaveSet) int {
	c := e.conn(s)
	ctx, cancel := context.WithTimeout(ctx, e.connectTimeout(len(s.Points)))
	defer cancel()

	unreachable := 0
	for i, p := range s.Points {
		l := c.points[i]
		if !l.ok {
			p.Invalidate()
			unreachable++
			continue
		}
		r, err := e.source.Get(ctx, l.handle)
		if err != nil || !r.Valid {
			p.Invalidate()
			unreachable++
			continue
		}
		p.Update(r.Value, r.Elements, true)
	}
	return unreachable
}

// disconnect releases everything connected for s and waits for its watch
// goroutines to exit.
func (e *Engine) disconnect(s *domain.SaveSet) {
	e.timers.Stop(s)
	c, ok := e.conns[s]
	if !ok {
		return
	}
	delete(e.conns, s)
	release := func(l *link) {
		if l.cancel != nil {
			l.cancel()
		}
		if l.ok {
			e.source.Disconnect(l.handle)
		}
		*l = link{}
	}
	for i := range c.points {
		release(&c.points[i])
	}
	release(&c.trigger)
	for _, l := range c.target {
		release(l)
	}
	c.wg.Wait()
}

// teardownAll disconnects every set.
func (e *Engine) teardownAll() {
	for s := range e.conns {
		e.disconnect(s)
	}
	e.timers.StopAll()
}
