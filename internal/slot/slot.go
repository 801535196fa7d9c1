// Package slot provides slot sources. A slot is the protocol's only notion
// of time; nothing here consults the wall clock.
package slot

import "sync/atomic"

// Counter is a forward-only slot counter fed by an external follower.
type Counter struct {
	cur atomic.Uint64
}

// NewCounter starts the counter at start.
func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.cur.Store(start)
	return c
}

// CurrentSlot returns the latest observed slot.
func (c *Counter) CurrentSlot() uint64 { return c.cur.Load() }

// Observe records an externally observed slot. Regressions are ignored so
// the counter never moves backwards.
func (c *Counter) Observe(slot uint64) {
	for {
		cur := c.cur.Load()
		if slot <= cur {
			return
		}
		if c.cur.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// Advance bumps the counter by n and returns the new slot.
func (c *Counter) Advance(n uint64) uint64 { return c.cur.Add(n) }
