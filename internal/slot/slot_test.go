package slot

import (
	"sync"
	"testing"
)

func TestCounterObserve(t *testing.T) {
	c := NewCounter(100)
	if c.CurrentSlot() != 100 {
		t.Fatalf("start = %d", c.CurrentSlot())
	}
	c.Observe(150)
	if c.CurrentSlot() != 150 {
		t.Fatalf("after observe = %d", c.CurrentSlot())
	}
	// Regressions are ignored.
	c.Observe(120)
	if c.CurrentSlot() != 150 {
		t.Fatalf("regressed to %d", c.CurrentSlot())
	}
}

func TestCounterAdvance(t *testing.T) {
	c := NewCounter(10)
	if got := c.Advance(5); got != 15 {
		t.Fatalf("advance = %d", got)
	}
}

func TestCounterConcurrentObserve(t *testing.T) {
	c := NewCounter(0)
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(s uint64) {
			defer wg.Done()
			c.Observe(s)
		}(uint64(i))
	}
	wg.Wait()
	if c.CurrentSlot() != 100 {
		t.Fatalf("final = %d", c.CurrentSlot())
	}
}
