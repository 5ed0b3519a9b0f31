// File: game/clock.go
package game

import (
	"sort"
	"sync"
	"time"
)

// CancelFunc cancels a scheduled callback. Idempotent. After it returns the
// callback is guaranteed not to run if it has not already started.
type CancelFunc func()

// Scheduler is the room engine's only time source. Rooms never call the time
// package directly, so tests can drive a room with a ManualClock.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, f func()) CancelFunc
}

// RealClock schedules on the wall clock via time.AfterFunc.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) After(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// ManualClock is a deterministic Scheduler for tests. Time only moves when
// Advance is called; due callbacks run synchronously, in deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending map[int]*manualTimer
}

type manualTimer struct {
	id       int
	deadline time.Time
	f        func()
}

// NewManualClock starts a manual clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:     start,
		pending: make(map[int]*manualTimer),
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) After(d time.Duration, f func()) CancelFunc {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.pending[id] = &manualTimer{id: id, deadline: c.now.Add(d), f: f}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}
}

// Advance moves the clock forward and fires every callback whose deadline has
// passed. Callbacks scheduled while firing are honored within the same call
// when they fall inside the advanced window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.pending {
			if !t.deadline.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].deadline.Equal(due[j].deadline) {
				return due[i].id < due[j].id
			}
			return due[i].deadline.Before(due[j].deadline)
		})
		next := due[0]
		delete(c.pending, next.id)
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()
		next.f()
	}
}
