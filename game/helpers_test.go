// File: game/helpers_test.go
package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn that records every enqueued frame.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool // when set, Enqueue reports overflow
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	c.frames = append(c.frames, buf)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

// events decodes every received frame into a generic map.
func (c *fakeConn) events() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.frames))
	for _, frame := range c.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(frame, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// eventTypes lists the type discriminators in delivery order.
func (c *fakeConn) eventTypes() []string {
	var types []string
	for _, e := range c.events() {
		if s, ok := e["type"].(string); ok {
			types = append(types, s)
		}
	}
	return types
}

// lastEventOfType returns the most recent event with the given type.
func (c *fakeConn) lastEventOfType(eventType string) (map[string]interface{}, bool) {
	events := c.events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i]["type"] == eventType {
			return events[i], true
		}
	}
	return nil, false
}

// waitForEvent polls until the connection has received an event of the given
// type or the timeout expires.
func waitForEvent(t *testing.T, c *fakeConn, eventType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e, ok := c.lastEventOfType(eventType); ok {
			return e
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection %s never received %s; got %v", c.id, eventType, c.eventTypes())
	return nil
}

// settle gives the actor mailbox time to drain between test steps.
func settle() {
	time.Sleep(30 * time.Millisecond)
}
