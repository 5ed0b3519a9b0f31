// File: game/conn.go
package game

// Conn is the room's handle on one client connection. The writer side of the
// connection owns a bounded outbound queue; the room only ever enqueues, it
// never blocks on the network.
type Conn interface {
	// ID returns the client-supplied opaque connection id, used in logs.
	ID() string
	// Enqueue hands a serialized frame to the connection's writer. It must not
	// block; it returns false when the bounded queue is full.
	Enqueue(frame []byte) bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}
