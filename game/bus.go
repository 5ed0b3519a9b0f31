// File: game/bus.go
package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Bus fans typed events out to a room's subscribers. It is owned by the room
// actor and only touched inside Receive, so it needs no locking. Delivery is
// enqueue-only: the per-connection writer drains the bounded queue, and a full
// queue drops the subscriber rather than blocking the room.
type Bus struct {
	subs       map[Conn]*subscriber
	logger     *zap.Logger
	onOverflow func(Conn) // invoked after a slow consumer is dropped
}

type subscriber struct {
	conn     Conn
	audience Role
	nickname string // players only
}

// NewBus creates an empty bus. onOverflow is called for every subscriber
// dropped because its queue was full; the room treats that as a disconnect.
func NewBus(logger *zap.Logger, onOverflow func(Conn)) *Bus {
	return &Bus{
		subs:       make(map[Conn]*subscriber),
		logger:     logger,
		onOverflow: onOverflow,
	}
}

// Subscribe registers a connection under an audience class. Players carry
// their nickname for private event routing.
func (b *Bus) Subscribe(conn Conn, audience Role, nickname string) {
	b.subs[conn] = &subscriber{conn: conn, audience: audience, nickname: nickname}
}

// Unsubscribe removes a connection. Safe on unknown connections.
func (b *Bus) Unsubscribe(conn Conn) {
	delete(b.subs, conn)
}

// Audience reports the audience a connection subscribed under.
func (b *Bus) Audience(conn Conn) (Role, bool) {
	s, ok := b.subs[conn]
	if !ok {
		return RolePlayer, false
	}
	return s.audience, true
}

// Subscribed reports whether the connection is registered.
func (b *Bus) Subscribed(conn Conn) bool {
	_, ok := b.subs[conn]
	return ok
}

// Broadcast delivers an event to every subscriber.
func (b *Bus) Broadcast(event interface{}) {
	b.publish(event, func(*subscriber) bool { return true })
}

// BroadcastExcept delivers an event to every subscriber but one. Used for
// roster updates where the triggering connection already got a direct reply.
func (b *Bus) BroadcastExcept(event interface{}, except Conn) {
	b.publish(event, func(s *subscriber) bool { return s.conn != except })
}

// ToPlayers delivers an event to player subscribers only.
func (b *Bus) ToPlayers(event interface{}) {
	b.publish(event, func(s *subscriber) bool { return s.audience == RolePlayer })
}

// ToWatchers delivers an event to the organizer and spectators, the audiences
// that see answer counts but never private player events.
func (b *Bus) ToWatchers(event interface{}) {
	b.publish(event, func(s *subscriber) bool { return s.audience != RolePlayer })
}

// ToConn delivers an event to a single connection, subscribed or not. Used
// for join replies and errors.
func (b *Bus) ToConn(conn Conn, event interface{}) {
	frame, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("marshal event", zap.Error(err))
		return
	}
	b.deliver(conn, frame)
}

func (b *Bus) publish(event interface{}, match func(*subscriber) bool) {
	frame, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("marshal event", zap.Error(err))
		return
	}
	// Collect first: deliver may drop subscribers, mutating b.subs.
	targets := make([]Conn, 0, len(b.subs))
	for conn, s := range b.subs {
		if match(s) {
			targets = append(targets, conn)
		}
	}
	for _, conn := range targets {
		b.deliver(conn, frame)
	}
}

// deliver enqueues a frame, dropping the subscriber on overflow.
func (b *Bus) deliver(conn Conn, frame []byte) {
	if conn.Enqueue(frame) {
		return
	}
	if _, ok := b.subs[conn]; ok {
		b.logger.Warn("outbound queue full, dropping subscriber", zap.String("conn", conn.ID()))
		delete(b.subs, conn)
		conn.Close()
		if b.onOverflow != nil {
			b.onOverflow(conn)
		}
	}
}

// CloseAll sends a final event to every subscriber, then closes and clears
// them. Used when the room terminates.
func (b *Bus) CloseAll(event interface{}) {
	frame, err := json.Marshal(event)
	if err == nil {
		for conn := range b.subs {
			conn.Enqueue(frame)
		}
	}
	for conn := range b.subs {
		conn.Close()
	}
	b.subs = make(map[Conn]*subscriber)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int { return len(b.subs) }
