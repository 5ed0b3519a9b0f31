// File: server/client.go
package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lguibr/bollywood"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lguibr/quizcast/game"
	"github.com/lguibr/quizcast/utils"
)

// wsClient adapts one WebSocket connection to the room's Conn interface. The
// room enqueues frames; the write pump drains them. Enqueue never blocks, so a
// slow reader can stall only itself.
type wsClient struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	engine  *bollywood.Engine
	roomPID *bollywood.PID
	cfg     utils.Config
	logger  *zap.Logger
	limiter *rate.Limiter
}

func newWSClient(id string, ws *websocket.Conn, engine *bollywood.Engine, roomPID *bollywood.PID, cfg utils.Config, logger *zap.Logger) *wsClient {
	return &wsClient{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, cfg.OutboundQueueSize),
		done:    make(chan struct{}),
		engine:  engine,
		roomPID: roomPID,
		cfg:     cfg,
		logger:  logger.With(zap.String("conn", id)),
		limiter: rate.NewLimiter(rate.Limit(cfg.WSRateLimitPerSec), int(2*cfg.WSRateLimitPerSec)),
	}
}

func (c *wsClient) ID() string { return c.id }

// Enqueue queues a frame for delivery. Returns false when the connection is
// closed or its queue is full; the caller treats either as a dead subscriber.
func (c *wsClient) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close releases the connection. Idempotent; callable from any goroutine.
func (c *wsClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// run starts the pumps and blocks until the read side exits.
func (c *wsClient) run() {
	go c.writePump()
	c.readPump()
}

// readPump reads, rate-limits and parses inbound frames, posting typed
// commands to the room. It owns the read deadline: two missed heartbeat
// intervals without traffic or a pong kills the connection.
func (c *wsClient) readPump() {
	defer func() {
		c.Close()
		c.engine.Send(c.roomPID, game.ClientDisconnected{Conn: c}, nil)
	}()

	readWait := 2 * c.cfg.HeartbeatInterval
	c.ws.SetReadLimit(c.cfg.MaxWSMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readWait))

		if !c.limiter.Allow() {
			c.sendErrorFrame("Too many messages, slow down")
			continue
		}

		command, err := game.ParseCommand(frame)
		if err != nil {
			// Malformed input costs the frame, not the connection.
			if errors.Is(err, game.ErrMalformedFrame) {
				c.sendErrorFrame("Malformed message")
			} else {
				c.sendErrorFrame(err.Error())
			}
			continue
		}
		c.engine.Send(c.roomPID, game.ClientCommand{Conn: c, Command: command}, nil)
	}
}

// writePump drains the outbound queue and keeps the heartbeat going. It owns
// all writes to the socket.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	writeWait := 10 * time.Second
	for {
		select {
		case <-c.done:
			// Flush frames enqueued just before Close (KICKED, ROOM_CLOSED)
			// so the close frame is always last.
			for {
				select {
				case frame := <-c.send:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					c.ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}

		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// sendErrorFrame emits an ERROR event directly, bypassing the room. Used for
// transport-level rejections where the room never sees the frame.
func (c *wsClient) sendErrorFrame(message string) {
	frame, err := json.Marshal(game.ErrorEvent{
		EventHeader: game.EventHeader{Type: game.EvtError},
		Message:     message,
	})
	if err != nil {
		return
	}
	c.Enqueue(frame)
}
