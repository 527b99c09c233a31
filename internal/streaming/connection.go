package streaming

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// sendBuffer bounds each connection's outbound queue; a slow client is
// dropped rather than allowed to block the broadcast loop.
const sendBuffer = 64

// Conn wraps one inbound client WebSocket connection: its own
// subscription record and a buffered outbound channel drained by
// writePump, per spec.md §4.9's "outbound broadcasts are non-blocking
// per connection with dead-peer removal." Grounded on
// internal/providers/kraken/websocket.go's connection/read/ping
// pattern, inverted for the server side.
type Conn struct {
	ws   *websocket.Conn
	send chan ServerMessage

	mu     sync.RWMutex
	sub    *Subscription
	closed bool

	closeOnce sync.Once
	log       zerolog.Logger
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	return &Conn{ws: ws, send: make(chan ServerMessage, sendBuffer), sub: NewSubscription(), log: log}
}

// Subscription returns the live subscription pointer; callers must not
// mutate it directly — use withSubscription.
func (c *Conn) Subscription() *Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

func (c *Conn) withSubscription(fn func(*Subscription)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.sub)
}

// Send enqueues a message for delivery; reports false (and the caller
// should treat the connection as dead) if the connection is already
// closed or its outbound buffer is full.
func (c *Conn) Send(msg ServerMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn().Msg("streaming: dropping slow connection")
		return false
	}
}

// writePump drains the outbound channel to the socket until the
// connection closes or a write fails; onDone runs exactly once when
// the pump exits so the hub can remove the dead connection.
func (c *Conn) writePump(onDone func()) {
	defer onDone()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.ws.WriteJSON(msg); err != nil {
			c.log.Debug().Err(err).Msg("streaming: write failed, closing connection")
			return
		}
	}
}

// close marks the connection dead, stops writePump, and closes the
// socket. Safe to call more than once.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		_ = c.ws.Close()
	})
}
