package streaming

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Reconciler is notified whenever the union of subscribed (symbol,
// timeframe) pairs for a provider changes, so the upstream multiplexer
// can open/close/resubscribe its one connection to that provider. Per
// spec.md §4.9, the subscription table is mutated only from the
// connection's own task or this control path, never directly from the
// upstream task.
type Reconciler interface {
	Reconcile(provider string, pairs map[Pair]struct{})
}

// Hub fans normalized upstream events out to subscribed client
// connections and recomputes the cross-connection subscription union
// on every change.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}

	reconciler Reconciler
	log        zerolog.Logger
}

// NewHub builds a Hub. reconciler may be nil in tests that don't drive
// an upstream connection.
func NewHub(reconciler Reconciler, log zerolog.Logger) *Hub {
	return &Hub{conns: make(map[*Conn]struct{}), reconciler: reconciler, log: log.With().Str("component", "streaming_hub").Logger()}
}

// ServeHTTP upgrades the request to a WebSocket and runs the
// connection's read/write pumps until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("streaming: upgrade failed")
		return
	}
	conn := newConn(ws, h.log)
	h.register(conn)

	go conn.writePump(func() { h.unregister(conn) })
	conn.Send(ServerMessage{Type: TypeStatus, Message: "connected", Timestamp: time.Now().UTC()})
	h.readPump(conn)
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.close()
	h.recompute()
}

func (h *Hub) readPump(c *Conn) {
	defer h.unregister(c)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.Send(ServerMessage{Type: TypeError, Message: "malformed control message", Timestamp: time.Now().UTC()})
			continue
		}
		h.handleControl(c, msg)
	}
}

func (h *Hub) handleControl(c *Conn, msg ClientMessage) {
	switch msg.Action {
	case ActionPing:
		c.Send(ServerMessage{Type: TypePong, Timestamp: time.Now().UTC()})
		return
	case ActionSubscribe:
		c.withSubscription(func(s *Subscription) { s.Add(msg.Symbols, msg.Timeframes, msg.Provider) })
	case ActionUnsubscribe:
		c.withSubscription(func(s *Subscription) { s.Remove(msg.Symbols, msg.Timeframes) })
	default:
		c.Send(ServerMessage{Type: TypeError, Message: "unknown action", Timestamp: time.Now().UTC()})
		return
	}
	c.Send(ServerMessage{Type: TypeStatus, Message: string(msg.Action) + "d", Timestamp: time.Now().UTC()})
	h.recompute()
}

// recompute rebuilds the cross-connection subscription union and
// notifies the reconciler, grouped by provider.
func (h *Hub) recompute() {
	if h.reconciler == nil {
		return
	}
	byProvider := make(map[string][]*Subscription)

	h.mu.RLock()
	for c := range h.conns {
		sub := c.Subscription()
		provider := sub.Provider
		if provider == "" {
			continue
		}
		byProvider[provider] = append(byProvider[provider], sub)
	}
	h.mu.RUnlock()

	for provider, subs := range byProvider {
		h.reconciler.Reconcile(provider, Union(subs))
	}
}

// Broadcast delivers msg to every connection whose subscription
// includes msg.Symbol. Connections whose send buffer is full are
// dropped.
func (h *Hub) Broadcast(msg ServerMessage) {
	h.mu.RLock()
	var dead []*Conn
	for c := range h.conns {
		sub := c.Subscription()
		if !sub.HasSymbol(msg.Symbol) {
			continue
		}
		if !c.Send(msg) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.unregister(c)
	}
}

// ConnCount reports the number of active connections, for tests and
// health reporting.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
