package streaming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Codec is the provider-specific half of an upstream stream connection
// — mirroring internal/adapter.Capability's split between the generic
// fetch lifecycle and per-provider hooks, here applied to the
// subscribe/parse lifecycle of a streaming connection.
type Codec interface {
	// URL returns the provider's WebSocket endpoint.
	URL() string
	// BuildSubscribe returns the control message to send for pairs.
	BuildSubscribe(pairs map[Pair]struct{}) (interface{}, error)
	// BuildUnsubscribe returns the control message to send for pairs.
	BuildUnsubscribe(pairs map[Pair]struct{}) (interface{}, error)
	// Parse normalizes one inbound frame into zero or more events.
	Parse(raw []byte) ([]ServerMessage, error)
}

// Upstream holds one provider's live WebSocket connection, grounded on
// internal/providers/kraken/websocket.go's Connect/messageLoop/pingLoop
// trio (dial, read loop in its own task, periodic ping, reconnect
// signal on unexpected close).
type Upstream struct {
	provider string
	codec    Codec
	onEvent  func(ServerMessage)
	log      zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	current map[Pair]struct{}
	cancel  context.CancelFunc
}

// NewUpstream builds an Upstream for provider using codec; onEvent is
// called for every normalized event the provider emits. The listen
// loop runs as its own task per spec.md §4.9's concurrency model;
// onEvent must not block it.
func NewUpstream(provider string, codec Codec, onEvent func(ServerMessage), log zerolog.Logger) *Upstream {
	return &Upstream{provider: provider, codec: codec, onEvent: onEvent, current: map[Pair]struct{}{}, log: log.With().Str("upstream_provider", provider).Logger()}
}

// Reconcile implements Reconciler: on the first subscription it dials
// the provider; on every change after that it sends the delta as
// subscribe/unsubscribe control messages rather than reconnecting.
func (u *Upstream) Reconcile(provider string, pairs map[Pair]struct{}) {
	if provider != u.provider {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if len(pairs) == 0 {
		u.disconnectLocked()
		return
	}

	if u.conn == nil {
		if err := u.connectLocked(); err != nil {
			u.log.Error().Err(err).Msg("streaming: upstream connect failed")
			return
		}
	}

	added, removed := diff(u.current, pairs)
	if len(added) > 0 {
		if msg, err := u.codec.BuildSubscribe(added); err == nil {
			_ = u.conn.WriteJSON(msg)
		}
	}
	if len(removed) > 0 {
		if msg, err := u.codec.BuildUnsubscribe(removed); err == nil {
			_ = u.conn.WriteJSON(msg)
		}
	}
	u.current = pairs
}

func (u *Upstream) connectLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 30 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.codec.URL(), nil)
	if err != nil {
		cancel()
		return fmt.Errorf("streaming: dial %s: %w", u.provider, err)
	}
	u.conn = conn
	u.cancel = cancel

	go u.messageLoop(ctx, conn)
	go u.pingLoop(ctx, conn)
	return nil
}

func (u *Upstream) disconnectLocked() {
	if u.conn == nil {
		return
	}
	u.cancel()
	_ = u.conn.Close()
	u.conn = nil
	u.current = map[Pair]struct{}{}
}

func (u *Upstream) messageLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Error().Interface("panic", r).Msg("streaming: upstream message loop panic")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			u.log.Warn().Err(err).Msg("streaming: upstream read error")
			return
		}
		events, err := u.codec.Parse(raw)
		if err != nil {
			u.log.Debug().Err(err).Msg("streaming: upstream parse error")
			continue
		}
		for _, event := range events {
			u.onEvent(event)
		}
	}
}

func (u *Upstream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				u.log.Warn().Err(err).Msg("streaming: upstream ping failed")
				return
			}
		}
	}
}

func diff(current, next map[Pair]struct{}) (added, removed map[Pair]struct{}) {
	added = map[Pair]struct{}{}
	removed = map[Pair]struct{}{}
	for p := range next {
		if _, ok := current[p]; !ok {
			added[p] = struct{}{}
		}
	}
	for p := range current {
		if _, ok := next[p]; !ok {
			removed[p] = struct{}{}
		}
	}
	return added, removed
}
