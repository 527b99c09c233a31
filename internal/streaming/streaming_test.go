package streaming

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubSendsStatusOnConnect(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	conn := dialTestHub(t, hub)

	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, TypeStatus, msg.Type)
}

func TestHubSubscribeThenBroadcastDelivers(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	conn := dialTestHub(t, hub)

	var status ServerMessage
	require.NoError(t, conn.ReadJSON(&status))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Symbols: []string{"BTC-USD"}, Timeframes: []string{"1m"}}))
	var ack ServerMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, TypeStatus, ack.Type)

	require.Eventually(t, func() bool { return hub.ConnCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(ServerMessage{Type: TypeOHLCV, Symbol: "BTC-USD", Timestamp: time.Now()})
	var event ServerMessage
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, TypeOHLCV, event.Type)
	require.Equal(t, "BTC-USD", event.Symbol)
}

func TestHubBroadcastSkipsUnsubscribedSymbol(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	conn := dialTestHub(t, hub)
	var status ServerMessage
	require.NoError(t, conn.ReadJSON(&status))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Symbols: []string{"ETH-USD"}, Timeframes: []string{"1m"}}))
	var ack ServerMessage
	require.NoError(t, conn.ReadJSON(&ack))

	hub.Broadcast(ServerMessage{Type: TypeOHLCV, Symbol: "BTC-USD", Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err) // nothing delivered within the deadline
}

func TestHubPingPong(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	conn := dialTestHub(t, hub)
	var status ServerMessage
	require.NoError(t, conn.ReadJSON(&status))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionPing}))
	var pong ServerMessage
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, TypePong, pong.Type)
}

func TestHubUnsubscribeRemovesCoverage(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	conn := dialTestHub(t, hub)
	var status ServerMessage
	require.NoError(t, conn.ReadJSON(&status))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Symbols: []string{"BTC-USD"}, Timeframes: []string{"1m"}}))
	var ack ServerMessage
	require.NoError(t, conn.ReadJSON(&ack))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionUnsubscribe, Symbols: []string{"BTC-USD"}}))
	var ack2 ServerMessage
	require.NoError(t, conn.ReadJSON(&ack2))

	hub.Broadcast(ServerMessage{Type: TypeOHLCV, Symbol: "BTC-USD", Timestamp: time.Now()})
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestUnionAcrossSubscriptions(t *testing.T) {
	a := NewSubscription()
	a.Add([]string{"BTC-USD"}, []string{"1m", "5m"}, "binance")
	b := NewSubscription()
	b.Add([]string{"ETH-USD"}, []string{"1m"}, "binance")

	union := Union([]*Subscription{a, b})
	require.Len(t, union, 3)
	require.Contains(t, union, Pair{Symbol: "BTC-USD", Timeframe: "1m"})
	require.Contains(t, union, Pair{Symbol: "ETH-USD", Timeframe: "1m"})
}

func TestDiffComputesAddedAndRemoved(t *testing.T) {
	current := map[Pair]struct{}{{Symbol: "BTC-USD", Timeframe: "1m"}: {}}
	next := map[Pair]struct{}{{Symbol: "ETH-USD", Timeframe: "1m"}: {}}

	added, removed := diff(current, next)
	require.Contains(t, added, Pair{Symbol: "ETH-USD", Timeframe: "1m"})
	require.Contains(t, removed, Pair{Symbol: "BTC-USD", Timeframe: "1m"})
}

type recordingReconciler struct {
	calls []map[Pair]struct{}
}

func (r *recordingReconciler) Reconcile(provider string, pairs map[Pair]struct{}) {
	r.calls = append(r.calls, pairs)
}

func TestHubRecomputeNotifiesReconciler(t *testing.T) {
	rec := &recordingReconciler{}
	hub := NewHub(rec, zerolog.Nop())
	conn := dialTestHub(t, hub)
	var status ServerMessage
	require.NoError(t, conn.ReadJSON(&status))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Symbols: []string{"BTC-USD"}, Timeframes: []string{"1m"}, Provider: "binance"}))
	var ack ServerMessage
	require.NoError(t, conn.ReadJSON(&ack))

	require.Eventually(t, func() bool { return len(rec.calls) > 0 }, time.Second, 10*time.Millisecond)
}
