// Package streaming implements spec.md §4.9's WebSocket fan-out: a
// server-side hub accepting client connections with per-connection
// subscriptions, and an upstream multiplexer maintaining one
// provider connection per distinct streaming source. Grounded on
// internal/providers/kraken/websocket.go's connect/message-loop/ping
// pattern — inverted here for inbound server connections (hub.go,
// connection.go) and reused near-verbatim for the outbound provider
// side (upstream.go).
package streaming

import "time"

// ClientAction is a control message a connected client may send.
type ClientAction string

const (
	ActionSubscribe   ClientAction = "subscribe"
	ActionUnsubscribe ClientAction = "unsubscribe"
	ActionPing        ClientAction = "ping"
)

// ClientMessage is the inbound control envelope, per spec.md §4.9.
type ClientMessage struct {
	Action     ClientAction `json:"action"`
	Symbols    []string     `json:"symbols,omitempty"`
	Timeframes []string     `json:"timeframes,omitempty"`
	Provider   string       `json:"provider,omitempty"`
}

// ServerMessageType tags the outbound envelope's payload shape.
type ServerMessageType string

const (
	TypeStatus ServerMessageType = "status"
	TypePong   ServerMessageType = "pong"
	TypeOHLCV  ServerMessageType = "ohlcv"
	TypeTrade  ServerMessageType = "trade"
	TypeQuote  ServerMessageType = "quote"
	TypeError  ServerMessageType = "error"
)

// ServerMessage is the outbound envelope, per spec.md §4.9/§6's
// normalized event schema: {type, symbol, timeframe, data, timestamp}.
type ServerMessage struct {
	Type      ServerMessageType `json:"type"`
	Symbol    string            `json:"symbol,omitempty"`
	Timeframe string            `json:"timeframe,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// OHLCVPayload is the data field of a TypeOHLCV ServerMessage.
type OHLCVPayload struct {
	TS       int64   `json:"ts"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	IsClosed bool    `json:"is_closed"`
}
