package streaming

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KrakenCodec implements Codec against Kraken's public WebSocket feed,
// grounded on internal/providers/kraken/websocket.go's
// subscribe/array-message shape (channelID + array-of-fields per
// update, "event":"subscribe" control frames), adapted here from a
// standalone client into the Codec split Upstream expects.
type KrakenCodec struct {
	// Interval is the OHLC candle width in minutes Kraken's "ohlc"
	// channel accepts (1, 5, 15, 30, 60, 240, 1440, 10080, 21600).
	Interval int
}

// NewKrakenCodec builds a KrakenCodec for the given candle interval in
// minutes, defaulting to 1 when interval<=0.
func NewKrakenCodec(interval int) *KrakenCodec {
	if interval <= 0 {
		interval = 1
	}
	return &KrakenCodec{Interval: interval}
}

func (k *KrakenCodec) URL() string { return "wss://ws.kraken.com" }

type krakenSubscribeFrame struct {
	Event        string                 `json:"event"`
	Pair         []string               `json:"pair"`
	Subscription map[string]interface{} `json:"subscription"`
}

func (k *KrakenCodec) BuildSubscribe(pairs map[Pair]struct{}) (interface{}, error) {
	return krakenSubscribeFrame{
		Event:        "subscribe",
		Pair:         krakenPairStrings(pairs),
		Subscription: map[string]interface{}{"name": "ohlc", "interval": k.Interval},
	}, nil
}

func (k *KrakenCodec) BuildUnsubscribe(pairs map[Pair]struct{}) (interface{}, error) {
	return krakenSubscribeFrame{
		Event:        "unsubscribe",
		Pair:         krakenPairStrings(pairs),
		Subscription: map[string]interface{}{"name": "ohlc", "interval": k.Interval},
	}, nil
}

func krakenPairStrings(pairs map[Pair]struct{}) []string {
	seen := make(map[string]struct{}, len(pairs))
	var out []string
	for p := range pairs {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		out = append(out, krakenWirePair(p.Symbol))
	}
	return out
}

// krakenWirePair converts a canonical symbol like "BTCUSD" into
// Kraken's slash form "BTC/USD"; symbols already containing a slash
// pass through unchanged.
func krakenWirePair(symbol string) string {
	if strings.Contains(symbol, "/") {
		return symbol
	}
	if len(symbol) >= 6 {
		return symbol[:len(symbol)-3] + "/" + symbol[len(symbol)-3:]
	}
	return symbol
}

// Parse handles both control frames (subscriptionStatus/error, object
// form) and channel updates (array form: [channelID, ohlc-fields,
// channelName, pair]), mirroring
// WebSocketClient.processMessage/handleChannelMessage's dispatch.
func (k *KrakenCodec) Parse(raw []byte) ([]ServerMessage, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if ev, _ := obj["event"].(string); ev == "subscriptionStatus" || ev == "heartbeat" || ev == "systemStatus" {
			return nil, nil
		}
	}

	var arr []interface{}
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 4 {
		return nil, nil
	}

	channelName, _ := arr[len(arr)-2].(string)
	if !strings.HasPrefix(channelName, "ohlc") {
		return nil, nil
	}
	pair, _ := arr[len(arr)-1].(string)

	fields, ok := arr[1].([]interface{})
	if !ok || len(fields) < 8 {
		return nil, fmt.Errorf("kraken: malformed ohlc frame")
	}

	endTime := krakenFloat(fields[1])
	open := krakenFloat(fields[2])
	high := krakenFloat(fields[3])
	low := krakenFloat(fields[4])
	closePx := krakenFloat(fields[5])
	volume := krakenFloat(fields[7])

	payload := OHLCVPayload{
		TS:       int64(endTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
		IsClosed: false,
	}

	return []ServerMessage{{
		Type:      TypeOHLCV,
		Symbol:    strings.ReplaceAll(pair, "/", ""),
		Timeframe: fmt.Sprintf("%dm", k.Interval),
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}}, nil
}

func krakenFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
