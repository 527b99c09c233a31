package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKrakenWirePairConvertsCanonicalSymbol(t *testing.T) {
	require.Equal(t, "BTC/USD", krakenWirePair("BTCUSD"))
	require.Equal(t, "ETH/USD", krakenWirePair("ETH/USD"))
}

func TestKrakenCodecBuildSubscribeNamesOHLCChannel(t *testing.T) {
	codec := NewKrakenCodec(5)
	pairs := map[Pair]struct{}{{Symbol: "BTCUSD", Timeframe: "5m"}: {}}

	frame, err := codec.BuildSubscribe(pairs)
	require.NoError(t, err)

	sub, ok := frame.(krakenSubscribeFrame)
	require.True(t, ok)
	require.Equal(t, "subscribe", sub.Event)
	require.Equal(t, []string{"BTC/USD"}, sub.Pair)
	require.Equal(t, 5, sub.Subscription["interval"])
}

func TestKrakenCodecParseIgnoresControlFrames(t *testing.T) {
	codec := NewKrakenCodec(1)
	raw, err := json.Marshal(map[string]interface{}{"event": "heartbeat"})
	require.NoError(t, err)

	msgs, err := codec.Parse(raw)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestKrakenCodecParseDecodesOHLCChannelMessage(t *testing.T) {
	codec := NewKrakenCodec(1)
	raw := []byte(`[42,["1700000000.0","1700000060.0","100.5","101.0","99.5","100.8","100.1","12.3",15],"ohlc-1","BTC/USD"]`)

	msgs, err := codec.Parse(raw)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, TypeOHLCV, msgs[0].Type)
	require.Equal(t, "BTCUSD", msgs[0].Symbol)
	require.Equal(t, "1m", msgs[0].Timeframe)

	payload, ok := msgs[0].Data.(OHLCVPayload)
	require.True(t, ok)
	require.Equal(t, 101.0, payload.High)
}

func TestKrakenCodecParseSkipsNonOHLCChannels(t *testing.T) {
	codec := NewKrakenCodec(1)
	raw := []byte(`[42,["a","b"],"trade","BTC/USD"]`)

	msgs, err := codec.Parse(raw)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
