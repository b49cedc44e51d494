package kraken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/genericx"
)

func TestPairOf(t *testing.T) {
	assert.Equal(t, "BTCUSDT", pairOf("btc/usdt"))
	assert.Equal(t, "XBTUSD", pairOf("XBT/USD"))
}

func TestUnwrap_ReturnsResultWhenNoError(t *testing.T) {
	result, err := unwrap([]byte(`{"error":[],"result":{"foo":"bar"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, string(result))
}

func TestUnwrap_ReturnsErrorOnKrakenErrorArray(t *testing.T) {
	_, err := unwrap([]byte(`{"error":["EAPI:Invalid key"],"result":null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EAPI:Invalid key")
}

func TestParseBalance(t *testing.T) {
	s := New()
	bal, err := s.ParseBalance([]byte(`{"error":[],"result":{"ZUSD":"100.5000","XXBT":"0.25"}}`))
	require.NoError(t, err)
	assert.Equal(t, 100.5, bal["ZUSD"].Free)
	assert.Equal(t, 0.25, bal["XXBT"].Total)
}

func TestParseTicker(t *testing.T) {
	s := New()
	body := []byte(`{"error":[],"result":{"XXBTZUSD":{"a":["50000.1","1","1.000"],"b":["49999.9","1","1.000"],"c":["50000.0","0.1"],"h":["50100.0","50200.0"],"l":["49900.0","49800.0"],"v":["10.0","20.0"]}}}`)
	ticker, err := s.ParseTicker(body, "BTC/USDT")
	require.NoError(t, err)
	require.NotNil(t, ticker.Ask)
	require.NotNil(t, ticker.Bid)
	require.NotNil(t, ticker.BaseVolume)
	assert.InDelta(t, 50000.1, *ticker.Ask, 0.001)
	assert.InDelta(t, 49999.9, *ticker.Bid, 0.001)
	assert.InDelta(t, 20.0, *ticker.BaseVolume, 0.001)
}

func TestParseTicker_NoData(t *testing.T) {
	s := New()
	_, err := s.ParseTicker([]byte(`{"error":[],"result":{}}`), "BTC/USDT")
	require.Error(t, err)
}

func TestParseCreateOrder(t *testing.T) {
	s := New()
	body := []byte(`{"error":[],"result":{"txid":["OABCDE-12345-ABCDEF"]}}`)
	order, err := s.ParseCreateOrder(body, venue.CreateOrderRequest{Symbol: "BTC/USDT", Side: venue.Buy, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, "OABCDE-12345-ABCDEF", order.ID)
	assert.Equal(t, venue.OrderOpen, order.Status)
}

func TestKrakenOrderInfo_ToOrder_StatusMapping(t *testing.T) {
	cases := []struct {
		raw  string
		want venue.OrderStatus
	}{
		{"open", venue.OrderOpen},
		{"pending", venue.OrderOpen},
		{"canceled", venue.OrderCanceled},
		{"expired", venue.OrderCanceled},
		{"closed", venue.OrderClosed},
	}
	for _, c := range cases {
		info := krakenOrderInfo{Status: c.raw, Volume: "1.0", VolExec: "0.5"}
		order := info.toOrder("tx1", "BTC/USDT")
		assert.Equal(t, c.want, order.Status, "status %q", c.raw)
	}
}

func TestSign_SetsHeadersNonceAndFormEncodedRawBody(t *testing.T) {
	s := New()
	req := &genericx.Request{Method: "POST", Path: "/0/private/Balance", Private: true}
	cfg := venue.Config{APIKey: "key123", APISecret: "c2VjcmV0"}
	err := s.Sign(req, cfg)
	require.NoError(t, err)
	assert.Equal(t, "key123", req.Headers["API-Key"])
	assert.NotEmpty(t, req.Headers["API-Sign"])
	assert.NotEmpty(t, req.Body["nonce"])
	assert.Contains(t, string(req.RawBody), "nonce=")
	assert.Empty(t, req.Query["__api_key"])
}
