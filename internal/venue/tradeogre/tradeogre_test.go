package tradeogre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradebot/internal/venue"
)

func TestMarketID(t *testing.T) {
	assert.Equal(t, "BTC-USDT", marketID("btc/usdt"))
	assert.Equal(t, "XMR-BTC", marketID("XMR/BTC"))
}

func TestSymbolFromMarketID(t *testing.T) {
	assert.Equal(t, "BTC/USDT", symbolFromMarketID("BTC-USDT"))
	assert.Equal(t, "malformed", symbolFromMarketID("malformed"))
}

func TestHandleErrors_SuccessFalseReturnsError(t *testing.T) {
	err := handleErrors([]byte(`{"success":false,"error":"insufficient funds"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestHandleErrors_SuccessFalseWithNoMessage(t *testing.T) {
	err := handleErrors([]byte(`{"success":false,"error":""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown error")
}

func TestHandleErrors_NoEnvelopeIsNotAnError(t *testing.T) {
	assert.NoError(t, handleErrors([]byte(`{"BTC-USDT":{"price":"50000"}}`)))
}

func TestHandleErrors_SuccessTrueIsNotAnError(t *testing.T) {
	assert.NoError(t, handleErrors([]byte(`{"success":true,"uuid":"abc"}`)))
}

func TestSafeFloat(t *testing.T) {
	m := map[string]any{
		"a": 1.5,
		"b": "2.5",
		"c": "not-a-number",
	}
	require.NotNil(t, safeFloat(m, "a"))
	assert.Equal(t, 1.5, *safeFloat(m, "a"))
	require.NotNil(t, safeFloat(m, "b"))
	assert.Equal(t, 2.5, *safeFloat(m, "b"))
	assert.Nil(t, safeFloat(m, "c"))
	assert.Nil(t, safeFloat(m, "missing"))
}

func TestOrderStatusFromFill(t *testing.T) {
	assert.Equal(t, venue.OrderClosed, orderStatusFromFill(1.0, 1.0))
	assert.Equal(t, venue.OrderClosed, orderStatusFromFill(1.2, 1.0))
	assert.Equal(t, venue.OrderOpen, orderStatusFromFill(0.5, 1.0))
	assert.Equal(t, venue.OrderOpen, orderStatusFromFill(0, 0))
}
