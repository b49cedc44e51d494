package arbitrage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/registry"
)

// noopAdapter cancels orders successfully and no-ops everything else; it
// exists only to let ageOutIfLingering exercise a real registry instead of
// nil-pointering on s.registry.
type noopAdapter struct{}

func (noopAdapter) FetchBalance(ctx context.Context) (venue.Balance, error) { return nil, nil }
func (noopAdapter) FetchMarkets(ctx context.Context) ([]venue.Market, error) { return nil, nil }
func (noopAdapter) FetchTicker(ctx context.Context, symbol string) (venue.Ticker, error) {
	return venue.Ticker{}, nil
}
func (noopAdapter) CreateOrder(ctx context.Context, req venue.CreateOrderRequest) (venue.Order, error) {
	return venue.Order{}, nil
}
func (noopAdapter) CancelOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	return venue.Order{Status: venue.OrderCanceled}, nil
}
func (noopAdapter) FetchOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	return venue.Order{}, nil
}
func (noopAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (noopAdapter) FetchClosedOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (noopAdapter) FetchMyTrades(ctx context.Context, symbol string) ([]venue.Trade, error) {
	return nil, nil
}
func (noopAdapter) Withdraw(ctx context.Context, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	return venue.WithdrawResult{}, nil
}
func (noopAdapter) TestConnection(ctx context.Context) error { return nil }

func newTestRegistry() *registry.Registry {
	r := registry.New(zerolog.Nop())
	r.Add(venue.Config{VenueID: "a", PermissionLevelS: "read_write"}, noopAdapter{})
	r.Add(venue.Config{VenueID: "b", PermissionLevelS: "read_write"}, noopAdapter{})
	return r
}

func TestNew_RequiresSymbol(t *testing.T) {
	_, err := New(map[string]any{"venues": []any{"a", "b"}, "max_order_size": 1.0})
	require.Error(t, err)
}

func TestNew_RequiresAtLeastTwoVenues(t *testing.T) {
	_, err := New(map[string]any{
		"symbol": "BTC/USDT", "venues": []any{"kraken"}, "max_order_size": 1.0,
	})
	require.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	p, err := New(map[string]any{
		"symbol": "BTC/USDT", "venues": []any{"kraken", "tradeogre"}, "max_order_size": 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.MinProfitPercent)
	assert.Equal(t, 10, p.TickIntervalSecs)
	assert.Equal(t, []string{"kraken", "tradeogre"}, p.Venues)
}

func TestNew_RejectsMinProfitPercentBelowFloor(t *testing.T) {
	_, err := New(map[string]any{
		"symbol": "BTC/USDT", "venues": []any{"kraken", "tradeogre"}, "max_order_size": 0.5,
		"min_profit_percent": 0.05,
	})
	require.Error(t, err)
}

func TestNew_RejectsTickIntervalBelowFloor(t *testing.T) {
	_, err := New(map[string]any{
		"symbol": "BTC/USDT", "venues": []any{"kraken", "tradeogre"}, "max_order_size": 0.5,
		"tick_interval": 0,
	})
	require.Error(t, err)
}

func TestFindOpportunities_EmitsOnlyProfitableDirection(t *testing.T) {
	s := &Strategy{
		params: Params{Symbol: "BTC/USDT", Venues: []string{"a", "b"}, MinProfitPercent: 1.0},
		prices: map[string]priceQuote{
			"a": {bid: 100, ask: 101},
			"b": {bid: 105, ask: 106},
		},
	}
	opps := s.findOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, "a", opps[0].buyVenue)
	assert.Equal(t, "b", opps[0].sellVenue)
	assert.InDelta(t, 101.0, opps[0].buyPrice, 0.001)
	assert.InDelta(t, 105.0, opps[0].sellPrice, 0.001)
}

func TestFindOpportunities_BelowThresholdIsIgnored(t *testing.T) {
	s := &Strategy{
		params: Params{Symbol: "BTC/USDT", Venues: []string{"a", "b"}, MinProfitPercent: 5.0},
		prices: map[string]priceQuote{
			"a": {bid: 100, ask: 101},
			"b": {bid: 102, ask: 103},
		},
	}
	assert.Empty(t, s.findOpportunities())
}

func TestFindOpportunities_MissingPriceSkipsPair(t *testing.T) {
	s := &Strategy{
		params: Params{Symbol: "BTC/USDT", Venues: []string{"a", "b"}, MinProfitPercent: 1.0},
		prices: map[string]priceQuote{"a": {bid: 100, ask: 101}},
	}
	assert.Empty(t, s.findOpportunities())
}

func TestAgeOutIfLingering_CancelsOpenLegPastMaxAge(t *testing.T) {
	s := &Strategy{maxOrderAge: time.Hour, registry: newTestRegistry(), log: zerolog.Nop()}
	arb := &arbState{
		id: "arb1", buyVenue: "a", sellVenue: "b",
		buyOrderID: "buy1", sellOrderID: "sell1", symbol: "BTC/USDT",
		status: "active", createdAt: time.Now().Add(-2 * time.Hour),
	}

	s.ageOutIfLingering(context.Background(), arb,
		venue.Order{Status: venue.OrderClosed},
		venue.Order{Status: venue.OrderOpen})

	assert.Equal(t, "failed", arb.status)
}

func TestAgeOutIfLingering_IgnoresFreshArbitrage(t *testing.T) {
	s := &Strategy{maxOrderAge: time.Hour}
	arb := &arbState{status: "active", createdAt: time.Now()}

	s.ageOutIfLingering(context.Background(), arb,
		venue.Order{Status: venue.OrderClosed},
		venue.Order{Status: venue.OrderOpen})

	assert.Equal(t, "active", arb.status)
}

func TestAgeOutIfLingering_IgnoresBothLegsOpen(t *testing.T) {
	s := &Strategy{maxOrderAge: time.Hour}
	arb := &arbState{status: "active", createdAt: time.Now().Add(-2 * time.Hour)}

	s.ageOutIfLingering(context.Background(), arb,
		venue.Order{Status: venue.OrderOpen},
		venue.Order{Status: venue.OrderOpen})

	assert.Equal(t, "active", arb.status)
}

func TestSplitSymbol(t *testing.T) {
	base, quote, ok := splitSymbol("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, ok = splitSymbol("BTCUSDT")
	assert.False(t, ok)
}
