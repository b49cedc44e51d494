package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresLowerLessThanUpper(t *testing.T) {
	_, err := New(map[string]any{
		"venue_id": "kraken", "symbol": "BTC/USDT",
		"lower_price": 100.0, "upper_price": 50.0, "total_investment": 1000.0,
	})
	require.Error(t, err)
}

func TestNew_RequiresGridLevelsAtLeastTwo(t *testing.T) {
	_, err := New(map[string]any{
		"venue_id": "kraken", "symbol": "BTC/USDT",
		"lower_price": 10.0, "upper_price": 20.0, "total_investment": 1000.0, "grid_levels": 1,
	})
	require.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	p, err := New(map[string]any{
		"venue_id": "kraken", "symbol": "BTC/USDT",
		"lower_price": 10.0, "upper_price": 20.0, "total_investment": 1000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.GridLevels)
	assert.Equal(t, 60, p.TickIntervalSecs)
}

func TestNew_RejectsGridLevelsAboveHundred(t *testing.T) {
	_, err := New(map[string]any{
		"venue_id": "kraken", "symbol": "BTC/USDT",
		"lower_price": 10.0, "upper_price": 20.0, "total_investment": 1000.0, "grid_levels": 101,
	})
	require.Error(t, err)
}

func TestNew_RejectsTickIntervalBelowFloor(t *testing.T) {
	_, err := New(map[string]any{
		"venue_id": "kraken", "symbol": "BTC/USDT",
		"lower_price": 10.0, "upper_price": 20.0, "total_investment": 1000.0, "tick_interval": 5,
	})
	require.Error(t, err)
}

func TestCalculateGridLevels_EvenSpacing(t *testing.T) {
	s := &Strategy{params: Params{
		LowerPrice: 10, UpperPrice: 20, GridLevels: 5, TotalInvestment: 500,
	}}
	s.calculateGridLevels()

	require.Len(t, s.gridPrices, 5)
	assert.InDelta(t, 10.0, s.gridPrices[0], 0.0001)
	assert.InDelta(t, 12.5, s.gridPrices[1], 0.0001)
	assert.InDelta(t, 20.0, s.gridPrices[4], 0.0001)
	assert.InDelta(t, 100.0, s.orderSize, 0.0001)
}
