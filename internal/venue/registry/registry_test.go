package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venueerrors"
)

type fakeAdapter struct {
	balance      venue.Balance
	balanceErr   error
	order        venue.Order
	orderErr     error
	testConnErr  error
}

func (f *fakeAdapter) FetchBalance(ctx context.Context) (venue.Balance, error) { return f.balance, f.balanceErr }
func (f *fakeAdapter) FetchMarkets(ctx context.Context) ([]venue.Market, error) { return nil, nil }
func (f *fakeAdapter) FetchTicker(ctx context.Context, symbol string) (venue.Ticker, error) {
	return venue.Ticker{}, nil
}
func (f *fakeAdapter) CreateOrder(ctx context.Context, req venue.CreateOrderRequest) (venue.Order, error) {
	return f.order, f.orderErr
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	return venue.Order{}, nil
}
func (f *fakeAdapter) FetchOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	return venue.Order{}, nil
}
func (f *fakeAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (f *fakeAdapter) FetchClosedOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (f *fakeAdapter) FetchMyTrades(ctx context.Context, symbol string) ([]venue.Trade, error) {
	return nil, nil
}
func (f *fakeAdapter) Withdraw(ctx context.Context, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	return venue.WithdrawResult{}, nil
}
func (f *fakeAdapter) TestConnection(ctx context.Context) error { return f.testConnErr }

var _ venue.Adapter = (*fakeAdapter)(nil)

func newTestRegistry() *Registry {
	return New(zerolog.Nop())
}

func TestRegistry_FetchBalance_NotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.FetchBalance(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, venueerrors.Is(err, venueerrors.KindNotFound))
}

func TestRegistry_FetchBalance_PermissionDenied(t *testing.T) {
	r := newTestRegistry()
	cfg := venue.Config{VenueID: "kraken", PermissionLevelS: "read_only"}
	r.Add(cfg, &fakeAdapter{})

	// ReadOnly is granted, CreateOrder should be denied.
	_, err := r.CreateOrder(context.Background(), "kraken", venue.CreateOrderRequest{})
	require.Error(t, err)
	assert.True(t, venueerrors.Is(err, venueerrors.KindPermissionDenied))
}

func TestRegistry_FetchBalance_Success(t *testing.T) {
	r := newTestRegistry()
	cfg := venue.Config{VenueID: "kraken", PermissionLevelS: "read_write"}
	bal := venue.Balance{"BTC": venue.AssetBalance{Free: 1, Total: 1}}
	r.Add(cfg, &fakeAdapter{balance: bal})

	got, err := r.FetchBalance(context.Background(), "kraken")
	require.NoError(t, err)
	assert.Equal(t, bal, got)
}

func TestRegistry_CreateOrder_WrapsAdapterError(t *testing.T) {
	r := newTestRegistry()
	cfg := venue.Config{VenueID: "kraken", PermissionLevelS: "read_write"}
	r.Add(cfg, &fakeAdapter{orderErr: errors.New("rejected")})

	_, err := r.CreateOrder(context.Background(), "kraken", venue.CreateOrderRequest{})
	require.Error(t, err)
	assert.True(t, venueerrors.Is(err, venueerrors.KindVenueError))
}

func TestRegistry_Withdraw_RequiresHighestPermission(t *testing.T) {
	r := newTestRegistry()
	cfg := venue.Config{VenueID: "kraken", PermissionLevelS: "read_write"}
	r.Add(cfg, &fakeAdapter{})

	_, err := r.Withdraw(context.Background(), "kraken", venue.WithdrawRequest{})
	require.Error(t, err)
	assert.True(t, venueerrors.Is(err, venueerrors.KindPermissionDenied))
}

func TestRegistry_RateLimitReset_UnrecordedByDefault(t *testing.T) {
	r := newTestRegistry()
	r.Add(venue.Config{VenueID: "kraken", PermissionLevelS: "read_only"}, &fakeAdapter{})

	_, ok := r.RateLimitReset(context.Background(), "kraken")
	assert.False(t, ok)
}

func TestRegistry_RateLimitReset_RecordedOnBreakerOpen(t *testing.T) {
	r := newTestRegistry()
	r.Add(venue.Config{VenueID: "kraken", PermissionLevelS: "read_only"}, &fakeAdapter{balanceErr: breaker.ErrOpen})

	_, err := r.FetchBalance(context.Background(), "kraken")
	require.Error(t, err)

	resetAt, ok := r.RateLimitReset(context.Background(), "kraken")
	require.True(t, ok)
	assert.True(t, resetAt.After(time.Now()))
}

func TestRegistry_RemoveAndVenueIDs(t *testing.T) {
	r := newTestRegistry()
	r.Add(venue.Config{VenueID: "kraken", PermissionLevelS: "read_only"}, &fakeAdapter{})
	r.Add(venue.Config{VenueID: "tradeogre", PermissionLevelS: "read_only"}, &fakeAdapter{})

	assert.Equal(t, []string{"kraken", "tradeogre"}, r.VenueIDs())

	assert.True(t, r.Remove("kraken"))
	assert.Equal(t, []string{"tradeogre"}, r.VenueIDs())
	assert.False(t, r.Remove("kraken"))
}
