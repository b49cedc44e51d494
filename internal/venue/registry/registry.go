// Package registry is the multi-venue gateway strategies and the HTTP
// control plane call through: it holds one venue.Adapter per configured
// venue, gates writes by permission level, and turns adapter failures into
// a typed error plus a log line rather than letting a wedged venue take
// down a caller. Grounded on original exchange_manager.py's ExchangeManager
// (gate-then-call-then-log control flow) and the teacher's
// internal/net/client.Manager (per-provider map + RWMutex shape).
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venue/ratecache"
	"github.com/sawpanic/tradebot/internal/venueerrors"
)

// Registry owns every configured venue adapter, plus last_rate_limit_reset
// bookkeeping (spec section 4.2, "reserved for future pacing decisions").
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]venue.Adapter
	configs   map[string]venue.Config
	rateCache ratecache.Store
	log       zerolog.Logger
}

// New creates an empty registry backed by an in-memory rate-limit-reset
// cache. Use NewWithRateCache to supply a Redis-backed one instead.
func New(log zerolog.Logger) *Registry {
	return NewWithRateCache(ratecache.NewMemoryStore(), log)
}

// NewWithRateCache creates an empty registry using the given rate-limit-reset store.
func NewWithRateCache(rc ratecache.Store, log zerolog.Logger) *Registry {
	return &Registry{
		adapters:  make(map[string]venue.Adapter),
		configs:   make(map[string]venue.Config),
		rateCache: rc,
		log:       log.With().Str("component", "venue_registry").Logger(),
	}
}

// Add registers an adapter under cfg.VenueID, replacing any existing entry.
func (r *Registry) Add(cfg venue.Config, adapter venue.Adapter) {
	cfg.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[cfg.VenueID] = adapter
	r.configs[cfg.VenueID] = cfg
	r.log.Info().Str("venue_id", cfg.VenueID).Str("display_name", cfg.DisplayName).Msg("venue added")
}

// Remove drops a venue's adapter and config.
func (r *Registry) Remove(venueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[venueID]; !ok {
		return false
	}
	delete(r.adapters, venueID)
	delete(r.configs, venueID)
	r.log.Info().Str("venue_id", venueID).Msg("venue removed")
	return true
}

// Config returns the config for venueID.
func (r *Registry) Config(venueID string) (venue.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[venueID]
	return cfg, ok
}

// VenueIDs returns every registered venue id, sorted.
func (r *Registry) VenueIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckPermission reports whether venueID's configured permission level is
// at least required, using the fixed ordering ReadOnly < ReadWrite <
// ReadWriteWithdraw.
func (r *Registry) CheckPermission(venueID string, required venue.PermissionLevel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[venueID]
	if !ok {
		return false
	}
	return cfg.PermissionLevel >= required
}

func (r *Registry) get(venueID string) (venue.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[venueID]
	if !ok {
		return nil, venueerrors.NotFound(venueID)
	}
	return a, nil
}

func (r *Registry) gate(venueID string, required venue.PermissionLevel) error {
	if !r.CheckPermission(venueID, required) {
		return venueerrors.PermissionDenied(venueID, nil)
	}
	return nil
}

func (r *Registry) logFailure(venueID, op string, err error) {
	r.log.Error().Err(err).Str("venue_id", venueID).Str("op", op).Msg("venue operation failed")

	if errors.Is(err, breaker.ErrOpen) {
		resetAt := time.Now().Add(breaker.DefaultConfig().OpenTimeout)
		if setErr := r.rateCache.Set(context.Background(), venueID, resetAt); setErr != nil {
			r.log.Warn().Err(setErr).Str("venue_id", venueID).Msg("failed to record rate limit reset hint")
		}
	}
}

// RateLimitReset reports the last known rate-limit/circuit-open reset hint
// for a venue, if any has been recorded.
func (r *Registry) RateLimitReset(ctx context.Context, venueID string) (time.Time, bool) {
	resetAt, ok, err := r.rateCache.Get(ctx, venueID)
	if err != nil {
		r.log.Warn().Err(err).Str("venue_id", venueID).Msg("failed to read rate limit reset hint")
		return time.Time{}, false
	}
	return resetAt, ok
}

// FetchBalance requires ReadOnly permission.
func (r *Registry) FetchBalance(ctx context.Context, venueID string) (venue.Balance, error) {
	a, err := r.get(venueID)
	if err != nil {
		return nil, err
	}
	if err := r.gate(venueID, venue.ReadOnly); err != nil {
		return nil, err
	}
	bal, err := a.FetchBalance(ctx)
	if err != nil {
		r.logFailure(venueID, "fetch_balance", err)
		return venue.Balance{}, venueerrors.VenueError(venueID, err)
	}
	return bal, nil
}

// FetchMarkets has no permission gate — market metadata is always public.
func (r *Registry) FetchMarkets(ctx context.Context, venueID string) ([]venue.Market, error) {
	a, err := r.get(venueID)
	if err != nil {
		return nil, err
	}
	markets, err := a.FetchMarkets(ctx)
	if err != nil {
		r.logFailure(venueID, "fetch_markets", err)
		return nil, venueerrors.VenueError(venueID, err)
	}
	return markets, nil
}

// FetchTicker has no permission gate.
func (r *Registry) FetchTicker(ctx context.Context, venueID, symbol string) (venue.Ticker, error) {
	a, err := r.get(venueID)
	if err != nil {
		return venue.Ticker{}, err
	}
	t, err := a.FetchTicker(ctx, symbol)
	if err != nil {
		r.logFailure(venueID, "fetch_ticker", err)
		return venue.Ticker{}, venueerrors.VenueError(venueID, err)
	}
	return t, nil
}

// CreateOrder requires ReadWrite permission.
func (r *Registry) CreateOrder(ctx context.Context, venueID string, req venue.CreateOrderRequest) (venue.Order, error) {
	a, err := r.get(venueID)
	if err != nil {
		return venue.Order{}, err
	}
	if err := r.gate(venueID, venue.ReadWrite); err != nil {
		return venue.Order{}, err
	}
	order, err := a.CreateOrder(ctx, req)
	if err != nil {
		r.logFailure(venueID, "create_order", err)
		return venue.Order{}, venueerrors.VenueError(venueID, err)
	}
	return order, nil
}

// CancelOrder requires ReadWrite permission.
func (r *Registry) CancelOrder(ctx context.Context, venueID, orderID, symbol string) (venue.Order, error) {
	a, err := r.get(venueID)
	if err != nil {
		return venue.Order{}, err
	}
	if err := r.gate(venueID, venue.ReadWrite); err != nil {
		return venue.Order{}, err
	}
	order, err := a.CancelOrder(ctx, orderID, symbol)
	if err != nil {
		r.logFailure(venueID, "cancel_order", err)
		return venue.Order{}, venueerrors.VenueError(venueID, err)
	}
	return order, nil
}

// FetchOrder requires ReadOnly permission.
func (r *Registry) FetchOrder(ctx context.Context, venueID, orderID, symbol string) (venue.Order, error) {
	a, err := r.get(venueID)
	if err != nil {
		return venue.Order{}, err
	}
	if err := r.gate(venueID, venue.ReadOnly); err != nil {
		return venue.Order{}, err
	}
	order, err := a.FetchOrder(ctx, orderID, symbol)
	if err != nil {
		r.logFailure(venueID, "fetch_order", err)
		return venue.Order{}, venueerrors.VenueError(venueID, err)
	}
	return order, nil
}

// FetchOpenOrders requires ReadOnly permission.
func (r *Registry) FetchOpenOrders(ctx context.Context, venueID, symbol string) ([]venue.Order, error) {
	a, err := r.get(venueID)
	if err != nil {
		return nil, err
	}
	if err := r.gate(venueID, venue.ReadOnly); err != nil {
		return nil, err
	}
	orders, err := a.FetchOpenOrders(ctx, symbol)
	if err != nil {
		r.logFailure(venueID, "fetch_open_orders", err)
		return nil, venueerrors.VenueError(venueID, err)
	}
	return orders, nil
}

// FetchClosedOrders requires ReadOnly permission.
func (r *Registry) FetchClosedOrders(ctx context.Context, venueID, symbol string) ([]venue.Order, error) {
	a, err := r.get(venueID)
	if err != nil {
		return nil, err
	}
	if err := r.gate(venueID, venue.ReadOnly); err != nil {
		return nil, err
	}
	orders, err := a.FetchClosedOrders(ctx, symbol)
	if err != nil {
		r.logFailure(venueID, "fetch_closed_orders", err)
		return nil, venueerrors.VenueError(venueID, err)
	}
	return orders, nil
}

// FetchMyTrades requires ReadOnly permission.
func (r *Registry) FetchMyTrades(ctx context.Context, venueID, symbol string) ([]venue.Trade, error) {
	a, err := r.get(venueID)
	if err != nil {
		return nil, err
	}
	if err := r.gate(venueID, venue.ReadOnly); err != nil {
		return nil, err
	}
	trades, err := a.FetchMyTrades(ctx, symbol)
	if err != nil {
		r.logFailure(venueID, "fetch_my_trades", err)
		return nil, venueerrors.VenueError(venueID, err)
	}
	return trades, nil
}

// Withdraw requires ReadWriteWithdraw permission, the highest gate.
func (r *Registry) Withdraw(ctx context.Context, venueID string, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	a, err := r.get(venueID)
	if err != nil {
		return venue.WithdrawResult{}, err
	}
	if err := r.gate(venueID, venue.ReadWriteWithdraw); err != nil {
		return venue.WithdrawResult{}, err
	}
	res, err := a.Withdraw(ctx, req)
	if err != nil {
		r.logFailure(venueID, "withdraw", err)
		return venue.WithdrawResult{}, venueerrors.VenueError(venueID, err)
	}
	return res, nil
}

// TestConnection has no permission gate; it exists to validate credentials
// and connectivity before trusting a venue with live strategy traffic.
func (r *Registry) TestConnection(ctx context.Context, venueID string) error {
	a, err := r.get(venueID)
	if err != nil {
		return err
	}
	if err := a.TestConnection(ctx); err != nil {
		r.logFailure(venueID, "test_connection", err)
		return venueerrors.VenueError(venueID, err)
	}
	return nil
}
