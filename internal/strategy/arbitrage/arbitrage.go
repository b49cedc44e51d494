// Package arbitrage implements cross-exchange arbitrage: buy on the venue
// quoting the lower ask, sell on the venue quoting the higher bid, when
// the spread clears a minimum profit threshold. Ported line-for-line in
// semantics from original strategies/arbitrage.py.
package arbitrage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/tradebot/internal/strategy"
	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/registry"
)

// StrategyID is the registered id for this strategy.
const StrategyID = "arbitrage"

// Params are the validated, defaulted construction parameters. Unlike the
// original's loose parameters dict, required fields are enforced once at
// construction (see New), not scattered across tick().
type Params struct {
	Symbol           string
	Venues           []string
	MinProfitPercent float64
	MaxOrderSize     float64
	TickIntervalSecs int
}

// Descriptor describes this strategy's static metadata and parameter
// surface, mirroring the original's get_parameters_info.
func Descriptor() strategy.Descriptor {
	return strategy.Descriptor{
		ID:   StrategyID,
		Name: "Cross-Exchange Arbitrage",
		Description: "Exploits price differences between the same asset on different venues. " +
			"Buys on the venue with the lower ask and sells on the venue with the higher bid. " +
			"Requires at least two venues quoting the same symbol.",
		Parameters: []strategy.ParamInfo{
			{Name: "symbol", Type: "string", Required: true, Description: "Trading pair to arbitrage (e.g. BTC/USDT)"},
			{Name: "venues", Type: "[]string", Required: true, Description: "Venue ids to arbitrage across (>= 2)"},
			{Name: "min_profit_percent", Type: "float", Default: 1.0, Description: "Minimum profit percentage to execute"},
			{Name: "max_order_size", Type: "float", Required: true, Description: "Maximum order size in base currency"},
			{Name: "tick_interval", Type: "int", Default: 10, Description: "Seconds between strategy ticks"},
		},
	}
}

func defaultParams() Params {
	return Params{MinProfitPercent: 1.0, TickIntervalSecs: 10}
}

// New validates raw construction parameters and returns a Params, failing
// the same way the original's __init__ does: missing required keys, or
// fewer than two venues.
func New(raw map[string]any) (Params, error) {
	p := defaultParams()

	symbol, _ := raw["symbol"].(string)
	if symbol == "" {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: symbol")
	}
	p.Symbol = symbol

	venues, err := toStringSlice(raw["venues"])
	if err != nil || len(venues) < 2 {
		return Params{}, strategy.ConstructionError(StrategyID, "at least two venues are required for arbitrage")
	}
	p.Venues = venues

	maxOrderSize, ok := toFloat(raw["max_order_size"])
	if !ok {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: max_order_size")
	}
	p.MaxOrderSize = maxOrderSize

	if v, ok := toFloat(raw["min_profit_percent"]); ok {
		if v < 0.1 {
			return Params{}, strategy.ConstructionError(StrategyID, "min_profit_percent must be at least 0.1")
		}
		p.MinProfitPercent = v
	}
	if v, ok := raw["tick_interval"]; ok {
		i, ok := toInt(v)
		if !ok || i < 1 {
			return Params{}, strategy.ConstructionError(StrategyID, "tick_interval must be at least 1 second")
		}
		p.TickIntervalSecs = i
	}

	return p, nil
}

func toStringSlice(v any) ([]string, error) {
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, 0, len(vs))
		for _, e := range vs {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("non-string venue entry")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("venues must be a list of strings")
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// opportunity is a detected, unexecuted arbitrage window.
type opportunity struct {
	buyVenue, sellVenue   string
	buyPrice, sellPrice   float64
	profitPercent         float64
}

// arbState is one in-flight or completed arbitrage execution.
type arbState struct {
	id                  string
	buyVenue, sellVenue string
	buyOrderID          string
	sellOrderID         string
	symbol              string
	amount              float64
	buyPrice, sellPrice float64
	profitPercent       float64
	status              string // "active", "completed", "failed", "cancelled"
	actualProfit        float64
	actualProfitPercent float64
	createdAt           time.Time
}

type priceQuote struct {
	bid, ask float64
}

// Strategy is the arbitrage strategy's runtime state.
type Strategy struct {
	params      Params
	registry    *registry.Registry
	log         zerolog.Logger
	maxOrderAge time.Duration

	mu      sync.Mutex
	prices  map[string]priceQuote
	active  []*arbState
	onTrade func(profit float64, isWin bool)
}

// NewStrategy builds a Strategy from already-validated params. maxOrderAge
// comes from global settings (max_order_age_seconds), not per-strategy
// parameters: it ages out a lingering one-leg-closed arbitrage regardless
// of which strategy instance opened it.
func NewStrategy(params Params, reg *registry.Registry, log zerolog.Logger, maxOrderAge time.Duration) *Strategy {
	return &Strategy{
		params:      params,
		registry:    reg,
		log:         log.With().Str("strategy_id", StrategyID).Logger(),
		prices:      make(map[string]priceQuote),
		maxOrderAge: maxOrderAge,
	}
}

func (s *Strategy) Descriptor() strategy.Descriptor { return Descriptor() }

func (s *Strategy) TickInterval() time.Duration {
	return time.Duration(s.params.TickIntervalSecs) * time.Second
}

func (s *Strategy) OnStart(ctx context.Context) error {
	s.log.Info().Str("symbol", s.params.Symbol).Strs("venues", s.params.Venues).Msg("starting arbitrage strategy")

	for _, venueID := range s.params.Venues {
		markets, err := s.registry.FetchMarkets(ctx, venueID)
		if err != nil {
			s.log.Warn().Err(err).Str("venue_id", venueID).Msg("could not fetch markets")
			continue
		}
		found := false
		for _, m := range markets {
			if m.Symbol == s.params.Symbol {
				found = true
				break
			}
		}
		if !found {
			s.log.Warn().Str("venue_id", venueID).Str("symbol", s.params.Symbol).Msg("venue does not support symbol")
		}
	}
	return nil
}

func (s *Strategy) OnStop(ctx context.Context) error {
	s.log.Info().Msg("stopping arbitrage strategy")

	s.mu.Lock()
	active := make([]*arbState, 0)
	for _, a := range s.active {
		if a.status == "active" {
			active = append(active, a)
		}
	}
	s.mu.Unlock()

	for _, a := range active {
		s.cancelArbitrage(ctx, a)
	}
	return nil
}

func (s *Strategy) Tick(ctx context.Context) error {
	s.updatePrices(ctx)

	opportunities := s.findOpportunities()
	for _, opp := range opportunities {
		s.executeArbitrage(ctx, opp)
	}

	s.updateActiveArbitrages(ctx)
	s.logStatus()
	return nil
}

func (s *Strategy) updatePrices(ctx context.Context) {
	for _, venueID := range s.params.Venues {
		ticker, err := s.registry.FetchTicker(ctx, venueID, s.params.Symbol)
		if err != nil {
			s.log.Error().Err(err).Str("venue_id", venueID).Msg("error fetching price")
			continue
		}

		q := priceQuote{}
		if ticker.Bid != nil {
			q.bid = *ticker.Bid
		}
		if ticker.Ask != nil {
			q.ask = *ticker.Ask
		}

		s.mu.Lock()
		s.prices[venueID] = q
		s.mu.Unlock()
	}
}

// findOpportunities checks every unordered venue pair in both directions,
// same as the original's nested i/j loop plus both-direction bid/ask
// comparison.
func (s *Strategy) findOpportunities() []opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opportunities []opportunity
	venues := s.params.Venues

	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			v1, v2 := venues[i], venues[j]
			q1, ok1 := s.prices[v1]
			q2, ok2 := s.prices[v2]
			if !ok1 || !ok2 {
				continue
			}

			if q2.bid > q1.ask && q1.ask > 0 {
				profitPercent := ((q2.bid / q1.ask) - 1) * 100
				if profitPercent >= s.params.MinProfitPercent {
					opportunities = append(opportunities, opportunity{
						buyVenue: v1, sellVenue: v2, buyPrice: q1.ask, sellPrice: q2.bid, profitPercent: profitPercent,
					})
					s.log.Info().Str("buy_venue", v1).Str("sell_venue", v2).
						Float64("buy_price", q1.ask).Float64("sell_price", q2.bid).
						Float64("profit_percent", profitPercent).Msg("found arbitrage opportunity")
				}
			}

			if q1.bid > q2.ask && q2.ask > 0 {
				profitPercent := ((q1.bid / q2.ask) - 1) * 100
				if profitPercent >= s.params.MinProfitPercent {
					opportunities = append(opportunities, opportunity{
						buyVenue: v2, sellVenue: v1, buyPrice: q2.ask, sellPrice: q1.bid, profitPercent: profitPercent,
					})
					s.log.Info().Str("buy_venue", v2).Str("sell_venue", v1).
						Float64("buy_price", q2.ask).Float64("sell_price", q1.bid).
						Float64("profit_percent", profitPercent).Msg("found arbitrage opportunity")
				}
			}
		}
	}
	return opportunities
}

func (s *Strategy) executeArbitrage(ctx context.Context, opp opportunity) {
	if !s.registry.CheckPermission(opp.buyVenue, venue.ReadWrite) {
		s.log.Warn().Str("venue_id", opp.buyVenue).Msg("no permission to trade")
		return
	}
	if !s.registry.CheckPermission(opp.sellVenue, venue.ReadWrite) {
		s.log.Warn().Str("venue_id", opp.sellVenue).Msg("no permission to trade")
		return
	}

	buyBalance, err := s.registry.FetchBalance(ctx, opp.buyVenue)
	if err != nil {
		s.log.Error().Err(err).Str("venue_id", opp.buyVenue).Msg("failed to fetch balance")
		return
	}
	sellBalance, err := s.registry.FetchBalance(ctx, opp.sellVenue)
	if err != nil {
		s.log.Error().Err(err).Str("venue_id", opp.sellVenue).Msg("failed to fetch balance")
		return
	}

	base, quote, ok := splitSymbol(s.params.Symbol)
	if !ok {
		s.log.Error().Str("symbol", s.params.Symbol).Msg("invalid symbol format")
		return
	}

	quoteFree := buyBalance[quote].Free
	maxBuyAmount := quoteFree / opp.buyPrice
	baseFree := sellBalance[base].Free

	orderSize := min3(s.params.MaxOrderSize, maxBuyAmount, baseFree)
	if orderSize <= 0 {
		s.log.Warn().Msg("insufficient balance for arbitrage")
		return
	}

	buyPrice := opp.buyPrice
	buyOrder, err := s.registry.CreateOrder(ctx, opp.buyVenue, venue.CreateOrderRequest{
		Symbol: s.params.Symbol, Side: venue.Buy, Type: venue.Limit, Amount: orderSize, Price: &buyPrice,
	})
	if err != nil {
		s.log.Error().Err(err).Str("venue_id", opp.buyVenue).Msg("failed to create buy order")
		return
	}

	sellPrice := opp.sellPrice
	sellOrder, err := s.registry.CreateOrder(ctx, opp.sellVenue, venue.CreateOrderRequest{
		Symbol: s.params.Symbol, Side: venue.Sell, Type: venue.Limit, Amount: orderSize, Price: &sellPrice,
	})
	if err != nil {
		s.log.Error().Err(err).Str("venue_id", opp.sellVenue).Msg("failed to create sell order, cancelling buy leg")
		if _, cancelErr := s.registry.CancelOrder(ctx, opp.buyVenue, buyOrder.ID, s.params.Symbol); cancelErr != nil {
			s.log.Error().Err(cancelErr).Msg("failed to cancel buy leg after sell leg failure")
		}
		return
	}

	arb := &arbState{
		id:            uuid.NewString(),
		buyVenue:      opp.buyVenue,
		sellVenue:     opp.sellVenue,
		buyOrderID:    buyOrder.ID,
		sellOrderID:   sellOrder.ID,
		symbol:        s.params.Symbol,
		amount:        orderSize,
		buyPrice:      opp.buyPrice,
		sellPrice:     opp.sellPrice,
		profitPercent: opp.profitPercent,
		status:        "active",
		createdAt:     time.Now(),
	}

	s.mu.Lock()
	s.active = append(s.active, arb)
	s.mu.Unlock()

	s.log.Info().Str("arb_id", arb.id).Msg("executed arbitrage")
}

func (s *Strategy) updateActiveArbitrages(ctx context.Context) {
	s.mu.Lock()
	active := make([]*arbState, 0)
	for _, a := range s.active {
		if a.status == "active" {
			active = append(active, a)
		}
	}
	s.mu.Unlock()

	for _, arb := range active {
		buyOrder, err := s.registry.FetchOrder(ctx, arb.buyVenue, arb.buyOrderID, arb.symbol)
		if err != nil {
			s.log.Error().Err(err).Str("arb_id", arb.id).Msg("failed to fetch buy order")
			continue
		}
		sellOrder, err := s.registry.FetchOrder(ctx, arb.sellVenue, arb.sellOrderID, arb.symbol)
		if err != nil {
			s.log.Error().Err(err).Str("arb_id", arb.id).Msg("failed to fetch sell order")
			continue
		}

		if buyOrder.Status == venue.OrderClosed && sellOrder.Status == venue.OrderClosed {
			buyCost := arb.amount * arb.buyPrice
			if buyOrder.Cost != nil {
				buyCost = *buyOrder.Cost
			}
			sellCost := arb.amount * arb.sellPrice
			if sellOrder.Cost != nil {
				sellCost = *sellOrder.Cost
			}
			profit := sellCost - buyCost

			s.mu.Lock()
			arb.status = "completed"
			arb.actualProfit = profit
			if buyCost != 0 {
				arb.actualProfitPercent = (profit / buyCost) * 100
			}
			s.mu.Unlock()

			s.log.Info().Str("arb_id", arb.id).Float64("profit", profit).
				Float64("profit_percent", arb.actualProfitPercent).Msg("arbitrage completed")

			s.recordPerformance(profit, profit > 0)
			continue
		}

		if buyOrder.Status == venue.OrderCanceled || sellOrder.Status == venue.OrderCanceled {
			s.mu.Lock()
			arb.status = "failed"
			s.mu.Unlock()

			s.log.Warn().Str("arb_id", arb.id).Msg("arbitrage failed: order was cancelled")

			if buyOrder.Status != venue.OrderCanceled {
				if _, err := s.registry.CancelOrder(ctx, arb.buyVenue, arb.buyOrderID, arb.symbol); err != nil {
					s.log.Error().Err(err).Msg("failed to cancel surviving buy leg")
				}
			}
			if sellOrder.Status != venue.OrderCanceled {
				if _, err := s.registry.CancelOrder(ctx, arb.sellVenue, arb.sellOrderID, arb.symbol); err != nil {
					s.log.Error().Err(err).Msg("failed to cancel surviving sell leg")
				}
			}
			continue
		}

		s.ageOutIfLingering(ctx, arb, buyOrder, sellOrder)
	}
}

// ageOutIfLingering cancels the still-open leg of an arbitrage that has
// exceeded maxOrderAge with exactly one leg closed, marking it failed
// rather than leaving it active indefinitely.
func (s *Strategy) ageOutIfLingering(ctx context.Context, arb *arbState, buyOrder, sellOrder venue.Order) {
	if s.maxOrderAge <= 0 || time.Since(arb.createdAt) < s.maxOrderAge {
		return
	}

	buyClosed := buyOrder.Status == venue.OrderClosed
	sellClosed := sellOrder.Status == venue.OrderClosed
	if buyClosed == sellClosed {
		return // both open or both closed; the both-closed case is handled above
	}

	s.log.Warn().Str("arb_id", arb.id).Dur("age", time.Since(arb.createdAt)).
		Msg("arbitrage aged past max_order_age_seconds with one leg lingering, cancelling open leg")

	if !buyClosed {
		if _, err := s.registry.CancelOrder(ctx, arb.buyVenue, arb.buyOrderID, arb.symbol); err != nil {
			s.log.Error().Err(err).Msg("failed to cancel lingering buy leg")
		}
	}
	if !sellClosed {
		if _, err := s.registry.CancelOrder(ctx, arb.sellVenue, arb.sellOrderID, arb.symbol); err != nil {
			s.log.Error().Err(err).Msg("failed to cancel lingering sell leg")
		}
	}

	s.mu.Lock()
	arb.status = "failed"
	s.mu.Unlock()
}

func (s *Strategy) cancelArbitrage(ctx context.Context, arb *arbState) {
	if _, err := s.registry.CancelOrder(ctx, arb.buyVenue, arb.buyOrderID, arb.symbol); err != nil {
		s.log.Error().Err(err).Str("arb_id", arb.id).Msg("failed to cancel buy leg")
	}
	if _, err := s.registry.CancelOrder(ctx, arb.sellVenue, arb.sellOrderID, arb.symbol); err != nil {
		s.log.Error().Err(err).Str("arb_id", arb.id).Msg("failed to cancel sell leg")
	}

	s.mu.Lock()
	arb.status = "cancelled"
	s.mu.Unlock()

	s.log.Info().Str("arb_id", arb.id).Msg("cancelled arbitrage")
}

func (s *Strategy) logStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active, completed, failed int
	var totalProfit, totalProfitPercent float64
	for _, a := range s.active {
		switch a.status {
		case "active":
			active++
		case "completed":
			completed++
			totalProfit += a.actualProfit
			totalProfitPercent += a.actualProfitPercent
		case "failed", "cancelled":
			failed++
		}
	}

	s.log.Info().Int("active", active).Int("completed", completed).Int("failed", failed).Msg("arbitrage status")
	if completed > 0 {
		s.log.Info().Float64("total_profit", totalProfit).
			Float64("avg_profit_percent", totalProfitPercent/float64(completed)).Msg("arbitrage pnl")
	}
}

// recordPerformance forwards a completed arbitrage's realized profit to
// whatever the owning Runner wired via WireRunner.
func (s *Strategy) recordPerformance(profit float64, isWin bool) {
	if s.onTrade != nil {
		s.onTrade(profit, isWin)
	}
}

// WireRunner lets the runner observe completed arbitrage trades for its
// own performance accounting.
func (s *Strategy) WireRunner(onTrade func(profit float64, isWin bool)) {
	s.onTrade = onTrade
}

func splitSymbol(symbol string) (base, quote string, ok bool) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
