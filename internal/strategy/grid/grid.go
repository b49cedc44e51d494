// Package grid implements grid trading: a ladder of buy orders below and
// sell orders above the current price, replaced on the opposite side each
// time one fills, to harvest range-bound oscillation. Ported line-for-line
// in semantics from original strategies/grid_trading.py.
package grid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/tradebot/internal/strategy"
	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/registry"
)

// StrategyID is the registered id for this strategy.
const StrategyID = "grid_trading"

// Params are the validated, defaulted construction parameters.
type Params struct {
	VenueID          string
	Symbol           string
	LowerPrice       float64
	UpperPrice       float64
	GridLevels       int
	TotalInvestment  float64
	TickIntervalSecs int
}

// Descriptor describes this strategy's static metadata and parameter
// surface, mirroring the original's get_parameters_info.
func Descriptor() strategy.Descriptor {
	return strategy.Descriptor{
		ID:   StrategyID,
		Name: "Grid Trading",
		Description: "Creates a grid of buy and sell orders at regular price intervals. " +
			"Profits from price oscillations within a range by buying low and selling high. " +
			"Works best in sideways markets with regular price movements.",
		Parameters: []strategy.ParamInfo{
			{Name: "venue_id", Type: "string", Required: true, Description: "Venue to trade on"},
			{Name: "symbol", Type: "string", Required: true, Description: "Market symbol to trade (e.g. BTC/USDT)"},
			{Name: "lower_price", Type: "float", Required: true, Description: "Lower price boundary for the grid"},
			{Name: "upper_price", Type: "float", Required: true, Description: "Upper price boundary for the grid"},
			{Name: "grid_levels", Type: "int", Default: 10, Description: "Number of grid levels (2-100)"},
			{Name: "total_investment", Type: "float", Required: true, Description: "Total investment in quote currency"},
			{Name: "tick_interval", Type: "int", Default: 60, Description: "Seconds between strategy ticks"},
		},
	}
}

func defaultParams() Params {
	return Params{GridLevels: 10, TickIntervalSecs: 60}
}

// New validates raw construction parameters, failing the same way the
// original's __init__ and calculate_grid_levels do: missing required
// keys, or lower_price >= upper_price.
func New(raw map[string]any) (Params, error) {
	p := defaultParams()

	venueID, _ := raw["venue_id"].(string)
	if venueID == "" {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: venue_id")
	}
	p.VenueID = venueID

	symbol, _ := raw["symbol"].(string)
	if symbol == "" {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: symbol")
	}
	p.Symbol = symbol

	lower, ok := toFloat(raw["lower_price"])
	if !ok {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: lower_price")
	}
	upper, ok := toFloat(raw["upper_price"])
	if !ok {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: upper_price")
	}
	if lower >= upper {
		return Params{}, strategy.ConstructionError(StrategyID, "lower_price must be less than upper_price")
	}
	p.LowerPrice, p.UpperPrice = lower, upper

	investment, ok := toFloat(raw["total_investment"])
	if !ok {
		return Params{}, strategy.ConstructionError(StrategyID, "missing required parameter: total_investment")
	}
	p.TotalInvestment = investment

	if v, ok := toInt(raw["grid_levels"]); ok {
		p.GridLevels = v
	}
	if p.GridLevels < 2 || p.GridLevels > 100 {
		return Params{}, strategy.ConstructionError(StrategyID, "grid_levels must be between 2 and 100")
	}
	if v, ok := raw["tick_interval"]; ok {
		i, ok := toInt(v)
		if !ok || i < 10 {
			return Params{}, strategy.ConstructionError(StrategyID, "tick_interval must be at least 10 seconds")
		}
		p.TickIntervalSecs = i
	}

	return p, nil
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

// gridOrder tracks one ladder rung's current order.
type gridOrder struct {
	id     string
	price  float64
	side   venue.OrderSide
	status string // "open", "filled"
}

// Strategy is the grid trading strategy's runtime state.
type Strategy struct {
	params   Params
	registry *registry.Registry
	log      zerolog.Logger

	mu         sync.Mutex
	gridPrices []float64
	orderSize  float64
	lastPrice  float64
	orders     []*gridOrder
	onTrade    func(profit float64, isWin bool)
}

// NewStrategy builds a Strategy from already-validated params.
func NewStrategy(params Params, reg *registry.Registry, log zerolog.Logger) *Strategy {
	return &Strategy{
		params:   params,
		registry: reg,
		log:      log.With().Str("strategy_id", StrategyID).Logger(),
	}
}

func (s *Strategy) Descriptor() strategy.Descriptor { return Descriptor() }

func (s *Strategy) TickInterval() time.Duration {
	return time.Duration(s.params.TickIntervalSecs) * time.Second
}

func (s *Strategy) WireRunner(onTrade func(profit float64, isWin bool)) {
	s.onTrade = onTrade
}

func (s *Strategy) OnStart(ctx context.Context) error {
	s.log.Info().Str("symbol", s.params.Symbol).Str("venue_id", s.params.VenueID).Msg("starting grid trading strategy")

	s.calculateGridLevels()
	return s.createGridOrders(ctx)
}

func (s *Strategy) OnStop(ctx context.Context) error {
	s.log.Info().Msg("stopping grid trading strategy")
	s.cancelAllOrders(ctx)
	return nil
}

func (s *Strategy) Tick(ctx context.Context) error {
	s.updateOrderStatus(ctx)
	s.checkAndReplaceFilledOrders(ctx)
	s.logStatus()
	return nil
}

// calculateGridLevels lays out GridLevels equally spaced prices between
// LowerPrice and UpperPrice inclusive, and the per-level order size.
func (s *Strategy) calculateGridLevels() {
	priceRange := s.params.UpperPrice - s.params.LowerPrice
	priceStep := priceRange / float64(s.params.GridLevels-1)

	prices := make([]float64, s.params.GridLevels)
	for i := 0; i < s.params.GridLevels; i++ {
		prices[i] = s.params.LowerPrice + float64(i)*priceStep
	}

	s.mu.Lock()
	s.gridPrices = prices
	s.orderSize = s.params.TotalInvestment / float64(s.params.GridLevels)
	s.mu.Unlock()

	s.log.Info().Int("grid_levels", s.params.GridLevels).Float64("lower_price", s.params.LowerPrice).
		Float64("upper_price", s.params.UpperPrice).Msg("grid calculated")
	s.log.Info().Float64("price_step", priceStep).Float64("order_size", s.orderSize).Msg("grid sizing")
}

func (s *Strategy) createGridOrders(ctx context.Context) error {
	ticker, err := s.registry.FetchTicker(ctx, s.params.VenueID, s.params.Symbol)
	if err != nil {
		return fmt.Errorf("grid: fetch ticker for %s: %w", s.params.Symbol, err)
	}
	if ticker.Last == nil || *ticker.Last <= 0 {
		return fmt.Errorf("grid: invalid current price for %s", s.params.Symbol)
	}
	currentPrice := *ticker.Last

	s.mu.Lock()
	s.lastPrice = currentPrice
	prices := s.gridPrices
	orderSize := s.orderSize
	s.mu.Unlock()

	for _, price := range prices {
		if price < currentPrice {
			s.placeLevel(ctx, price, venue.Buy, orderSize)
		}
	}
	for _, price := range prices {
		if price > currentPrice {
			s.placeLevel(ctx, price, venue.Sell, orderSize)
		}
	}
	return nil
}

func (s *Strategy) placeLevel(ctx context.Context, price float64, side venue.OrderSide, orderSize float64) {
	amount := orderSize / price
	p := price
	order, err := s.registry.CreateOrder(ctx, s.params.VenueID, venue.CreateOrderRequest{
		Symbol: s.params.Symbol, Side: side, Type: venue.Limit, Amount: amount, Price: &p,
	})
	if err != nil {
		s.log.Error().Err(err).Float64("price", price).Str("side", string(side)).Msg("failed to create grid order")
		return
	}

	s.mu.Lock()
	s.orders = append(s.orders, &gridOrder{id: order.ID, price: price, side: side, status: "open"})
	s.mu.Unlock()

	s.log.Info().Float64("price", price).Str("side", string(side)).Msg("created grid order")
}

func (s *Strategy) updateOrderStatus(ctx context.Context) {
	openOrders, err := s.registry.FetchOpenOrders(ctx, s.params.VenueID, s.params.Symbol)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch open orders")
		return
	}
	openIDs := make(map[string]bool, len(openOrders))
	for _, o := range openOrders {
		openIDs[o.ID] = true
	}

	s.mu.Lock()
	orders := append([]*gridOrder(nil), s.orders...)
	lastPrice := s.lastPrice
	s.mu.Unlock()

	for _, o := range orders {
		if openIDs[o.id] {
			s.mu.Lock()
			o.status = "open"
			s.mu.Unlock()
			continue
		}

		if o.status != "open" {
			continue
		}

		details, err := s.registry.FetchOrder(ctx, s.params.VenueID, o.id, s.params.Symbol)
		if err != nil {
			s.log.Error().Err(err).Str("order_id", o.id).Msg("failed to fetch order detail")
			continue
		}

		if details.Status == venue.OrderClosed {
			s.mu.Lock()
			o.status = "filled"
			s.mu.Unlock()

			s.log.Info().Str("side", string(o.side)).Float64("price", o.price).Msg("grid order filled")

			if o.side == venue.Sell {
				profit := o.price - lastPrice
				s.recordPerformance(profit, profit > 0)
			}
		}
	}
}

func (s *Strategy) checkAndReplaceFilledOrders(ctx context.Context) {
	s.mu.Lock()
	toReplace := make([]*gridOrder, 0)
	for _, o := range s.orders {
		if o.status == "filled" {
			toReplace = append(toReplace, o)
		}
	}
	orderSize := s.orderSize
	s.mu.Unlock()

	for _, o := range toReplace {
		newSide := venue.Sell
		if o.side == venue.Sell {
			newSide = venue.Buy
		}
		price := o.price
		amount := orderSize / price

		newOrder, err := s.registry.CreateOrder(ctx, s.params.VenueID, venue.CreateOrderRequest{
			Symbol: s.params.Symbol, Side: newSide, Type: venue.Limit, Amount: amount, Price: &price,
		})
		if err != nil {
			s.log.Error().Err(err).Float64("price", price).Msg("failed to replace filled order")
			continue
		}

		s.mu.Lock()
		o.id = newOrder.ID
		o.side = newSide
		o.status = "open"
		s.mu.Unlock()

		s.log.Info().Str("new_side", string(newSide)).Float64("price", price).Msg("replaced filled order")
	}
}

func (s *Strategy) cancelAllOrders(ctx context.Context) {
	s.mu.Lock()
	orders := append([]*gridOrder(nil), s.orders...)
	s.mu.Unlock()

	for _, o := range orders {
		if o.status != "open" {
			continue
		}
		if _, err := s.registry.CancelOrder(ctx, s.params.VenueID, o.id, s.params.Symbol); err != nil {
			s.log.Error().Err(err).Str("order_id", o.id).Msg("failed to cancel grid order")
			continue
		}
		s.log.Info().Str("side", string(o.side)).Float64("price", o.price).Msg("cancelled grid order")
	}
}

func (s *Strategy) logStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var openBuys, openSells, filled int
	for _, o := range s.orders {
		switch {
		case o.status == "open" && o.side == venue.Buy:
			openBuys++
		case o.status == "open" && o.side == venue.Sell:
			openSells++
		case o.status == "filled":
			filled++
		}
	}

	s.log.Info().Int("open_buys", openBuys).Int("open_sells", openSells).Int("filled", filled).Msg("grid status")
}

func (s *Strategy) recordPerformance(profit float64, isWin bool) {
	if s.onTrade != nil {
		s.onTrade(profit, isWin)
	}
}
