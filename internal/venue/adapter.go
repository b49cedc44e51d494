package venue

import "context"

// Adapter is the uniform operation surface every venue implementation
// presents, generic or bespoke (spec section 4.1). Return shapes are
// normalized; fields absent at the venue come back nil. Adapters return
// real Go errors — the registry (internal/venue/registry) is the fault
// boundary that converts failures into empty results plus a log line, not
// the adapter itself.
type Adapter interface {
	FetchBalance(ctx context.Context) (Balance, error)
	FetchMarkets(ctx context.Context) ([]Market, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	CancelOrder(ctx context.Context, orderID, symbol string) (Order, error)
	FetchOrder(ctx context.Context, orderID, symbol string) (Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	FetchClosedOrders(ctx context.Context, symbol string) ([]Order, error)
	FetchMyTrades(ctx context.Context, symbol string) ([]Trade, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error)
	TestConnection(ctx context.Context) error
}

// Factory builds an Adapter bound to one Config. Registered per venue_id in
// the registry's adapter-implementation table (spec section 4.2:
// "Fails if no adapter implementation exists for config.venue_id").
type Factory func(cfg Config) (Adapter, error)

// ImplementedVenueIDs lists the venue ids that have a real Adapter
// implementation wired in cmd/tradebot's buildAdapter table. This is the
// single source of truth backing the supported-exchanges control plane
// endpoint — it must track buildAdapter's switch cases, not config's
// default venue seed list, which only describes what ships pre-configured
// and says nothing about adapter availability.
func ImplementedVenueIDs() []string {
	return []string{"kraken", "tradeogre"}
}
