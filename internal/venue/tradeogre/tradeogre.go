// Package tradeogre is a bespoke venue.Adapter for TradeOgre, whose API
// shape (HTTP Basic auth, a boolean success field instead of HTTP status
// codes, BASE-QUOTE market ids) doesn't fit genericx's VenueSpec cleanly
// enough to be worth forcing. Ported line-for-line in semantics from
// original custom_exchanges/tradeogre.py, reworked into idiomatic Go.
package tradeogre

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venue/ratelimit"
)

const baseURL = "https://tradeogre.com/api/v1"

// Adapter implements venue.Adapter against the TradeOgre REST API.
type Adapter struct {
	cfg        venue.Config
	httpClient *http.Client
	limiter    *ratelimit.Manager
	breaker    *breaker.Breaker
}

// New builds a TradeOgre adapter bound to cfg.
func New(cfg venue.Config, limiter *ratelimit.Manager, brk *breaker.Breaker) *Adapter {
	limiter.Configure("tradeogre", 1.0) // matches the original's rateLimit = 1000ms
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		breaker:    brk,
	}
}

// marketID converts a "BASE/QUOTE" symbol into TradeOgre's "BASE-QUOTE" form.
func marketID(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "-")
}

func symbolFromMarketID(marketID string) string {
	parts := strings.SplitN(marketID, "-", 2)
	if len(parts) != 2 {
		return marketID
	}
	return parts[0] + "/" + parts[1]
}

// apiResponse captures the optional success/error envelope TradeOgre adds
// on top of otherwise-bare JSON bodies.
type apiResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (a *Adapter) request(ctx context.Context, method, path string, private bool, body map[string]any) ([]byte, error) {
	if err := a.limiter.Wait(ctx, "tradeogre"); err != nil {
		return nil, fmt.Errorf("tradeogre: rate limit wait: %w", err)
	}

	var data []byte
	err := a.breaker.Call(ctx, func(ctx context.Context) error {
		b, err := a.doRequest(ctx, method, path, private, body)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tradeogre: %w", err)
	}
	return data, nil
}

func (a *Adapter) doRequest(ctx context.Context, method, path string, private bool, body map[string]any) ([]byte, error) {
	url := baseURL + path

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		token := base64.StdEncoding.EncodeToString([]byte(a.cfg.APIKey + ":" + a.cfg.APISecret))
		req.Header.Set("Authorization", "Basic "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := handleErrors(data); err != nil {
		return nil, err
	}
	return data, nil
}

// handleErrors mirrors the original's handle_errors: TradeOgre signals
// failure with a success=false field in an otherwise-200 response rather
// than an HTTP error status.
func handleErrors(body []byte) error {
	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil // not an error envelope, body is the real payload
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("tradeogre error: %s", msg)
	}
	return nil
}

// safeFloat mirrors the original's safe_float: missing or unparsable
// fields resolve to nil rather than erroring the whole call.
func safeFloat(m map[string]any, key string) *float64 {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// orderStatusFromFill infers order status the way kraken.go's
// krakenOrderInfo.toOrder does from its own status field: TradeOgre's order
// endpoint reports fulfilled/quantity but never a discrete status string, so
// a fully filled order is inferred from filled >= amount.
func orderStatusFromFill(filled, amount float64) venue.OrderStatus {
	if amount > 0 && filled >= amount {
		return venue.OrderClosed
	}
	return venue.OrderOpen
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]venue.Market, error) {
	body, err := a.request(ctx, http.MethodGet, "/markets", false, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("tradeogre: decode markets: %w", err)
	}
	markets := make([]venue.Market, 0, len(raw))
	for id := range raw {
		parts := strings.SplitN(id, "-", 2)
		if len(parts) != 2 {
			continue
		}
		markets = append(markets, venue.Market{
			Symbol: symbolFromMarketID(id), Base: parts[0], Quote: parts[1], Active: true,
		})
	}
	return markets, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (venue.Ticker, error) {
	body, err := a.request(ctx, http.MethodGet, "/ticker/"+marketID(symbol), false, nil)
	if err != nil {
		return venue.Ticker{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return venue.Ticker{}, fmt.Errorf("tradeogre: decode ticker: %w", err)
	}
	return venue.Ticker{
		Bid:        safeFloat(raw, "bid"),
		Ask:        safeFloat(raw, "ask"),
		Last:       safeFloat(raw, "price"),
		High:       safeFloat(raw, "high"),
		Low:        safeFloat(raw, "low"),
		BaseVolume: safeFloat(raw, "volume"),
		Timestamp:  time.Now(),
	}, nil
}

func (a *Adapter) FetchBalance(ctx context.Context) (venue.Balance, error) {
	body, err := a.request(ctx, http.MethodGet, "/account/balances", true, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("tradeogre: decode balances: %w", err)
	}
	bal := venue.Balance{}
	for code, fields := range raw {
		free, used, total := 0.0, 0.0, 0.0
		if v := safeFloat(fields, "available"); v != nil {
			free = *v
		}
		if v := safeFloat(fields, "held"); v != nil {
			used = *v
		}
		if v := safeFloat(fields, "total"); v != nil {
			total = *v
		}
		bal[code] = venue.AssetBalance{Free: free, Used: used, Total: total}
	}
	return bal, nil
}

func (a *Adapter) CreateOrder(ctx context.Context, req venue.CreateOrderRequest) (venue.Order, error) {
	if req.Price == nil {
		return venue.Order{}, fmt.Errorf("tradeogre: market orders are not supported, price is required")
	}
	path := "/account/sell"
	if req.Side == venue.Buy {
		path = "/account/buy"
	}
	body := map[string]any{
		"market":   marketID(req.Symbol),
		"quantity": strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"price":    strconv.FormatFloat(*req.Price, 'f', -1, 64),
	}
	data, err := a.request(ctx, http.MethodPost, path, true, body)
	if err != nil {
		return venue.Order{}, err
	}
	var raw struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return venue.Order{}, fmt.Errorf("tradeogre: decode create order: %w", err)
	}
	return venue.Order{
		ID: raw.UUID, VenueID: "tradeogre", Symbol: req.Symbol, Side: req.Side,
		Type: venue.Limit, Amount: req.Amount, Price: req.Price, Status: venue.OrderOpen, Remaining: req.Amount,
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	body := map[string]any{"uuid": orderID}
	if _, err := a.request(ctx, http.MethodPost, "/account/cancel", true, body); err != nil {
		return venue.Order{}, err
	}
	return venue.Order{ID: orderID, VenueID: "tradeogre", Symbol: symbol, Status: venue.OrderCanceled}, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	data, err := a.request(ctx, http.MethodGet, "/account/orders", true, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]struct {
		Market   string `json:"market"`
		Type     string `json:"type"`
		Price    any    `json:"price"`
		Quantity any    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tradeogre: decode open orders: %w", err)
	}
	orders := make([]venue.Order, 0, len(raw))
	for id, o := range raw {
		sym := symbolFromMarketID(o.Market)
		if symbol != "" && sym != symbol {
			continue
		}
		fields := map[string]any{"price": o.Price, "quantity": o.Quantity}
		price := safeFloat(fields, "price")
		amount := 0.0
		if v := safeFloat(fields, "quantity"); v != nil {
			amount = *v
		}
		orders = append(orders, venue.Order{
			ID: id, VenueID: "tradeogre", Symbol: sym, Side: venue.OrderSide(o.Type),
			Type: venue.Limit, Amount: amount, Price: price, Remaining: amount, Status: venue.OrderOpen,
		})
	}
	return orders, nil
}

// FetchClosedOrders is unsupported: the original has no corresponding
// endpoint ('fetchMyTrades'/closed-order history is absent from
// TradeOgre's API surface, per the `has` capability map).
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return nil, fmt.Errorf("tradeogre: fetch closed orders is not supported by this venue")
}

// FetchMyTrades is unsupported for the same reason.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string) ([]venue.Trade, error) {
	return nil, fmt.Errorf("tradeogre: fetch my trades is not supported by this venue")
}

func (a *Adapter) FetchOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	data, err := a.request(ctx, http.MethodGet, "/account/order/"+orderID, true, nil)
	if err != nil {
		return venue.Order{}, err
	}
	var raw struct {
		Market   string `json:"market"`
		Type     string `json:"type"`
		Price    any    `json:"price"`
		Quantity any    `json:"quantity"`
		Filled   any    `json:"fulfilled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return venue.Order{}, fmt.Errorf("tradeogre: decode order: %w", err)
	}
	fields := map[string]any{"price": raw.Price, "quantity": raw.Quantity, "fulfilled": raw.Filled}
	amount := 0.0
	if v := safeFloat(fields, "quantity"); v != nil {
		amount = *v
	}
	filled := 0.0
	if v := safeFloat(fields, "fulfilled"); v != nil {
		filled = *v
	}
	return venue.Order{
		ID: orderID, VenueID: "tradeogre", Symbol: symbolFromMarketID(raw.Market),
		Side: venue.OrderSide(raw.Type), Type: venue.Limit, Amount: amount, Filled: filled,
		Remaining: amount - filled, Price: safeFloat(fields, "price"), Status: orderStatusFromFill(filled, amount),
	}, nil
}

// Withdraw is unsupported: TradeOgre's public API documents no withdrawal
// endpoint (withdrawals are wallet-initiated via the website only).
func (a *Adapter) Withdraw(ctx context.Context, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	return venue.WithdrawResult{}, fmt.Errorf("tradeogre: withdrawals are not supported through the API")
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.request(ctx, http.MethodGet, "/markets", false, nil)
	return err
}

var _ venue.Adapter = (*Adapter)(nil)
