// Package genericx is the adapter family for venues whose REST API fits a
// common shape: HMAC- or key-signed requests, JSON bodies, one base URL.
// A VenueSpec supplies the per-venue knowledge (endpoints, signing,
// response parsing); genericx supplies the shared plumbing — rate
// limiting, circuit breaking, HTTP transport — adapted from the teacher's
// internal/net/client.Wrapper chain and internal/providers/kraken.Client.
package genericx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venue/ratelimit"
)

// Request describes one outbound call before signing.
type Request struct {
	Method  string
	Path    string // relative to VenueSpec.BaseURL
	Query   map[string]string
	Body    map[string]any
	Private bool // true if the endpoint requires authentication

	// Headers carries HTTP headers a VenueSpec.Sign implementation needs
	// to set directly (e.g. Kraken's API-Key/API-Sign), applied after the
	// adapter's own defaults so Sign can also override Content-Type.
	Headers map[string]string
	// RawBody, if non-nil, is sent verbatim as the request body instead
	// of JSON-marshaling Body. Venues whose private endpoints require a
	// form-encoded signed payload (Kraken) set this from Sign.
	RawBody []byte
}

// VenueSpec is the per-venue knowledge genericx needs: how to sign a
// request and how to turn raw response bytes into normalized types. Each
// concrete venue (e.g. internal/venue/kraken) implements this against its
// own wire format.
type VenueSpec interface {
	ID() string
	BaseURL() string
	DefaultRPS() float64

	Sign(req *Request, cfg venue.Config) error

	ParseBalance(body []byte) (venue.Balance, error)
	ParseMarkets(body []byte) ([]venue.Market, error)
	ParseTicker(body []byte, symbol string) (venue.Ticker, error)
	ParseCreateOrder(body []byte, req venue.CreateOrderRequest) (venue.Order, error)
	ParseCancelOrder(body []byte, orderID, symbol string) (venue.Order, error)
	ParseFetchOrder(body []byte, orderID, symbol string) (venue.Order, error)
	ParseOpenOrders(body []byte, symbol string) ([]venue.Order, error)
	ParseClosedOrders(body []byte, symbol string) ([]venue.Order, error)
	ParseMyTrades(body []byte, symbol string) ([]venue.Trade, error)
	ParseWithdraw(body []byte, req venue.WithdrawRequest) (venue.WithdrawResult, error)

	BuildBalance() Request
	BuildMarkets() Request
	BuildTicker(symbol string) Request
	BuildCreateOrder(req venue.CreateOrderRequest) Request
	BuildCancelOrder(orderID, symbol string) Request
	BuildFetchOrder(orderID, symbol string) Request
	BuildOpenOrders(symbol string) Request
	BuildClosedOrders(symbol string) Request
	BuildMyTrades(symbol string) Request
	BuildWithdraw(req venue.WithdrawRequest) Request
}

// Adapter implements venue.Adapter against one VenueSpec + venue.Config,
// running every call through a rate limiter and a circuit breaker before
// hitting the wire — the same sequencing as the teacher's Wrapper.RoundTrip
// (rate limit, then circuit-wrapped transport).
type Adapter struct {
	spec       VenueSpec
	cfg        venue.Config
	httpClient *http.Client
	limiter    *ratelimit.Manager
	breaker    *breaker.Breaker
	userAgent  string
}

// New builds an Adapter. limiter may be shared across venues (it keys its
// limiters by venue id); brk is the single breaker every call of this
// adapter runs through.
func New(spec VenueSpec, cfg venue.Config, limiter *ratelimit.Manager, brk *breaker.Breaker) *Adapter {
	rps := spec.DefaultRPS()
	if rps <= 0 {
		rps = ratelimit.DefaultRPS
	}
	limiter.Configure(spec.ID(), rps)

	return &Adapter{
		spec: spec,
		cfg:  cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		limiter:   limiter,
		breaker:   brk,
		userAgent: "tradebot/1.0 (+generic-venue-adapter)",
	}
}

func (a *Adapter) do(ctx context.Context, req Request) ([]byte, error) {
	if req.Private {
		if err := a.spec.Sign(&req, a.cfg); err != nil {
			return nil, fmt.Errorf("%s: sign request: %w", a.spec.ID(), err)
		}
	}

	if err := a.limiter.Wait(ctx, a.spec.ID()); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", a.spec.ID(), err)
	}

	var body []byte
	err := a.breaker.Call(ctx, func(ctx context.Context) error {
		b, err := a.execute(ctx, req)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.spec.ID(), err)
	}
	return body, nil
}

func (a *Adapter) execute(ctx context.Context, req Request) ([]byte, error) {
	url := a.spec.BaseURL() + req.Path
	if len(req.Query) > 0 {
		q := "?"
		first := true
		for k, v := range req.Query {
			if !first {
				q += "&"
			}
			q += k + "=" + v
			first = false
		}
		url += q
	}

	var bodyReader io.Reader
	switch {
	case req.RawBody != nil:
		bodyReader = bytes.NewReader(req.RawBody)
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", a.userAgent)
	switch {
	case req.RawBody != nil:
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case req.Body != nil:
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (a *Adapter) FetchBalance(ctx context.Context) (venue.Balance, error) {
	body, err := a.do(ctx, a.spec.BuildBalance())
	if err != nil {
		return nil, err
	}
	return a.spec.ParseBalance(body)
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]venue.Market, error) {
	body, err := a.do(ctx, a.spec.BuildMarkets())
	if err != nil {
		return nil, err
	}
	return a.spec.ParseMarkets(body)
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (venue.Ticker, error) {
	body, err := a.do(ctx, a.spec.BuildTicker(symbol))
	if err != nil {
		return venue.Ticker{}, err
	}
	return a.spec.ParseTicker(body, symbol)
}

func (a *Adapter) CreateOrder(ctx context.Context, req venue.CreateOrderRequest) (venue.Order, error) {
	body, err := a.do(ctx, a.spec.BuildCreateOrder(req))
	if err != nil {
		return venue.Order{}, err
	}
	return a.spec.ParseCreateOrder(body, req)
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	body, err := a.do(ctx, a.spec.BuildCancelOrder(orderID, symbol))
	if err != nil {
		return venue.Order{}, err
	}
	return a.spec.ParseCancelOrder(body, orderID, symbol)
}

func (a *Adapter) FetchOrder(ctx context.Context, orderID, symbol string) (venue.Order, error) {
	body, err := a.do(ctx, a.spec.BuildFetchOrder(orderID, symbol))
	if err != nil {
		return venue.Order{}, err
	}
	return a.spec.ParseFetchOrder(body, orderID, symbol)
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	body, err := a.do(ctx, a.spec.BuildOpenOrders(symbol))
	if err != nil {
		return nil, err
	}
	return a.spec.ParseOpenOrders(body, symbol)
}

func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	body, err := a.do(ctx, a.spec.BuildClosedOrders(symbol))
	if err != nil {
		return nil, err
	}
	return a.spec.ParseClosedOrders(body, symbol)
}

func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string) ([]venue.Trade, error) {
	body, err := a.do(ctx, a.spec.BuildMyTrades(symbol))
	if err != nil {
		return nil, err
	}
	return a.spec.ParseMyTrades(body, symbol)
}

func (a *Adapter) Withdraw(ctx context.Context, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	body, err := a.do(ctx, a.spec.BuildWithdraw(req))
	if err != nil {
		return venue.WithdrawResult{}, err
	}
	return a.spec.ParseWithdraw(body, req)
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.do(ctx, a.spec.BuildMarkets())
	return err
}

var _ venue.Adapter = (*Adapter)(nil)
