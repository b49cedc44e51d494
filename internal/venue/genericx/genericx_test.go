package genericx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venue/ratelimit"
)

// fakeSpec is a minimal VenueSpec pointed at an httptest.Server, exercising
// the Adapter's rate-limit -> breaker -> transport chain without needing a
// real exchange.
type fakeSpec struct {
	id      string
	baseURL string
}

func (f *fakeSpec) ID() string          { return f.id }
func (f *fakeSpec) BaseURL() string     { return f.baseURL }
func (f *fakeSpec) DefaultRPS() float64 { return 100 }

func (f *fakeSpec) Sign(req *Request, cfg venue.Config) error {
	req.Query = map[string]string{"key": cfg.APIKey}
	return nil
}

func (f *fakeSpec) ParseBalance(body []byte) (venue.Balance, error) {
	var bal venue.Balance
	return bal, json.Unmarshal(body, &bal)
}
func (f *fakeSpec) ParseMarkets(body []byte) ([]venue.Market, error) { return nil, nil }
func (f *fakeSpec) ParseTicker(body []byte, symbol string) (venue.Ticker, error) {
	var t venue.Ticker
	return t, json.Unmarshal(body, &t)
}
func (f *fakeSpec) ParseCreateOrder(body []byte, req venue.CreateOrderRequest) (venue.Order, error) {
	var o venue.Order
	return o, json.Unmarshal(body, &o)
}
func (f *fakeSpec) ParseCancelOrder(body []byte, orderID, symbol string) (venue.Order, error) {
	return venue.Order{}, nil
}
func (f *fakeSpec) ParseFetchOrder(body []byte, orderID, symbol string) (venue.Order, error) {
	return venue.Order{}, nil
}
func (f *fakeSpec) ParseOpenOrders(body []byte, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (f *fakeSpec) ParseClosedOrders(body []byte, symbol string) ([]venue.Order, error) {
	return nil, nil
}
func (f *fakeSpec) ParseMyTrades(body []byte, symbol string) ([]venue.Trade, error) {
	return nil, nil
}
func (f *fakeSpec) ParseWithdraw(body []byte, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	return venue.WithdrawResult{}, nil
}

func (f *fakeSpec) BuildBalance() Request { return Request{Method: "GET", Path: "/balance", Private: true} }
func (f *fakeSpec) BuildMarkets() Request { return Request{Method: "GET", Path: "/markets"} }
func (f *fakeSpec) BuildTicker(symbol string) Request {
	return Request{Method: "GET", Path: "/ticker", Query: map[string]string{"symbol": symbol}}
}
func (f *fakeSpec) BuildCreateOrder(req venue.CreateOrderRequest) Request {
	return Request{Method: "POST", Path: "/order", Private: true, Body: map[string]any{"symbol": req.Symbol}}
}
func (f *fakeSpec) BuildCancelOrder(orderID, symbol string) Request {
	return Request{Method: "POST", Path: "/cancel", Private: true}
}
func (f *fakeSpec) BuildFetchOrder(orderID, symbol string) Request {
	return Request{Method: "GET", Path: "/order/" + orderID, Private: true}
}
func (f *fakeSpec) BuildOpenOrders(symbol string) Request {
	return Request{Method: "GET", Path: "/orders/open", Private: true}
}
func (f *fakeSpec) BuildClosedOrders(symbol string) Request {
	return Request{Method: "GET", Path: "/orders/closed", Private: true}
}
func (f *fakeSpec) BuildMyTrades(symbol string) Request {
	return Request{Method: "GET", Path: "/trades", Private: true}
}
func (f *fakeSpec) BuildWithdraw(req venue.WithdrawRequest) Request {
	return Request{Method: "POST", Path: "/withdraw", Private: true}
}

var _ VenueSpec = (*fakeSpec)(nil)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	spec := &fakeSpec{id: "fake", baseURL: srv.URL}
	limiter := ratelimit.NewManager()
	brk := breaker.New(breaker.DefaultConfig())
	return New(spec, venue.Config{VenueID: "fake", APIKey: "key1"}, limiter, brk)
}

func TestFetchTicker_ParsesResponse(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker", r.URL.Path)
		_, _ = w.Write([]byte(`{"last":100.5}`))
	})

	ticker, err := a.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.NotNil(t, ticker.Last)
	assert.Equal(t, 100.5, *ticker.Last)
}

func TestFetchBalance_SignsPrivateRequest(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key1", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := a.FetchBalance(context.Background())
	require.NoError(t, err)
}

func TestDo_SurfacesHTTPErrorStatus(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	})

	_, err := a.FetchMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake")
}

func TestExecute_SendsRawBodyAndHeaders(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "signed-key", r.Header.Get("API-Key"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "nonce=1", string(body))
		_, _ = w.Write([]byte(`{}`))
	})

	req := Request{
		Method: "POST", Path: "/order", Private: false,
		Headers: map[string]string{"API-Key": "signed-key"},
		RawBody: []byte("nonce=1"),
	}
	_, err := a.do(context.Background(), req)
	require.NoError(t, err)
}

func TestTestConnection_OKWhenMarketsSucceed(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	assert.NoError(t, a.TestConnection(context.Background()))
}
