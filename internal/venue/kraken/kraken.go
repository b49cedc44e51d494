// Package kraken is Kraken's genericx.VenueSpec: it proves the generic
// adapter family against a real, idiosyncratic exchange API, adapted from
// the teacher's internal/providers/kraken client (REST paths, ticker
// array-of-strings decoding) plus Kraken's standard nonce + HMAC-SHA512
// private-endpoint signing.
package kraken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/genericx"
)

const (
	baseURL = "https://api.kraken.com"
	apiVers = "0"
)

// Spec implements genericx.VenueSpec for Kraken.
type Spec struct{}

// New returns Kraken's VenueSpec.
func New() *Spec { return &Spec{} }

func (s *Spec) ID() string         { return "kraken" }
func (s *Spec) BaseURL() string    { return baseURL }
func (s *Spec) DefaultRPS() float64 { return 1.0 } // Kraken free tier

// response is Kraken's standard envelope: {"error":[...],"result":{...}}.
type response struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func unwrap(body []byte) (json.RawMessage, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode kraken response: %w", err)
	}
	if len(r.Error) > 0 {
		return nil, fmt.Errorf("kraken error: %s", strings.Join(r.Error, "; "))
	}
	return r.Result, nil
}

// lastNonce is the most recently issued nonce, so two requests signed in
// the same millisecond still get increasing nonces.
var lastNonce atomic.Int64

// Sign implements Kraken's private-endpoint signing: a strictly
// incrementing nonce folded into the POST body, HMAC-SHA512 of
// (path + SHA256(nonce + postdata)) keyed by the base64-decoded secret.
// Kraken requires the result as the API-Key/API-Sign HTTP headers and the
// signed, form-urlencoded payload as the literal request body — not JSON
// and not query parameters.
func (s *Spec) Sign(req *genericx.Request, cfg venue.Config) error {
	if req.Body == nil {
		req.Body = map[string]any{}
	}
	n := time.Now().UnixMilli()
	for {
		prev := lastNonce.Load()
		if n <= prev {
			n = prev + 1
		}
		if lastNonce.CompareAndSwap(prev, n) {
			break
		}
	}
	nonce := strconv.FormatInt(n, 10)
	req.Body["nonce"] = nonce

	form := url.Values{}
	for k, v := range req.Body {
		form.Set(k, fmt.Sprintf("%v", v))
	}
	postData := form.Encode()

	secret, err := base64.StdEncoding.DecodeString(cfg.APISecret)
	if err != nil {
		return fmt.Errorf("decode kraken api secret: %w", err)
	}

	sha := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(req.Path))
	mac.Write(sha[:])
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.RawBody = []byte(postData)
	req.Headers = map[string]string{
		"API-Key":  cfg.APIKey,
		"API-Sign": signature,
	}
	return nil
}

func pairOf(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

func (s *Spec) BuildBalance() genericx.Request {
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/Balance", Private: true}
}

func (s *Spec) BuildMarkets() genericx.Request {
	return genericx.Request{Method: "GET", Path: "/" + apiVers + "/public/AssetPairs"}
}

func (s *Spec) BuildTicker(symbol string) genericx.Request {
	return genericx.Request{
		Method: "GET",
		Path:   "/" + apiVers + "/public/Ticker",
		Query:  map[string]string{"pair": pairOf(symbol)},
	}
}

func (s *Spec) BuildCreateOrder(req venue.CreateOrderRequest) genericx.Request {
	body := map[string]any{
		"pair":      pairOf(req.Symbol),
		"type":      string(req.Side),
		"ordertype": string(req.Type),
		"volume":    strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	if req.Price != nil {
		body["price"] = strconv.FormatFloat(*req.Price, 'f', -1, 64)
	}
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/AddOrder", Body: body, Private: true}
}

func (s *Spec) BuildCancelOrder(orderID, _ string) genericx.Request {
	return genericx.Request{
		Method:  "POST",
		Path:    "/" + apiVers + "/private/CancelOrder",
		Body:    map[string]any{"txid": orderID},
		Private: true,
	}
}

func (s *Spec) BuildFetchOrder(orderID, _ string) genericx.Request {
	return genericx.Request{
		Method:  "POST",
		Path:    "/" + apiVers + "/private/QueryOrders",
		Body:    map[string]any{"txid": orderID},
		Private: true,
	}
}

func (s *Spec) BuildOpenOrders(_ string) genericx.Request {
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/OpenOrders", Private: true}
}

func (s *Spec) BuildClosedOrders(_ string) genericx.Request {
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/ClosedOrders", Private: true}
}

func (s *Spec) BuildMyTrades(_ string) genericx.Request {
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/TradesHistory", Private: true}
}

func (s *Spec) BuildWithdraw(req venue.WithdrawRequest) genericx.Request {
	body := map[string]any{
		"asset":  req.Currency,
		"key":    req.Address,
		"amount": strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	return genericx.Request{Method: "POST", Path: "/" + apiVers + "/private/Withdraw", Body: body, Private: true}
}

func (s *Spec) ParseBalance(body []byte) (venue.Balance, error) {
	result, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode kraken balance: %w", err)
	}
	bal := venue.Balance{}
	for asset, amtStr := range raw {
		amt, err := strconv.ParseFloat(amtStr, 64)
		if err != nil {
			continue
		}
		bal[asset] = venue.AssetBalance{Free: amt, Used: 0, Total: amt}
	}
	return bal, nil
}

func (s *Spec) ParseMarkets(body []byte) ([]venue.Market, error) {
	result, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var raw map[string]struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode kraken asset pairs: %w", err)
	}
	markets := make([]venue.Market, 0, len(raw))
	for symbol, pair := range raw {
		markets = append(markets, venue.Market{
			Symbol: symbol,
			Base:   pair.Base,
			Quote:  pair.Quote,
			Active: pair.Status == "online",
		})
	}
	return markets, nil
}

func (s *Spec) ParseTicker(body []byte, symbol string) (venue.Ticker, error) {
	result, err := unwrap(body)
	if err != nil {
		return venue.Ticker{}, err
	}
	var raw map[string]struct {
		Ask []string `json:"a"`
		Bid []string `json:"b"`
		Close []string `json:"c"`
		High  []string `json:"h"`
		Low   []string `json:"l"`
		Volume []string `json:"v"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return venue.Ticker{}, fmt.Errorf("decode kraken ticker: %w", err)
	}
	for _, entry := range raw {
		t := venue.Ticker{Timestamp: time.Now()}
		t.Ask = parsePtr(entry.Ask, 0)
		t.Bid = parsePtr(entry.Bid, 0)
		t.Last = parsePtr(entry.Close, 0)
		t.High = parsePtr(entry.High, 1)
		t.Low = parsePtr(entry.Low, 1)
		t.BaseVolume = parsePtr(entry.Volume, 1)
		return t, nil
	}
	return venue.Ticker{}, fmt.Errorf("no ticker data for %s", symbol)
}

func parsePtr(arr []string, idx int) *float64 {
	if len(arr) <= idx {
		return nil
	}
	v, err := strconv.ParseFloat(arr[idx], 64)
	if err != nil {
		return nil
	}
	return &v
}

func (s *Spec) ParseCreateOrder(body []byte, req venue.CreateOrderRequest) (venue.Order, error) {
	result, err := unwrap(body)
	if err != nil {
		return venue.Order{}, err
	}
	var raw struct {
		Txid []string `json:"txid"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return venue.Order{}, fmt.Errorf("decode kraken add order: %w", err)
	}
	id := ""
	if len(raw.Txid) > 0 {
		id = raw.Txid[0]
	}
	return venue.Order{
		ID: id, VenueID: s.ID(), Symbol: req.Symbol, Side: req.Side, Type: req.Type,
		Amount: req.Amount, Price: req.Price, Status: venue.OrderOpen, Remaining: req.Amount,
	}, nil
}

func (s *Spec) ParseCancelOrder(body []byte, orderID, symbol string) (venue.Order, error) {
	if _, err := unwrap(body); err != nil {
		return venue.Order{}, err
	}
	return venue.Order{ID: orderID, VenueID: s.ID(), Symbol: symbol, Status: venue.OrderCanceled}, nil
}

type krakenOrderInfo struct {
	Pair     string `json:"descr_pair"`
	Status   string `json:"status"`
	Volume   string `json:"vol"`
	VolExec  string `json:"vol_exec"`
	Cost     string `json:"cost"`
	Price    string `json:"price"`
	Type     string `json:"type"`
	OrderType string `json:"ordertype"`
	Descr    struct {
		Type  string `json:"type"`
		Price string `json:"price"`
		Pair  string `json:"pair"`
	} `json:"descr"`
}

func (o krakenOrderInfo) toOrder(id, symbol string) venue.Order {
	vol, _ := strconv.ParseFloat(o.Volume, 64)
	exec, _ := strconv.ParseFloat(o.VolExec, 64)
	var status venue.OrderStatus
	switch o.Status {
	case "open", "pending":
		status = venue.OrderOpen
	case "canceled", "expired":
		status = venue.OrderCanceled
	default:
		status = venue.OrderClosed
	}
	ord := venue.Order{
		ID: id, VenueID: "kraken", Symbol: symbol, Amount: vol, Filled: exec,
		Remaining: vol - exec, Status: status,
	}
	if o.Descr.Type != "" {
		ord.Side = venue.OrderSide(o.Descr.Type)
	}
	if price, err := strconv.ParseFloat(o.Descr.Price, 64); err == nil && price > 0 {
		ord.Price = &price
	}
	return ord
}

func (s *Spec) ParseFetchOrder(body []byte, orderID, symbol string) (venue.Order, error) {
	result, err := unwrap(body)
	if err != nil {
		return venue.Order{}, err
	}
	var raw map[string]krakenOrderInfo
	if err := json.Unmarshal(result, &raw); err != nil {
		return venue.Order{}, fmt.Errorf("decode kraken query orders: %w", err)
	}
	info, ok := raw[orderID]
	if !ok {
		return venue.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return info.toOrder(orderID, symbol), nil
}

func (s *Spec) ParseOpenOrders(body []byte, symbol string) ([]venue.Order, error) {
	return s.parseOrderSet(body, symbol, "open")
}

func (s *Spec) ParseClosedOrders(body []byte, symbol string) ([]venue.Order, error) {
	return s.parseOrderSet(body, symbol, "closed")
}

func (s *Spec) parseOrderSet(body []byte, symbol, key string) ([]venue.Order, error) {
	result, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]krakenOrderInfo
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode kraken %s orders: %w", key, err)
	}
	orders := make([]venue.Order, 0)
	for id, info := range raw[key] {
		orders = append(orders, info.toOrder(id, symbol))
	}
	return orders, nil
}

func (s *Spec) ParseMyTrades(body []byte, symbol string) ([]venue.Trade, error) {
	result, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Trades map[string]struct {
			OrderTxid string  `json:"ordertxid"`
			Pair      string  `json:"pair"`
			Type      string  `json:"type"`
			Price     string  `json:"price"`
			Vol       string  `json:"vol"`
			Time      float64 `json:"time"`
		} `json:"trades"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode kraken trades history: %w", err)
	}
	trades := make([]venue.Trade, 0, len(raw.Trades))
	for id, t := range raw.Trades {
		price, _ := strconv.ParseFloat(t.Price, 64)
		vol, _ := strconv.ParseFloat(t.Vol, 64)
		trades = append(trades, venue.Trade{
			ID: id, OrderID: t.OrderTxid, Symbol: symbol, Side: venue.OrderSide(t.Type),
			Price: price, Amount: vol, Time: time.Unix(int64(t.Time), 0),
		})
	}
	return trades, nil
}

func (s *Spec) ParseWithdraw(body []byte, req venue.WithdrawRequest) (venue.WithdrawResult, error) {
	result, err := unwrap(body)
	if err != nil {
		return venue.WithdrawResult{}, err
	}
	var raw struct {
		Refid string `json:"refid"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return venue.WithdrawResult{}, fmt.Errorf("decode kraken withdraw: %w", err)
	}
	return venue.WithdrawResult{ID: raw.Refid, Status: "submitted"}, nil
}

var _ genericx.VenueSpec = (*Spec)(nil)
