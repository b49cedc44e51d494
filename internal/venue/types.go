// Package venue defines the uniform adapter surface over heterogeneous
// exchange venues: tickers, balances, orders, and the permission model that
// gates write operations. Concrete adapters live in sibling packages
// (genericx, tradeogre, kraken); this package only holds the contract and
// shared value types.
package venue

import "time"

// PermissionLevel is a totally ordered capability granted to a venue
// adapter. Comparisons use the fixed ordering ReadOnly < ReadWrite <
// ReadWriteWithdraw.
type PermissionLevel int

const (
	ReadOnly PermissionLevel = iota
	ReadWrite
	ReadWriteWithdraw
)

func (p PermissionLevel) String() string {
	switch p {
	case ReadOnly:
		return "read_only"
	case ReadWrite:
		return "read_write"
	case ReadWriteWithdraw:
		return "read_write_withdraw"
	default:
		return "unknown"
	}
}

// ParsePermissionLevel parses the wire/config string form. Unknown strings
// default to ReadOnly, the least-privileged level.
func ParsePermissionLevel(s string) PermissionLevel {
	switch s {
	case "read_write":
		return ReadWrite
	case "read_write_withdraw":
		return ReadWriteWithdraw
	default:
		return ReadOnly
	}
}

// Config is the identity and credentials for one venue.
type Config struct {
	VenueID          string            `json:"venue_id"`
	DisplayName      string            `json:"display_name"`
	APIKey           string            `json:"api_key"`
	APISecret        string            `json:"api_secret"`
	Password         *string           `json:"password,omitempty"`
	PermissionLevel  PermissionLevel   `json:"-"`
	PermissionLevelS string            `json:"permission_level"`
	Enabled          bool              `json:"enabled"`
	TestMode         bool              `json:"test_mode"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Normalize fills PermissionLevel from PermissionLevelS after JSON decode,
// and mirrors back the canonical string form.
func (c *Config) Normalize() {
	if c.PermissionLevelS != "" {
		c.PermissionLevel = ParsePermissionLevel(c.PermissionLevelS)
	}
	c.PermissionLevelS = c.PermissionLevel.String()
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	Limit       OrderType = "limit"
	MarketOrder OrderType = "market"
)

// OrderStatus is a terminal-but-observable projection of venue state.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderClosed   OrderStatus = "closed"
	OrderCanceled OrderStatus = "canceled"
)

// Ticker is a top-of-book summary for a symbol. Fields are nullable
// numerics; a well-formed ticker has at least Bid and Ask set.
type Ticker struct {
	Bid         *float64  `json:"bid,omitempty"`
	Ask         *float64  `json:"ask,omitempty"`
	Last        *float64  `json:"last,omitempty"`
	High        *float64  `json:"high,omitempty"`
	Low         *float64  `json:"low,omitempty"`
	BaseVolume  *float64  `json:"base_volume,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Market describes one tradable symbol at a venue.
type Market struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Active bool   `json:"active"`
}

// Order is a request to buy or sell, tracked through venue state.
type Order struct {
	ID        string      `json:"id"`
	VenueID   string      `json:"venue_id"`
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Type      OrderType   `json:"type"`
	Amount    float64     `json:"amount"`
	Price     *float64    `json:"price,omitempty"`
	Status    OrderStatus `json:"status"`
	Filled    float64     `json:"filled"`
	Remaining float64     `json:"remaining"`
	Cost      *float64    `json:"cost,omitempty"`
}

// CreateOrderRequest parameterizes CreateOrder.
type CreateOrderRequest struct {
	Symbol string
	Side   OrderSide
	Type   OrderType
	Amount float64
	Price  *float64
}

// Trade is a single execution reported by a venue.
type Trade struct {
	ID      string    `json:"id"`
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    OrderSide `json:"side"`
	Price   float64   `json:"price"`
	Amount  float64   `json:"amount"`
	Time    time.Time `json:"time"`
}

// AssetBalance is the free/used/total accounting for one asset.
type AssetBalance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// Balance maps asset code to its balance breakdown.
type Balance map[string]AssetBalance

// WithdrawRequest parameterizes Withdraw.
type WithdrawRequest struct {
	Currency string
	Amount   float64
	Address  string
	Tag      *string
}

// WithdrawResult is the venue's acknowledgement of a withdrawal request.
type WithdrawResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
}
