// Package model defines the core domain types shared across the trading engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides and types accepted by the execution engine.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Quote is the current simulated price and daily range for one symbol.
// Mutated only by the price simulator; DailyLow <= Price <= DailyHigh holds
// at all times.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	DailyHigh decimal.Decimal `json:"daily_high"`
	DailyLow  decimal.Decimal `json:"daily_low"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Ledger is a user's cash balance and share holdings. One per user, created
// at registration, mutated only through Store.ApplyLedger. Holdings never
// contain zero-quantity entries; a position sold down to zero is removed.
type Ledger struct {
	UserID      string           `json:"user_id" db:"user_id"`
	CashBalance decimal.Decimal  `json:"cash_balance" db:"cash_balance"`
	Holdings    map[string]int64 `json:"holdings" db:"holdings"` // symbol → share count
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// the stored entry.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Holdings = make(map[string]int64, len(l.Holdings))
	for sym, qty := range l.Holdings {
		c.Holdings[sym] = qty
	}
	return &c
}

// OrderRequest is the transient order submitted by a user. It is consumed to
// produce a Transaction and never persisted as-is.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	Side       string          `json:"side"`       // "buy" or "sell"
	OrderType  string          `json:"order_type"` // "market" or "limit"
	LimitPrice decimal.Decimal `json:"limit_price,omitempty"`
}

// Transaction is an immutable record of a fill. Once created, these are
// never modified or deleted; one per successful order.
type Transaction struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Side           string          `json:"side" db:"side"`
	Quantity       int64           `json:"quantity" db:"quantity"`
	ExecutionPrice decimal.Decimal `json:"execution_price" db:"execution_price"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Holding is one priced position in a portfolio view.
type Holding struct {
	Quantity     int64           `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Value        decimal.Decimal `json:"value"`
	Name         string          `json:"name"`
}

// Portfolio is the mark-to-market view of a ledger at current quote prices.
type Portfolio struct {
	UserID            string             `json:"user_id"`
	Holdings          map[string]Holding `json:"holdings"`
	CashBalance       decimal.Decimal    `json:"cash_balance"`
	HoldingsValue     decimal.Decimal    `json:"total_holdings_value"`
	TotalValue        decimal.Decimal    `json:"total_value"`
	ProfitLoss        decimal.Decimal    `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal    `json:"profit_loss_percent"`
}
