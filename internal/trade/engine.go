// Package trade implements order execution against the quote feed and the
// user ledger, plus the HTTP handlers and websocket hub that surface it.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/metrics"
	"github.com/tradesim/market-engine/internal/model"
	"github.com/tradesim/market-engine/internal/quote"
	"github.com/tradesim/market-engine/internal/store"
)

var (
	// ErrInvalidOrder is returned for malformed order requests (bad side,
	// non-positive quantity, missing limit price, ...).
	ErrInvalidOrder = errors.New("trade: invalid order")

	// ErrInsufficientFunds is returned when a buy exceeds the cash balance.
	ErrInsufficientFunds = errors.New("trade: insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("trade: insufficient shares")

	// ErrLedgerIntegrity is returned when an authenticated user has no
	// ledger entry. This should never happen post-registration; the request
	// fails closed rather than defaulting a ledger into existence.
	ErrLedgerIntegrity = errors.New("trade: ledger integrity violation")
)

// Engine validates and executes orders. Every order fills instantly against
// the current quote; there is no order book.
type Engine struct {
	feed  *quote.Feed
	store store.Store
	pub   quote.Publisher // optional; nil disables fill broadcasts
}

// NewEngine creates an execution engine. Pass nil for pub if broadcasting
// is not needed.
func NewEngine(feed *quote.Feed, st store.Store, pub quote.Publisher) *Engine {
	return &Engine{feed: feed, store: st, pub: pub}
}

// Execute fills an order and returns the resulting transaction.
//
// Market orders fill at the current quote price. Limit orders fill at the
// caller's limit price unconditionally — the mock market never checks
// whether the market price is more favorable. That is a deliberate
// simplification of limit semantics, not a matching engine.
//
// Validation and the ledger mutation happen inside one atomic apply per
// user, so two concurrent orders from the same user cannot both pass
// validation against a balance neither has yet debited.
func (e *Engine) Execute(ctx context.Context, userID string, req model.OrderRequest) (*model.Transaction, error) {
	start := time.Now()

	if err := validateOrder(req); err != nil {
		metrics.OrderRejections.WithLabelValues("invalid").Inc()
		return nil, err
	}

	q, err := e.feed.Get(req.Symbol)
	if err != nil {
		metrics.OrderRejections.WithLabelValues("unknown_symbol").Inc()
		return nil, err
	}

	execPrice := q.Price
	if req.OrderType == model.OrderTypeLimit {
		execPrice = req.LimitPrice
	}
	totalAmount := execPrice.Mul(decimal.NewFromInt(req.Quantity))

	_, err = e.store.ApplyLedger(ctx, userID, func(l *model.Ledger) error {
		switch req.Side {
		case model.SideBuy:
			if l.CashBalance.LessThan(totalAmount) {
				return fmt.Errorf("%w: need %s, have %s",
					ErrInsufficientFunds, totalAmount, l.CashBalance)
			}
			l.CashBalance = l.CashBalance.Sub(totalAmount)
			l.Holdings[req.Symbol] += req.Quantity
		case model.SideSell:
			if l.Holdings[req.Symbol] < req.Quantity {
				return fmt.Errorf("%w: need %d, have %d",
					ErrInsufficientShares, req.Quantity, l.Holdings[req.Symbol])
			}
			l.CashBalance = l.CashBalance.Add(totalAmount)
			l.Holdings[req.Symbol] -= req.Quantity
			if l.Holdings[req.Symbol] == 0 {
				delete(l.Holdings, req.Symbol)
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLedgerNotFound):
			slog.Error("ledger missing for authenticated user", "user", userID)
			metrics.OrderRejections.WithLabelValues("ledger_integrity").Inc()
			return nil, fmt.Errorf("%w: %s", ErrLedgerIntegrity, userID)
		case errors.Is(err, ErrInsufficientFunds):
			metrics.OrderRejections.WithLabelValues("insufficient_funds").Inc()
		case errors.Is(err, ErrInsufficientShares):
			metrics.OrderRejections.WithLabelValues("insufficient_shares").Inc()
		}
		return nil, err
	}

	txn := &model.Transaction{
		ID:             uuid.New().String(),
		UserID:         userID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Quantity:       req.Quantity,
		ExecutionPrice: execPrice,
		TotalAmount:    totalAmount,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.store.InsertTransaction(ctx, txn); err != nil {
		// The ledger mutation has already committed; there is no rollback
		// path. Surface the error so the gap is visible.
		slog.Error("transaction append failed after ledger commit",
			"user", userID, "symbol", req.Symbol, "err", err)
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	slog.Info("order executed",
		"txn_id", txn.ID,
		"user", userID,
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Quantity,
		"price", execPrice.String(),
		"total", totalAmount.String(),
	)

	// Best-effort broadcast; failure is local to the hub and never rolls
	// back the trade.
	if e.pub != nil {
		e.pub.Publish(model.Event{
			Type: model.EventOrderExecuted,
			Data: model.OrderExecutedData{
				Symbol:   req.Symbol,
				Side:     req.Side,
				Quantity: req.Quantity,
				Price:    execPrice.String(),
			},
		})
	}

	metrics.OrdersTotal.WithLabelValues(req.Side).Inc()
	metrics.OrderLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())

	return txn, nil
}

func validateOrder(req model.OrderRequest) error {
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return fmt.Errorf("%w: side must be buy or sell", ErrInvalidOrder)
	}
	switch req.OrderType {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if req.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: limit orders require a positive limit_price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: order_type must be market or limit", ErrInvalidOrder)
	}
	return nil
}
