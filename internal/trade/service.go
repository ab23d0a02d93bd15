package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
	"github.com/tradesim/market-engine/internal/quote"
	"github.com/tradesim/market-engine/internal/store"
)

// Service exposes the trading engine over HTTP.
type Service struct {
	engine       *Engine
	store        store.Store
	feed         *quote.Feed
	startingCash decimal.Decimal
}

// NewService creates the HTTP service. startingCash seeds new ledgers and is
// the baseline for profit/loss reporting.
func NewService(engine *Engine, st store.Store, feed *quote.Feed, startingCash decimal.Decimal) *Service {
	return &Service{
		engine:       engine,
		store:        st,
		feed:         feed,
		startingCash: startingCash,
	}
}

// CreateLedgerRequest is the JSON body for POST /ledgers.
type CreateLedgerRequest struct {
	UserID string `json:"user_id"`
}

// --- HTTP Handlers ---

// CreateLedger handles POST /api/v1/ledgers. Called by the registration
// flow (outside this service) when a new user is created.
func (s *Service) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var req CreateLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	entry, err := s.store.CreateLedger(r.Context(), req.UserID, s.startingCash)
	if err != nil {
		if errors.Is(err, store.ErrLedgerExists) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to create ledger", http.StatusInternalServerError)
		return
	}

	slog.Info("ledger created", "user", req.UserID, "starting_cash", s.startingCash.String())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// CreateOrder handles POST /api/v1/orders — the execution engine entry point.
// Caller identity comes from the X-User-ID header, set by the auth layer in
// front of this service.
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := s.engine.Execute(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, quote.ErrUnknownSymbol):
			writeError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrInvalidOrder):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientShares):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrLedgerIntegrity):
			writeError(w, "ledger integrity violation", http.StatusInternalServerError)
		default:
			writeError(w, "order execution failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txn)
}

// ListQuotes handles GET /api/v1/quotes.
func (s *Service) ListQuotes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.feed.List())
}

// GetQuote handles GET /api/v1/quotes/{symbol}.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	q, err := s.feed.Get(symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// GetTransactions handles GET /api/v1/transactions/{userID}.
// Returns the user's fills, newest first.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txns, err := s.store.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// GetPortfolio handles GET /api/v1/portfolio/{userID}.
// Returns holdings marked to current quote prices plus P&L vs starting cash.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entry, err := s.store.GetLedger(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrLedgerNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.valuePortfolio(entry))
}

// GetDashboard handles GET /api/v1/dashboard/{userID}.
// One-call summary: portfolio value, recent fills, and a market snapshot.
func (s *Service) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	entry, err := s.store.GetLedger(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrLedgerNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	txns, err := s.store.GetTransactionsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}
	if len(txns) > 5 {
		txns = txns[:5]
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	p := s.valuePortfolio(entry)
	resp := map[string]any{
		"total_value":         p.TotalValue,
		"cash_balance":        p.CashBalance,
		"holdings_value":      p.HoldingsValue,
		"profit_loss":         p.ProfitLoss,
		"profit_loss_percent": p.ProfitLossPercent,
		"recent_transactions": txns,
		"market_data":         s.feed.List(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// valuePortfolio marks a ledger to market at current quote prices.
func (s *Service) valuePortfolio(entry *model.Ledger) model.Portfolio {
	holdings := make(map[string]model.Holding, len(entry.Holdings))
	holdingsValue := decimal.Zero

	for sym, qty := range entry.Holdings {
		q, err := s.feed.Get(sym)
		if err != nil {
			// Held symbol missing from the catalog; value it at zero.
			slog.Warn("held symbol has no quote", "symbol", sym)
			continue
		}
		value := q.Price.Mul(decimal.NewFromInt(qty))
		holdings[sym] = model.Holding{
			Quantity:     qty,
			CurrentPrice: q.Price,
			Value:        value,
			Name:         q.Name,
		}
		holdingsValue = holdingsValue.Add(value)
	}

	totalValue := holdingsValue.Add(entry.CashBalance)
	profitLoss := totalValue.Sub(s.startingCash)

	profitLossPct := decimal.Zero
	if s.startingCash.IsPositive() {
		profitLossPct = profitLoss.Div(s.startingCash).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return model.Portfolio{
		UserID:            entry.UserID,
		Holdings:          holdings,
		CashBalance:       entry.CashBalance,
		HoldingsValue:     holdingsValue,
		TotalValue:        totalValue,
		ProfitLoss:        profitLoss,
		ProfitLossPercent: profitLossPct,
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
