// Package store defines the persistence interface for ledgers and the
// immutable transaction log. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
)

var (
	// ErrLedgerNotFound is returned when a user has no ledger entry. Post
	// registration this indicates an integrity violation, not a normal miss.
	ErrLedgerNotFound = errors.New("store: ledger not found")

	// ErrLedgerExists is returned when creating a ledger for a user that
	// already has one.
	ErrLedgerExists = errors.New("store: ledger already exists")
)

// Mutation transforms a ledger entry into its next state. It runs under the
// per-user lock, so validation done inside the mutation cannot race with
// another order from the same user. Returning an error aborts the apply and
// leaves the stored entry untouched.
type Mutation func(*model.Ledger) error

// Store is the persistence interface. ApplyLedger guarantees read-modify-
// write atomicity per user; no atomicity is promised across users.
type Store interface {
	// CreateLedger creates a user's ledger with the given starting cash.
	CreateLedger(ctx context.Context, userID string, startingCash decimal.Decimal) (*model.Ledger, error)

	// GetLedger returns a snapshot of a user's ledger.
	GetLedger(ctx context.Context, userID string) (*model.Ledger, error)

	// ApplyLedger atomically applies a mutation to a user's ledger and
	// returns the resulting entry.
	ApplyLedger(ctx context.Context, userID string, fn Mutation) (*model.Ledger, error)

	// InsertTransaction appends an immutable fill record.
	InsertTransaction(ctx context.Context, txn *model.Transaction) error

	// GetTransactionsByUser returns a user's transactions, newest first.
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)
}
