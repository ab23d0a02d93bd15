package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary values are stored as NUMERIC for exact decimal precision;
// holdings are stored as JSONB. Per-user atomicity comes from
// SELECT ... FOR UPDATE inside a transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateLedger(ctx context.Context, userID string, startingCash decimal.Decimal) (*model.Ledger, error) {
	holdings, _ := json.Marshal(map[string]int64{})

	var entry model.Ledger
	var cash string
	var rawHoldings []byte

	err := s.pool.QueryRow(ctx,
		`INSERT INTO ledgers (user_id, cash_balance, holdings, updated_at)
		 VALUES ($1, $2::NUMERIC, $3, NOW())
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING user_id, cash_balance::TEXT, holdings, updated_at`,
		userID, startingCash.String(), holdings).
		Scan(&entry.UserID, &cash, &rawHoldings, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrLedgerExists, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("create ledger %s: %w", userID, err)
	}

	entry.CashBalance, _ = decimal.NewFromString(cash)
	if err := json.Unmarshal(rawHoldings, &entry.Holdings); err != nil {
		return nil, fmt.Errorf("create ledger %s: decode holdings: %w", userID, err)
	}
	return &entry, nil
}

func (s *PostgresStore) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	return scanLedger(ctx, s.pool, userID, false)
}

// ApplyLedger locks the user's row, applies fn, and writes the result back
// in one database transaction. A mutation error rolls everything back.
func (s *PostgresStore) ApplyLedger(ctx context.Context, userID string, fn Mutation) (*model.Ledger, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply ledger %s: begin: %w", userID, err)
	}
	defer tx.Rollback(ctx)

	entry, err := scanLedger(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	if err := fn(entry); err != nil {
		return nil, err
	}

	holdings, err := json.Marshal(entry.Holdings)
	if err != nil {
		return nil, fmt.Errorf("apply ledger %s: encode holdings: %w", userID, err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE ledgers
		 SET cash_balance = $2::NUMERIC, holdings = $3, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING updated_at`,
		userID, entry.CashBalance.String(), holdings).
		Scan(&entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("apply ledger %s: update: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("apply ledger %s: commit: %w", userID, err)
	}
	return entry, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, symbol, side, quantity, execution_price, total_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		t.ID, t.UserID, t.Symbol, t.Side, t.Quantity,
		t.ExecutionPrice.String(), t.TotalAmount.String(),
		t.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, symbol, side, quantity,
		        execution_price::TEXT, total_amount::TEXT, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var priceS, amountS string

		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Side, &t.Quantity,
			&priceS, &amountS, &t.CreatedAt); err != nil {
			return nil, err
		}

		t.ExecutionPrice, _ = decimal.NewFromString(priceS)
		t.TotalAmount, _ = decimal.NewFromString(amountS)

		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// querier covers both pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLedger(ctx context.Context, q querier, userID string, forUpdate bool) (*model.Ledger, error) {
	query := `SELECT user_id, cash_balance::TEXT, holdings, updated_at
	          FROM ledgers WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var entry model.Ledger
	var cash string
	var rawHoldings []byte

	err := q.QueryRow(ctx, query, userID).
		Scan(&entry.UserID, &cash, &rawHoldings, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrLedgerNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger %s: %w", userID, err)
	}

	entry.CashBalance, _ = decimal.NewFromString(cash)
	if err := json.Unmarshal(rawHoldings, &entry.Holdings); err != nil {
		return nil, fmt.Errorf("get ledger %s: decode holdings: %w", userID, err)
	}
	if entry.Holdings == nil {
		entry.Holdings = make(map[string]int64)
	}
	return &entry, nil
}
