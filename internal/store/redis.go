package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateLedger(ctx context.Context, userID string, startingCash decimal.Decimal) (*model.Ledger, error) {
	entry, err := s.primary.CreateLedger(ctx, userID, startingCash)
	if err != nil {
		return nil, err
	}
	s.cacheLedger(ctx, entry)
	return entry, nil
}

// ApplyLedger delegates to the primary, which holds the per-user lock. The
// cache is refreshed with the committed entry afterwards; a concurrent stale
// read is acceptable under the last-write-wins contract.
func (s *CachedStore) ApplyLedger(ctx context.Context, userID string, fn Mutation) (*model.Ledger, error) {
	entry, err := s.primary.ApplyLedger(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	s.cacheLedger(ctx, entry)
	return entry, nil
}

func (s *CachedStore) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := s.primary.InsertTransaction(ctx, txn); err != nil {
		return err
	}
	// Invalidate the transaction list for this user.
	s.rdb.Del(ctx, txnsKey(txn.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	data, err := s.rdb.Get(ctx, ledgerKey(userID)).Bytes()
	if err == nil {
		var entry model.Ledger
		if json.Unmarshal(data, &entry) == nil {
			return &entry, nil
		}
	}

	// Cache miss: read from primary.
	entry, err := s.primary.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheLedger(ctx, entry)
	return entry, nil
}

func (s *CachedStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	data, err := s.rdb.Get(ctx, txnsKey(userID)).Bytes()
	if err == nil {
		var txns []model.Transaction
		if json.Unmarshal(data, &txns) == nil {
			return txns, nil
		}
	}

	// Cache miss.
	txns, err := s.primary.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(txns); err == nil {
		s.rdb.Set(ctx, txnsKey(userID), data, s.ttl)
	}
	return txns, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheLedger(ctx context.Context, entry *model.Ledger) {
	if data, err := json.Marshal(entry); err == nil {
		s.rdb.Set(ctx, ledgerKey(entry.UserID), data, s.ttl)
	}
}

func ledgerKey(uid string) string { return fmt.Sprintf("ledger:%s", uid) }
func txnsKey(uid string) string   { return fmt.Sprintf("transactions:%s", uid) }
