package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*model.Ledger
	txns    []model.Transaction

	// userMu serializes ApplyLedger per user without blocking other users.
	lockMu sync.Mutex
	userMu map[string]*sync.Mutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]*model.Ledger),
		userMu:  make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	mu, ok := s.userMu[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userMu[userID] = mu
	}
	return mu
}

func (s *MemoryStore) CreateLedger(_ context.Context, userID string, startingCash decimal.Decimal) (*model.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[userID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrLedgerExists, userID)
	}

	entry := &model.Ledger{
		UserID:      userID,
		CashBalance: startingCash,
		Holdings:    make(map[string]int64),
		UpdatedAt:   time.Now().UTC(),
	}
	s.ledgers[userID] = entry
	return entry.Clone(), nil
}

func (s *MemoryStore) GetLedger(_ context.Context, userID string) (*model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.ledgers[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLedgerNotFound, userID)
	}
	return entry.Clone(), nil
}

// ApplyLedger runs fn against a copy of the user's entry under that user's
// lock and commits the result only if fn succeeds.
func (s *MemoryStore) ApplyLedger(_ context.Context, userID string, fn Mutation) (*model.Ledger, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	s.mu.RLock()
	entry, ok := s.ledgers[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLedgerNotFound, userID)
	}

	next := entry.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.ledgers[userID] = next
	s.mu.Unlock()

	return next.Clone(), nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns = append(s.txns, *txn)
	return nil
}

func (s *MemoryStore) GetTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	// Newest first: walk the append-only log backwards.
	for i := len(s.txns) - 1; i >= 0; i-- {
		if s.txns[i].UserID == userID {
			result = append(result, s.txns[i])
		}
	}
	return result, nil
}
