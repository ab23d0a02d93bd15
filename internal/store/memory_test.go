package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
	"github.com/tradesim/market-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestMemoryStore_CreateAndGetLedger(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	entry, err := ms.CreateLedger(ctx, "user1", d(100000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.CashBalance.Equal(d(100000)) {
		t.Errorf("expected starting cash 100000, got %s", entry.CashBalance)
	}
	if len(entry.Holdings) != 0 {
		t.Errorf("expected empty holdings, got %v", entry.Holdings)
	}

	got, err := ms.GetLedger(ctx, "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "user1" {
		t.Errorf("expected user1, got %s", got.UserID)
	}
}

func TestMemoryStore_CreateLedgerDuplicate(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	ms.CreateLedger(ctx, "user1", d(100000))
	if _, err := ms.CreateLedger(ctx, "user1", d(100000)); !errors.Is(err, store.ErrLedgerExists) {
		t.Errorf("expected ErrLedgerExists, got %v", err)
	}
}

func TestMemoryStore_GetLedgerNotFound(t *testing.T) {
	ms := store.NewMemoryStore()

	if _, err := ms.GetLedger(context.Background(), "nobody"); !errors.Is(err, store.ErrLedgerNotFound) {
		t.Errorf("expected ErrLedgerNotFound, got %v", err)
	}
}

func TestMemoryStore_ApplyLedger(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	ms.CreateLedger(ctx, "user1", d(100))

	entry, err := ms.ApplyLedger(ctx, "user1", func(l *model.Ledger) error {
		l.CashBalance = l.CashBalance.Sub(d(40))
		l.Holdings["AAPL"] += 2
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.CashBalance.Equal(d(60)) {
		t.Errorf("expected 60, got %s", entry.CashBalance)
	}
	if entry.Holdings["AAPL"] != 2 {
		t.Errorf("expected 2 AAPL, got %d", entry.Holdings["AAPL"])
	}
	if entry.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestMemoryStore_ApplyLedgerMutationErrorLeavesEntryUntouched(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	ms.CreateLedger(ctx, "user1", d(100))

	boom := errors.New("boom")
	_, err := ms.ApplyLedger(ctx, "user1", func(l *model.Ledger) error {
		l.CashBalance = decimal.Zero
		l.Holdings["AAPL"] = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	entry, _ := ms.GetLedger(ctx, "user1")
	if !entry.CashBalance.Equal(d(100)) {
		t.Errorf("failed mutation should not commit, got cash %s", entry.CashBalance)
	}
	if len(entry.Holdings) != 0 {
		t.Errorf("failed mutation should not commit, got holdings %v", entry.Holdings)
	}
}

// No lost updates: concurrent debits of the same ledger must all be applied.
func TestMemoryStore_ApplyLedgerConcurrent(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	ms.CreateLedger(ctx, "user1", d(1000))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ms.ApplyLedger(ctx, "user1", func(l *model.Ledger) error {
				l.CashBalance = l.CashBalance.Sub(d(1))
				return nil
			})
		}()
	}
	wg.Wait()

	entry, _ := ms.GetLedger(ctx, "user1")
	if !entry.CashBalance.Equal(d(900)) {
		t.Errorf("expected 900 after 100 concurrent debits, got %s", entry.CashBalance)
	}
}

func TestMemoryStore_TransactionsNewestFirst(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ms.InsertTransaction(ctx, &model.Transaction{
			ID:        fmt.Sprintf("txn-%d", i),
			UserID:    "user1",
			Symbol:    "AAPL",
			Side:      model.SideBuy,
			Quantity:  1,
			CreatedAt: time.Now().UTC(),
		})
	}
	ms.InsertTransaction(ctx, &model.Transaction{ID: "other", UserID: "user2"})

	txns, err := ms.GetTransactionsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	if txns[0].ID != "txn-2" || txns[2].ID != "txn-0" {
		t.Errorf("expected newest first, got %s..%s", txns[0].ID, txns[2].ID)
	}
}
