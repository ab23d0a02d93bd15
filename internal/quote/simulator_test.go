package quote_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tradesim/market-engine/internal/model"
	"github.com/tradesim/market-engine/internal/quote"
)

// capturePublisher records published events for inspection.
type capturePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *capturePublisher) Publish(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) snapshot() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events...)
}

func TestSimulator_TickPublishesBatchedUpdate(t *testing.T) {
	feed := quote.NewFeed(testCatalog())
	pub := &capturePublisher{}
	sim := quote.NewSimulator(feed, pub, time.Second, 0.02)

	sim.Tick()

	events := pub.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 batched event per tick, got %d", len(events))
	}
	if events[0].Type != model.EventPriceUpdate {
		t.Errorf("expected %s event, got %s", model.EventPriceUpdate, events[0].Type)
	}

	quotes, ok := events[0].Data.(map[string]model.Quote)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Data)
	}
	if len(quotes) != 2 {
		t.Errorf("expected all symbols in the batch, got %d", len(quotes))
	}
}

func TestSimulator_PriceBoundsHoldOverManyTicks(t *testing.T) {
	feed := quote.NewFeed(testCatalog())
	pub := &capturePublisher{}
	sim := quote.NewSimulator(feed, pub, time.Second, 0.02)

	for i := 0; i < 200; i++ {
		sim.Tick()
	}

	for sym, q := range feed.List() {
		if q.Price.LessThanOrEqual(d(0)) {
			t.Errorf("%s: price must stay positive, got %s", sym, q.Price)
		}
		if q.Price.LessThan(q.DailyLow) || q.Price.GreaterThan(q.DailyHigh) {
			t.Errorf("%s: invariant violated: low=%s price=%s high=%s",
				sym, q.DailyLow, q.Price, q.DailyHigh)
		}
		if q.DailyLow.GreaterThan(q.DailyHigh) {
			t.Errorf("%s: daily_low %s above daily_high %s", sym, q.DailyLow, q.DailyHigh)
		}
	}
}

func TestSimulator_EachTickMovesWithinBound(t *testing.T) {
	feed := quote.NewFeed(testCatalog())
	pub := &capturePublisher{}
	sim := quote.NewSimulator(feed, pub, time.Second, 0.02)

	before := feed.List()
	sim.Tick()
	after := feed.List()

	for sym := range before {
		// |Δ| must be at most maxPct plus a cent of rounding slack.
		maxMove := before[sym].Price.Mul(d(0.02)).Add(d(0.01))
		move := after[sym].Price.Sub(before[sym].Price).Abs()
		if move.GreaterThan(maxMove) {
			t.Errorf("%s moved %s in one tick, bound is %s", sym, move, maxMove)
		}
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	feed := quote.NewFeed(testCatalog())
	pub := &capturePublisher{}
	sim := quote.NewSimulator(feed, pub, time.Millisecond, 0.02)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	// Let a few ticks happen, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop after cancellation")
	}

	if len(pub.snapshot()) == 0 {
		t.Error("expected at least one tick before cancellation")
	}
}
