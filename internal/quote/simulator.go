package quote

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/metrics"
	"github.com/tradesim/market-engine/internal/model"
)

// Publisher delivers events to subscribers. Delivery is best-effort; a
// failed send never propagates back to the simulator.
type Publisher interface {
	Publish(event model.Event)
}

// Simulator perturbs every quote on a fixed interval with a uniform random
// percent change in [-maxPct, +maxPct] and broadcasts the result.
type Simulator struct {
	feed     *Feed
	pub      Publisher
	interval time.Duration
	maxPct   float64
	rng      *rand.Rand
}

// NewSimulator creates a simulator over the given feed. maxPct is the walk
// bound as a fraction (0.02 = ±2% per tick).
func NewSimulator(feed *Feed, pub Publisher, interval time.Duration, maxPct float64) *Simulator {
	return &Simulator{
		feed:     feed,
		pub:      pub,
		interval: interval,
		maxPct:   maxPct,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run ticks until the context is cancelled. Cancellation is only observed
// between ticks, so a tick is never left half-applied.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("price simulator started", "interval", s.interval.String(), "max_pct", s.maxPct)

	for {
		select {
		case <-ctx.Done():
			slog.Info("price simulator stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick applies one random walk step to every symbol, then publishes a single
// batched price_update event. All deltas are applied before anything is
// published, so subscribers never see a partial tick.
func (s *Simulator) Tick() {
	for _, sym := range s.feed.Symbols() {
		pct := decimal.NewFromFloat((s.rng.Float64()*2 - 1) * s.maxPct)
		if _, err := s.feed.ApplyDelta(sym, pct); err != nil {
			slog.Error("apply delta failed", "symbol", sym, "err", err)
		}
	}

	s.pub.Publish(model.Event{
		Type: model.EventPriceUpdate,
		Data: s.feed.List(),
	})
	metrics.SimulatorTicks.Inc()
}
