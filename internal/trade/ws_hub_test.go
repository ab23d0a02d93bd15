package trade_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tradesim/market-engine/internal/model"
	"github.com/tradesim/market-engine/internal/trade"
)

func recvEvent(t *testing.T, c *trade.Client) model.Event {
	t.Helper()
	select {
	case data, ok := <-c.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	hub := trade.NewHub(8)
	client := hub.Subscribe()
	defer hub.Close()

	hub.Publish(model.Event{Type: "e1"})
	hub.Publish(model.Event{Type: "e2"})

	if ev := recvEvent(t, client); ev.Type != "e1" {
		t.Errorf("expected e1 first, got %s", ev.Type)
	}
	if ev := recvEvent(t, client); ev.Type != "e2" {
		t.Errorf("expected e2 second, got %s", ev.Type)
	}
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := trade.NewHub(8)
	c1 := hub.Subscribe()
	c2 := hub.Subscribe()
	defer hub.Close()

	hub.Publish(model.Event{Type: model.EventPriceUpdate})

	for _, c := range []*trade.Client{c1, c2} {
		if ev := recvEvent(t, c); ev.Type != model.EventPriceUpdate {
			t.Errorf("expected price_update, got %s", ev.Type)
		}
	}
}

// A subscriber that stops draining is dropped instead of blocking the
// publisher or the other subscribers.
func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := trade.NewHub(1)
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	defer hub.Close()

	// Fill the slow client's buffer of 1; the fast client drains as it goes.
	hub.Publish(model.Event{Type: "e1"})
	if ev := recvEvent(t, fast); ev.Type != "e1" {
		t.Errorf("expected e1, got %s", ev.Type)
	}

	// This overflows slow's buffer → slow is dropped; fast is unaffected.
	hub.Publish(model.Event{Type: "e2"})
	if ev := recvEvent(t, fast); ev.Type != "e2" {
		t.Errorf("expected e2, got %s", ev.Type)
	}

	// slow's channel must now be closed after its single buffered event.
	if ev := recvEvent(t, slow); ev.Type != "e1" {
		t.Errorf("expected the buffered e1, got %s", ev.Type)
	}
	select {
	case _, ok := <-slow.Events():
		if ok {
			t.Error("expected slow subscriber's channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("slow subscriber's channel was not closed")
	}

	// Publishing still works for surviving subscribers.
	hub.Publish(model.Event{Type: "e3"})
	if ev := recvEvent(t, fast); ev.Type != "e3" {
		t.Errorf("expected e3, got %s", ev.Type)
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := trade.NewHub(8)
	client := hub.Subscribe()

	hub.Unsubscribe(client)
	hub.Unsubscribe(client) // must not panic on double close

	if _, ok := <-client.Events(); ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Publishing to a hub with no subscribers is a no-op.
	hub.Publish(model.Event{Type: "e1"})
}

func TestHub_CloseReleasesAllClients(t *testing.T) {
	hub := trade.NewHub(8)
	c1 := hub.Subscribe()
	c2 := hub.Subscribe()

	hub.Close()

	for _, c := range []*trade.Client{c1, c2} {
		if _, ok := <-c.Events(); ok {
			t.Error("expected closed channel after hub close")
		}
	}
}
