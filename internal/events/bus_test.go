package events

import (
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return Event{}
}

// TestPublishReachesTypedAndGlobalSubscribers tests fan-out to both subscriber kinds
func TestPublishReachesTypedAndGlobalSubscribers(t *testing.T) {
	bus := NewEventBus()

	typed := make(chan Event, 1)
	all := make(chan Event, 2)
	bus.Subscribe(EventArbitrageScan, func(e Event) { typed <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishArbitrageScan("scan-1", 3, nil)

	evt := waitFor(t, typed)
	if evt.Type != EventArbitrageScan {
		t.Errorf("Expected ARBITRAGE_SCAN, got %s", evt.Type)
	}
	if evt.Data["scan_id"] != "scan-1" || evt.Data["total_opportunities"] != 3 {
		t.Errorf("Unexpected payload %v", evt.Data)
	}
	if evt.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	if got := waitFor(t, all); got.Type != EventArbitrageScan {
		t.Errorf("Expected global subscriber to see ARBITRAGE_SCAN, got %s", got.Type)
	}
}

// TestTypedSubscriberIgnoresOtherEvents tests type filtering
func TestTypedSubscriberIgnoresOtherEvents(t *testing.T) {
	bus := NewEventBus()

	typed := make(chan Event, 1)
	bus.Subscribe(EventBreakerUpdate, func(e Event) { typed <- e })

	bus.PublishError("scanner", "fetch failed", errors.New("timeout"))
	bus.PublishBreakerUpdate("okx", "closed", "open")

	evt := waitFor(t, typed)
	if evt.Type != EventBreakerUpdate || evt.Data["exchange"] != "okx" {
		t.Errorf("Expected breaker update for okx, got %+v", evt)
	}
}

// TestNilBusDropsEvents tests that publishing on a nil bus is safe
func TestNilBusDropsEvents(t *testing.T) {
	var bus *EventBus
	bus.PublishSignal("BTCUSDT", "1h", "LONG", "FVG_LONG", 100, 70)
}
