package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventScalpSignal     EventType = "SCALP_SIGNAL"
	EventArbitrageScan   EventType = "ARBITRAGE_SCAN"
	EventHeatmapUpdate   EventType = "HEATMAP_UPDATE"
	EventLiquidation     EventType = "LIQUIDATION"
	EventBreakerUpdate   EventType = "CIRCUIT_BREAKER_UPDATE"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a pattern signal event
func (eb *EventBus) PublishSignal(symbol, timeframe, direction, signalType string, entry, confidence float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"timeframe":   timeframe,
			"direction":   direction,
			"signal_type": signalType,
			"entry_price": entry,
			"confidence":  confidence,
		},
	})
}

// PublishScalpSignal publishes a scalp signal event
func (eb *EventBus) PublishScalpSignal(symbol, signalType, direction string, entry, confidence float64) {
	eb.Publish(Event{
		Type: EventScalpSignal,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal_type": signalType,
			"direction":   direction,
			"entry_price": entry,
			"confidence":  confidence,
		},
	})
}

// PublishArbitrageScan publishes a completed arbitrage scan. result is sent as-is to
// websocket clients.
func (eb *EventBus) PublishArbitrageScan(scanID string, total int, result interface{}) {
	eb.Publish(Event{
		Type: EventArbitrageScan,
		Data: map[string]interface{}{
			"scan_id":             scanID,
			"total_opportunities": total,
			"result":              result,
		},
	})
}

// PublishHeatmapUpdate publishes a fresh liquidity heatmap summary
func (eb *EventBus) PublishHeatmapUpdate(symbol string, support, resistance, ratio float64, sentiment string) {
	eb.Publish(Event{
		Type: EventHeatmapUpdate,
		Data: map[string]interface{}{
			"symbol":               symbol,
			"strongest_support":    support,
			"strongest_resistance": resistance,
			"liquidity_ratio":      ratio,
			"market_sentiment":     sentiment,
		},
	})
}

// PublishLiquidation publishes a forced liquidation seen on the futures stream
func (eb *EventBus) PublishLiquidation(symbol, side string, price, quantity float64) {
	eb.Publish(Event{
		Type: EventLiquidation,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"side":     side,
			"price":    price,
			"quantity": quantity,
		},
	})
}

// PublishBreakerUpdate publishes an exchange circuit breaker transition
func (eb *EventBus) PublishBreakerUpdate(exchange, from, to string) {
	eb.Publish(Event{
		Type: EventBreakerUpdate,
		Data: map[string]interface{}{
			"exchange": exchange,
			"from":     from,
			"to":       to,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}

	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
