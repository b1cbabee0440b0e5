package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"market-analytics/internal/events"
	"market-analytics/internal/market"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultFuturesStreamURL carries the all-market force order stream.
const DefaultFuturesStreamURL = "wss://fstream.binance.com/ws/!forceOrder@arr"

// ForceOrderEvent is a forceOrder message from the futures stream
type ForceOrderEvent struct {
	EventType string         `json:"e"`
	EventTime int64          `json:"E"`
	Order     ForceOrderData `json:"o"`
}

type ForceOrderData struct {
	Symbol       string  `json:"s"`
	Side         string  `json:"S"` // SELL closes a long, BUY closes a short
	OrderType    string  `json:"o"`
	Quantity     float64 `json:"q,string"`
	Price        float64 `json:"p,string"`
	AveragePrice float64 `json:"ap,string"`
	Status       string  `json:"X"`
	TradeTime    int64   `json:"T"`
}

// LiquidationStream keeps the recent liquidations of every symbol seen on the
// force order stream. It reconnects until stopped.
type LiquidationStream struct {
	mu sync.RWMutex

	url       string
	wsConn    *websocket.Conn
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}

	buffers    map[string][]market.LiquidationEvent
	maxPerSym  int
	retention  time.Duration
	reconnects int

	bus    *events.EventBus
	logger zerolog.Logger
	now    func() time.Time
}

// NewLiquidationStream creates a stream client. An empty url selects the production
// futures endpoint; bus may be nil.
func NewLiquidationStream(url string, bus *events.EventBus, logger zerolog.Logger) *LiquidationStream {
	if url == "" {
		url = DefaultFuturesStreamURL
	}
	return &LiquidationStream{
		url:       url,
		buffers:   make(map[string][]market.LiquidationEvent),
		maxPerSym: 1000,
		retention: 30 * time.Minute,
		bus:       bus,
		logger:    logger.With().Str("component", "liquidations").Logger(),
		now:       time.Now,
	}
}

// Start begins the stream connection in the background.
func (s *LiquidationStream) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.connect(ctx)
	s.logger.Info().Str("url", s.url).Msg("Liquidation stream started")
}

// Stop closes the connection and waits for the reader to exit.
func (s *LiquidationStream) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	if s.wsConn != nil {
		s.wsConn.Close()
	}
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info().Msg("Liquidation stream stopped")
}

// IsRunning returns true if the stream is running
func (s *LiquidationStream) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RecentLiquidations returns the liquidations of symbol newer than window, oldest first.
func (s *LiquidationStream) RecentLiquidations(symbol string, window time.Duration) []market.LiquidationEvent {
	cutoff := s.now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := s.buffers[strings.ToUpper(symbol)]
	var out []market.LiquidationEvent
	for _, ev := range buf {
		if ev.Timestamp >= cutoff {
			out = append(out, ev)
		}
	}
	return out
}

func (s *LiquidationStream) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// sleep waits d or until the stream is stopped or ctx is done.
func (s *LiquidationStream) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// connect establishes the WebSocket connection
func (s *LiquidationStream) connect(ctx context.Context) {
	defer close(s.done)

	for !s.stopped() && ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.mu.Lock()
			s.reconnects++
			attempt := s.reconnects
			s.mu.Unlock()

			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Liquidation stream connection failed, retrying in 5s")
			if !s.sleep(ctx, 5*time.Second) {
				return
			}
			continue
		}

		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.wsConn = conn
		s.reconnects = 0
		s.mu.Unlock()

		s.logger.Debug().Msg("Liquidation stream connected")

		// Unblock the reader when ctx ends.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()
		s.readLoop(conn)
		close(readDone)

		if s.stopped() || ctx.Err() != nil {
			return
		}
		s.logger.Warn().Msg("Liquidation stream lost, reconnecting in 3s")
		if !s.sleep(ctx, 3*time.Second) {
			return
		}
	}
}

// readLoop reads messages from the WebSocket
func (s *LiquidationStream) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Msg("Liquidation stream closed normally")
			} else if !s.stopped() {
				s.logger.Debug().Err(err).Msg("Liquidation stream read error")
			}
			return
		}

		s.handleMessage(message)
	}
}

// handleMessage parses one forceOrder message and records it.
func (s *LiquidationStream) handleMessage(message []byte) {
	var event ForceOrderEvent
	if err := json.Unmarshal(message, &event); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to parse force order event")
		return
	}
	if event.EventType != "forceOrder" {
		return
	}

	ev, ok := toLiquidation(event.Order)
	if !ok {
		return
	}
	s.record(ev)
	s.bus.PublishLiquidation(ev.Symbol, string(ev.Side), ev.Price, ev.Quantity)
}

func toLiquidation(o ForceOrderData) (market.LiquidationEvent, bool) {
	var side market.Side
	switch o.Side {
	case "SELL":
		side = market.Long
	case "BUY":
		side = market.Short
	default:
		return market.LiquidationEvent{}, false
	}

	price := o.AveragePrice
	if price <= 0 {
		price = o.Price
	}
	if price <= 0 || o.Quantity <= 0 {
		return market.LiquidationEvent{}, false
	}

	return market.LiquidationEvent{
		Symbol:    o.Symbol,
		Side:      side,
		Price:     price,
		Quantity:  o.Quantity,
		Timestamp: o.TradeTime,
	}, true
}

// record appends to the symbol's buffer, dropping entries past retention or capacity.
func (s *LiquidationStream) record(ev market.LiquidationEvent) {
	cutoff := s.now().Add(-s.retention).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.buffers[ev.Symbol], ev)
	start := 0
	for start < len(buf) && buf[start].Timestamp < cutoff {
		start++
	}
	if len(buf)-start > s.maxPerSym {
		start = len(buf) - s.maxPerSym
	}
	s.buffers[ev.Symbol] = append([]market.LiquidationEvent(nil), buf[start:]...)
}
