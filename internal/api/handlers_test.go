package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-analytics/internal/analysis"
	"market-analytics/internal/events"
	"market-analytics/internal/liquidity"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type fakeICT struct {
	err error
}

func (f *fakeICT) Analyze(_ context.Context, symbol string) (*market.MultiTimeframeAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &market.MultiTimeframeAnalysis{Symbol: symbol, ConfluenceScore: 75}, nil
}

func (f *fakeICT) Signal(_ context.Context, symbol, timeframe string) (*market.Signal, error) {
	if _, err := analysis.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	return nil, f.err
}

type fakeSniper struct{}

func (fakeSniper) Analyze(_ context.Context, symbol string) (*market.ScalpSignal, error) {
	if symbol == "BADUSDT" {
		return nil, fmt.Errorf("wrapped: %w", market.ErrInvalidCandles)
	}
	if symbol == "ETHUSDT" {
		return nil, nil
	}
	return &market.ScalpSignal{Symbol: symbol}, nil
}

type fakeArbitrage struct {
	scanned []string
}

func (f *fakeArbitrage) Scan(_ context.Context, symbols []string) (*market.ArbitrageScanResult, error) {
	f.scanned = symbols
	return &market.ArbitrageScanResult{ScanID: "scan-1", SymbolsScanned: len(symbols)}, nil
}

func (f *fakeArbitrage) Opportunity(_ context.Context, symbol string) (*market.ArbitrageOpportunity, error) {
	return &market.ArbitrageOpportunity{Symbol: symbol}, nil
}

func (f *fakeArbitrage) Symbols() []string { return []string{"BTCUSDT", "ETHUSDT"} }

func (f *fakeArbitrage) Exchanges() []string { return []string{"binance", "okx"} }

type fakeLiquidity struct {
	levels int
}

func (f *fakeLiquidity) Heatmap(_ context.Context, symbol string) (*market.LiquidityHeatmap, error) {
	return nil, liquidity.ErrNoOrderBooks
}

func (f *fakeLiquidity) Levels(_ context.Context, symbol string, n int) ([]market.LiquidityLevel, error) {
	f.levels = n
	return []market.LiquidityLevel{{Price: 100, Side: market.BidSide}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, ict *fakeICT) (*Server, *fakeArbitrage, *fakeLiquidity, *events.EventBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	arb := &fakeArbitrage{}
	liq := &fakeLiquidity{}
	bus := events.NewEventBus()
	srv := NewServer(ctx, ServerConfig{MetricsPath: "/metrics"}, Services{
		ICT:       ict,
		Sniper:    fakeSniper{},
		Arbitrage: arb,
		Liquidity: liq,
		Metrics:   metrics.NewRegistry("test"),
		Bus:       bus,
	}, zerolog.Nop())
	return srv, arb, liq, bus
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// TestHealthEndpoint tests the health payload and the request id header
func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	w, _ := get(t, srv, "/api/health")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "healthy" || response["cache"] != "disabled" {
		t.Errorf("Expected healthy with cache disabled, got %v", response)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}
}

// TestRequestIDPropagated tests that a caller supplied id is echoed
func TestRequestIDPropagated(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("Expected request id abc-123, got %q", got)
	}
}

// TestICTAnalyze tests the success envelope and symbol normalisation
func TestICTAnalyze(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	w, env := get(t, srv, "/api/trading/ict/analyze/btcusdt")

	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("Expected success, got %d %s", w.Code, w.Body.String())
	}
	var data market.MultiTimeframeAnalysis
	json.Unmarshal(env.Data, &data)
	if data.Symbol != "BTCUSDT" || data.ConfluenceScore != 75 {
		t.Errorf("Unexpected analysis %+v", data)
	}
}

// TestICTErrors tests the mapping of errors to status codes
func TestICTErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		want int
	}{
		{"unsupported timeframe", nil, "/api/trading/ict/signal/BTCUSDT/3m", http.StatusBadRequest},
		{"no signal", nil, "/api/trading/ict/signal/BTCUSDT/1h", http.StatusOK},
		{"upstream failure", errors.New("binance GET /api/v3/klines: 503"), "/api/trading/ict/analyze/BTCUSDT", http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, "/api/trading/ict/analyze/BTCUSDT", http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _, _ := newTestServer(t, &fakeICT{err: tt.err})
			w, env := get(t, srv, tt.path)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
			if tt.want != http.StatusOK && (env.Success || env.Error == "") {
				t.Errorf("Expected an error envelope, got %s", w.Body.String())
			}
		})
	}
}

// TestSniperInvalidCandles tests that malformed input is a client error
func TestSniperInvalidCandles(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	w, env := get(t, srv, "/api/trading/sniper/analyze/BADUSDT")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(env.Error, "invalid candle series") {
		t.Errorf("Expected the validation message, got %q", env.Error)
	}
}

// TestSniperScanAll tests that failures and empty results are left out
func TestSniperScanAll(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	_, env := get(t, srv, "/api/trading/sniper/scan-all?symbols=btcusdt,ETHUSDT,BADUSDT")

	var data map[string]market.ScalpSignal
	json.Unmarshal(env.Data, &data)
	if len(data) != 1 {
		t.Fatalf("Expected only BTCUSDT, got %v", data)
	}
	if _, ok := data["BTCUSDT"]; !ok {
		t.Errorf("Expected BTCUSDT in the results, got %v", data)
	}
}

// TestArbitrageScanSymbols tests the symbols query parameter
func TestArbitrageScanSymbols(t *testing.T) {
	srv, arb, _, _ := newTestServer(t, &fakeICT{})

	get(t, srv, "/api/trading/arbitrage/scan?symbols=BTC/USDT,ETHUSDT")
	if len(arb.scanned) != 2 || arb.scanned[0] != "BTC/USDT" {
		t.Errorf("Expected the raw symbol list, got %v", arb.scanned)
	}

	get(t, srv, "/api/trading/arbitrage/scan")
	if arb.scanned != nil {
		t.Errorf("Expected nil symbols for the default scan, got %v", arb.scanned)
	}

	_, env := get(t, srv, "/api/trading/arbitrage/opportunity/eth-usdt")
	if !env.Success {
		t.Error("Expected the opportunity alias route to succeed")
	}
}

// TestLiquidityRoutes tests the heatmap upstream error and the levels parameter
func TestLiquidityRoutes(t *testing.T) {
	srv, _, liq, _ := newTestServer(t, &fakeICT{})

	if w, _ := get(t, srv, "/api/trading/liquidity/heatmap/BTCUSDT"); w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 without order books, got %d", w.Code)
	}

	get(t, srv, "/api/trading/liquidity/levels/BTCUSDT?levels=5")
	if liq.levels != 5 {
		t.Errorf("Expected 5 levels, got %d", liq.levels)
	}
	get(t, srv, "/api/trading/liquidity/levels/BTCUSDT?numLevels=7")
	if liq.levels != 7 {
		t.Errorf("Expected 7 levels, got %d", liq.levels)
	}
	if w, _ := get(t, srv, "/api/trading/liquidity/levels/BTCUSDT?levels=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative levels, got %d", w.Code)
	}
}

// TestMetricsEndpoint tests that request counters are exported
func TestMetricsEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	get(t, srv, "/api/health")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "test_http_requests_total") {
		t.Error("Expected the HTTP request counter in the exposition")
	}
}

// TestUnknownRoute tests the JSON 404
func TestUnknownRoute(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakeICT{})
	w, env := get(t, srv, "/api/nope")
	if w.Code != http.StatusNotFound || env.Success {
		t.Errorf("Expected a 404 envelope, got %d %s", w.Code, w.Body.String())
	}
}

// TestArbitrageWebSocket tests that only arbitrage scans reach /ws/arbitrage
func TestArbitrageWebSocket(t *testing.T) {
	srv, _, _, bus := newTestServer(t, &fakeICT{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/arbitrage"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil || msg["type"] != "CONNECTED" {
		t.Fatalf("Expected the welcome message, got %v, %v", msg, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	bus.PublishHeatmapUpdate("BTCUSDT", 1, 2, 1, "neutral")
	bus.PublishArbitrageScan("scan-9", 3, map[string]int{"total": 3})

	var evt events.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("Expected an event, got %v", err)
	}
	if evt.Type != events.EventArbitrageScan || evt.Data["scan_id"] != "scan-9" {
		t.Errorf("Expected the arbitrage scan event, got %+v", evt)
	}
}
