package arbitrage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"market-analytics/internal/cache"
	"market-analytics/internal/events"
	"market-analytics/internal/exchange"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// symbolConcurrency bounds how many symbols are priced at once; each symbol already
// fans out to every exchange.
const symbolConcurrency = 4

// Scanner runs the cross-exchange scan.
type Scanner struct {
	cfg        Config
	calculator *Calculator
	venues     []exchange.QuoteFetcher
	store      cache.Store
	metrics    *metrics.Registry
	bus        *events.EventBus
	logger     zerolog.Logger
	now        func() time.Time
}

// NewScanner creates a scanner over the given quote sources. store, m and bus may be nil.
func NewScanner(cfg Config, venues []exchange.QuoteFetcher, store cache.Store, m *metrics.Registry, bus *events.EventBus, logger zerolog.Logger) *Scanner {
	def := DefaultConfig()
	if cfg.Fees == nil {
		cfg.Fees = def.Fees
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if len(cfg.DefaultSymbols) == 0 {
		cfg.DefaultSymbols = def.DefaultSymbols
	}
	if store == nil {
		store = cache.NopStore{}
	}
	return &Scanner{
		cfg:        cfg,
		calculator: NewCalculator(cfg),
		venues:     venues,
		store:      store,
		metrics:    m,
		bus:        bus,
		logger:     logger.With().Str("component", "arbitrage").Logger(),
		now:        time.Now,
	}
}

// Exchanges returns the names of the scanned exchanges.
func (s *Scanner) Exchanges() []string {
	names := make([]string, len(s.venues))
	for i, v := range s.venues {
		names[i] = v.Name()
	}
	return names
}

// Symbols returns the symbols scanned when a caller names none.
func (s *Scanner) Symbols() []string {
	return append([]string(nil), s.cfg.DefaultSymbols...)
}

// Scan prices every symbol on every exchange and returns the opportunities above the
// confidence floor, best net profit first, truncated to TopN. An empty symbol list
// scans the default symbols. Results are cached per symbol set for CacheTTL.
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*market.ArbitrageScanResult, error) {
	symbols = normalizeSymbols(symbols)
	if len(symbols) == 0 {
		symbols = s.cfg.DefaultSymbols
	}

	key := cache.ArbitrageScanKey(digest(symbols))
	return cache.Through(ctx, s.store, key, s.cfg.CacheTTL, s.logger, s.metrics, func(ctx context.Context) (*market.ArbitrageScanResult, error) {
		return s.scan(ctx, symbols)
	})
}

// scan fails only when ctx ends mid-scan, so a truncated result is never cached.
func (s *Scanner) scan(ctx context.Context, symbols []string) (*market.ArbitrageScanResult, error) {
	s.logger.Info().Int("symbols", len(symbols)).Int("exchanges", len(s.venues)).Msg("Scanning arbitrage opportunities")

	results := exchange.FanOut(ctx, exchange.FanOutOptions{MaxConcurrency: symbolConcurrency}, symbols,
		func(sym string) string { return sym },
		func(ctx context.Context, sym string) (*market.ArbitrageOpportunity, error) {
			return s.calculator.Calculate(sym, s.quotes(ctx, sym)), nil
		})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opportunities := make([]market.ArbitrageOpportunity, 0)
	for _, r := range results {
		if r.Value != nil && r.Value.Confidence > s.cfg.MinConfidence {
			opportunities = append(opportunities, *r.Value)
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].NetProfitPct > opportunities[j].NetProfitPct
	})

	total := len(opportunities)
	if len(opportunities) > s.cfg.TopN {
		opportunities = opportunities[:s.cfg.TopN]
	}

	result := &market.ArbitrageScanResult{
		ScanID:             uuid.New().String(),
		Timestamp:          s.now().UnixMilli(),
		TotalOpportunities: total,
		Opportunities:      opportunities,
		Exchanges:          s.Exchanges(),
		SymbolsScanned:     len(symbols),
	}

	s.metrics.SetOpportunities(total)
	for range opportunities {
		s.metrics.SignalEmitted("arbitrage", "spread")
	}
	s.bus.PublishArbitrageScan(result.ScanID, total, result)
	s.logger.Info().Str("scan_id", result.ScanID).Int("opportunities", total).Msg("Arbitrage scan complete")
	return result, nil
}

// Opportunity prices a single symbol without caching or the confidence floor. A nil
// result means no profitable pair.
func (s *Scanner) Opportunity(ctx context.Context, symbol string) (*market.ArbitrageOpportunity, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	quotes := s.quotes(ctx, symbol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.calculator.Calculate(symbol, quotes), nil
}

// quotes fetches symbol from every exchange; failures are logged and dropped.
func (s *Scanner) quotes(ctx context.Context, symbol string) []market.ExchangeQuote {
	results := exchange.FanOut(ctx, exchange.FanOutOptions{CallTimeout: s.cfg.CallTimeout}, s.venues, exchange.QuoteName,
		func(ctx context.Context, v exchange.QuoteFetcher) (*market.ExchangeQuote, error) {
			return v.FetchQuote(ctx, symbol)
		})

	ok, failed := exchange.Successes(results)
	for _, f := range failed {
		l := logging.ExchangeContext(s.logger, f.Exchange, "quote", symbol)
		l.Debug().Err(f.Err).Msg("Quote fetch failed")
	}

	quotes := make([]market.ExchangeQuote, 0, len(ok))
	for _, q := range ok {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(sym, "/", "")))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// digest names a symbol set independent of order.
func digest(symbols []string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:8])
}
