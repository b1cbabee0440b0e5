// Package arbitrage finds fee-adjusted price differences for the same symbol across
// exchanges.
package arbitrage

import (
	"time"

	"market-analytics/internal/market"

	"github.com/shopspring/decimal"
)

// FeeSchedule holds one exchange's fees in percent of notional.
type FeeSchedule struct {
	Maker      float64 `json:"maker"`
	Taker      float64 `json:"taker"`
	Withdrawal float64 `json:"withdrawal"`
}

// DefaultFee applies to exchanges missing from the fee table.
var DefaultFee = FeeSchedule{Maker: 0.1, Taker: 0.1, Withdrawal: 0.001}

// DefaultFees is the static fee table of the supported exchanges.
func DefaultFees() map[string]FeeSchedule {
	return map[string]FeeSchedule{
		"binance": {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
		"bybit":   {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
		"okx":     {Maker: 0.08, Taker: 0.1, Withdrawal: 0.0004},
		"gateio":  {Maker: 0.15, Taker: 0.15, Withdrawal: 0.001},
		"kucoin":  {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
	}
}

// Config holds the arbitrage scanner configuration
type Config struct {
	Exchanges      []string               `json:"exchanges"`
	Fees           map[string]FeeSchedule `json:"fees"`
	MinProfitPct   float64                `json:"min_profit_percent"`
	MinVolume24h   float64                `json:"min_volume_24h"`
	MinConfidence  float64                `json:"min_confidence"`
	TopN           int                    `json:"top_n"`
	CacheTTL       time.Duration          `json:"cache_ttl"`
	CallTimeout    time.Duration          `json:"call_timeout"`
	DefaultSymbols []string               `json:"default_symbols"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Exchanges:     []string{"binance", "bybit", "okx", "gateio", "kucoin"},
		Fees:          DefaultFees(),
		MinProfitPct:  0.5,
		MinVolume24h:  100000,
		MinConfidence: 60,
		TopN:          20,
		CacheTTL:      5 * time.Second,
		CallTimeout:   10 * time.Second,
		DefaultSymbols: []string{
			"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
			"ADAUSDT", "AVAXUSDT", "DOGEUSDT", "MATICUSDT", "DOTUSDT",
		},
	}
}

// notional is the trade size used for ProfitUSD.
var notional = decimal.NewFromInt(1000)

var hundred = decimal.NewFromInt(100)

// Calculator prices an opportunity from a set of quotes. It is immutable.
type Calculator struct {
	fees         map[string]FeeSchedule
	minProfitPct decimal.Decimal
	minVolume    float64
}

// NewCalculator builds a calculator from the fee table and thresholds of cfg.
func NewCalculator(cfg Config) *Calculator {
	fees := make(map[string]FeeSchedule, len(cfg.Fees))
	for k, v := range cfg.Fees {
		fees[k] = v
	}
	return &Calculator{
		fees:         fees,
		minProfitPct: decimal.NewFromFloat(cfg.MinProfitPct),
		minVolume:    cfg.MinVolume24h,
	}
}

// Fee returns the fee schedule of an exchange, or DefaultFee.
func (c *Calculator) Fee(exchange string) FeeSchedule {
	if f, ok := c.fees[exchange]; ok {
		return f
	}
	return DefaultFee
}

// Calculate pairs the cheapest ask with the richest bid and, when they are on different
// exchanges, returns the opportunity when the spread net of both taker fees and the sell leg's
// withdrawal fee exceeds the minimum. Fewer than two quotes yields nil.
func (c *Calculator) Calculate(symbol string, quotes []market.ExchangeQuote) *market.ArbitrageOpportunity {
	if len(quotes) < 2 {
		return nil
	}

	buy, sell, ok := bestPair(quotes)
	if !ok {
		return nil
	}

	ask := decimal.NewFromFloat(buy.Ask)
	bid := decimal.NewFromFloat(sell.Bid)
	gross := bid.Sub(ask).Div(ask).Mul(hundred)

	buyFee := c.Fee(buy.Exchange)
	sellFee := c.Fee(sell.Exchange)
	totalFees := decimal.NewFromFloat(buyFee.Taker).
		Add(decimal.NewFromFloat(sellFee.Taker)).
		Add(decimal.NewFromFloat(sellFee.Withdrawal))
	net := gross.Sub(totalFees)

	if !net.GreaterThan(c.minProfitPct) {
		return nil
	}

	var volumeSum float64
	var latest int64
	for _, q := range quotes {
		volumeSum += q.Volume24h
		if q.Timestamp > latest {
			latest = q.Timestamp
		}
	}
	avgVolume := volumeSum / float64(len(quotes))
	netPct := net.InexactFloat64()

	return &market.ArbitrageOpportunity{
		Symbol:         symbol,
		BuyExchange:    buy.Exchange,
		SellExchange:   sell.Exchange,
		BuyPrice:       buy.Ask,
		SellPrice:      sell.Bid,
		GrossProfitPct: gross.InexactFloat64(),
		NetProfitPct:   netPct,
		ProfitUSD:      notional.Mul(net).Div(hundred).InexactFloat64(),
		Fees: market.FeeBreakdown{
			BuyFee:        buyFee.Taker,
			SellFee:       sellFee.Taker,
			WithdrawalFee: sellFee.Withdrawal,
			TotalFees:     totalFees.InexactFloat64(),
		},
		Volume24h:  avgVolume,
		Timestamp:  latest,
		Confidence: c.confidence(avgVolume, netPct),
	}
}

func (c *Calculator) confidence(avgVolume, netPct float64) float64 {
	confidence := 50.0
	if avgVolume > c.minVolume*2 {
		confidence += 20
	}
	if avgVolume > c.minVolume*5 {
		confidence += 10
	}
	if netPct > 1 {
		confidence += 15
	}
	if netPct > 2 {
		confidence += 5
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// bestPair returns the quote with the lowest ask and the one with the highest bid,
// the first seen winning ties. Non-positive prices cannot be a leg. When both best
// prices sit on the same exchange there is no cross-exchange trade and ok is false.
func bestPair(quotes []market.ExchangeQuote) (buy, sell market.ExchangeQuote, ok bool) {
	var haveBuy, haveSell bool
	for _, q := range quotes {
		if q.Ask > 0 && (!haveBuy || q.Ask < buy.Ask) {
			buy, haveBuy = q, true
		}
		if q.Bid > 0 && (!haveSell || q.Bid > sell.Bid) {
			sell, haveSell = q, true
		}
	}
	if !haveBuy || !haveSell || buy.Exchange == sell.Exchange {
		return buy, sell, false
	}
	return buy, sell, true
}
