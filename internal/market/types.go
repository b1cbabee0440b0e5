// Package market holds the normalized market data records consumed and produced by the
// analytics engine. Every value here is created fresh per analysis call and carries no
// reference back to its inputs.
package market

// Candle is one OHLCV bar. Timestamp is the bar open time in unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Range returns high minus low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Direction is the bias of a pattern or signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Side is the trade side of a signal or the liquidated side of a liquidation event.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Trend is the SMA based trend classification.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendRanging Trend = "ranging"
)

// Matches reports whether the trend agrees with a trade side.
func (t Trend) Matches(side Side) bool {
	return (t == TrendBullish && side == Long) || (t == TrendBearish && side == Short)
}

// FairValueGap is a three candle imbalance.
type FairValueGap struct {
	Direction Direction `json:"type"`
	LowBound  float64   `json:"start_price"`
	HighBound float64   `json:"end_price"`
	StartTime int64     `json:"start_time"`
	EndTime   int64     `json:"end_time"`
	Filled    bool      `json:"filled"`
	Strength  float64   `json:"strength"`
}

// Contains reports whether price sits inside the gap bounds (inclusive).
func (g FairValueGap) Contains(price float64) bool {
	return price >= g.LowBound && price <= g.HighBound
}

// OrderBlock is the last opposite candle before a strong move.
type OrderBlock struct {
	Direction Direction `json:"type"`
	Price     float64   `json:"price"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Timestamp int64     `json:"timestamp"`
	Volume    float64   `json:"volume"`
	Strength  float64   `json:"strength"`
	Tested    bool      `json:"tested"`
	Broken    bool      `json:"broken"`
}

// Contains reports whether price sits inside the block's high/low range (inclusive).
func (b OrderBlock) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// LiquiditySide marks where resting stops are assumed to sit.
type LiquiditySide string

const (
	BuySide  LiquiditySide = "buy_side"
	SellSide LiquiditySide = "sell_side"
)

// LiquidityZone is a swing high (sell side) or swing low (buy side).
type LiquidityZone struct {
	Side      LiquiditySide `json:"type"`
	Price     float64       `json:"price"`
	Strength  float64       `json:"strength"`
	Timestamp int64         `json:"timestamp"`
}

// ShiftKind classifies a break of a swing point.
type ShiftKind string

const (
	BullishBOS   ShiftKind = "bullish_bos"
	BearishBOS   ShiftKind = "bearish_bos"
	BullishCHOCH ShiftKind = "bullish_choch"
	BearishCHOCH ShiftKind = "bearish_choch"
)

// IsBullish reports whether the shift broke a swing high.
func (k ShiftKind) IsBullish() bool {
	return k == BullishBOS || k == BullishCHOCH
}

// MarketStructureShift is a break of structure (continuation) or change of character (reversal).
type MarketStructureShift struct {
	Kind          ShiftKind `json:"type"`
	Timestamp     int64     `json:"timestamp"`
	Price         float64   `json:"price"`
	Strength      float64   `json:"strength"`
	ReferenceHigh *float64  `json:"previous_high,omitempty"`
	ReferenceLow  *float64  `json:"previous_low,omitempty"`
}

// Evidence is the set of patterns a signal was built from.
type Evidence struct {
	Gaps   []FairValueGap        `json:"fair_value_gaps"`
	Blocks []OrderBlock          `json:"order_blocks"`
	Zones  []LiquidityZone       `json:"liquidity_zones"`
	Shift  *MarketStructureShift `json:"market_structure_shift,omitempty"`
}

// SignalKind names the pattern that triggered a signal.
type SignalKind string

const (
	KindFVGLong  SignalKind = "FVG_LONG"
	KindOBLong   SignalKind = "OB_LONG"
	KindFVGShort SignalKind = "FVG_SHORT"
	KindOBShort  SignalKind = "OB_SHORT"
)

// Signal is a single-timeframe pattern based trade idea. A nil *Signal means no signal.
type Signal struct {
	Symbol          string     `json:"symbol"`
	Timeframe       string     `json:"timeframe"`
	Timestamp       int64      `json:"timestamp"`
	Direction       Side       `json:"direction"`
	Kind            SignalKind `json:"signal_type"`
	Entry           float64    `json:"entry_price"`
	StopLoss        float64    `json:"stop_loss"`
	TP1             float64    `json:"take_profit_1"`
	TP2             float64    `json:"take_profit_2"`
	TP3             float64    `json:"take_profit_3"`
	RiskRewardRatio float64    `json:"risk_reward_ratio"`
	Confidence      float64    `json:"confidence"`
	Evidence        Evidence   `json:"evidence"`
	CurrentPrice    float64    `json:"current_price"`
	Trend           Trend      `json:"trend"`
	Volatility      float64    `json:"volatility"`
}

// MultiTimeframeAnalysis fuses per-timeframe signals.
type MultiTimeframeAnalysis struct {
	Symbol          string             `json:"symbol"`
	Timestamp       int64              `json:"timestamp"`
	Signals         map[string]*Signal `json:"signals"`
	ConfluenceScore float64            `json:"confluence_score"`
	BestSignal      *Signal            `json:"best_signal"`
}

// VolumeSpike is a candle whose volume is a multiple of its trailing average.
type VolumeSpike struct {
	Timestamp   int64   `json:"timestamp"`
	Volume      float64 `json:"volume"`
	AvgVolume   float64 `json:"avg_volume"`
	SpikeRatio  float64 `json:"spike_ratio"`
	PriceChange float64 `json:"price_change"`
}

// PumpDumpKind distinguishes a live pump from a post-pump dump.
type PumpDumpKind string

const (
	Pump PumpDumpKind = "pump"
	Dump PumpDumpKind = "dump"
)

// PumpDumpSignal describes a pump still near its top or a dump off the peak.
type PumpDumpSignal struct {
	Kind               PumpDumpKind `json:"type"`
	Timestamp          int64        `json:"timestamp"`
	StartPrice         float64      `json:"start_price"`
	PeakPrice          float64      `json:"peak_price"`
	CurrentPrice       float64      `json:"current_price"`
	PriceChangePercent float64      `json:"price_change_percent"`
	DropFromPeak       float64      `json:"drop_from_peak"`
	VolumeRatio        float64      `json:"volume_ratio"`
	Confidence         float64      `json:"confidence"`
}

// LiquidationEvent is one forced liquidation; Side is the side that got liquidated.
type LiquidationEvent struct {
	Symbol    string  `json:"symbol,omitempty"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
}

// Notional returns price times quantity.
func (e LiquidationEvent) Notional() float64 {
	return e.Price * e.Quantity
}

// LiquidationCascade summarises a burst of liquidations dominated by one side.
type LiquidationCascade struct {
	Side                Side    `json:"side"`
	Timestamp           int64   `json:"timestamp"`
	Price               float64 `json:"price"`
	TotalLiquidated     float64 `json:"total_liquidated"`
	EventCount          int     `json:"event_count"`
	CascadeStrength     float64 `json:"cascade_strength"`
	ExpectedRetracement float64 `json:"expected_retracement"`
}

// ScalpKind names the trigger of a scalp signal.
type ScalpKind string

const (
	PumpReversal     ScalpKind = "PUMP_REVERSAL"
	DumpReversal     ScalpKind = "DUMP_REVERSAL"
	LiquidationLong  ScalpKind = "LIQUIDATION_LONG"
	LiquidationShort ScalpKind = "LIQUIDATION_SHORT"
)

// ScalpSignal is a short horizon reversal trade idea.
type ScalpSignal struct {
	Symbol              string              `json:"symbol"`
	Timestamp           int64               `json:"timestamp"`
	Kind                ScalpKind           `json:"type"`
	Direction           Side                `json:"direction"`
	Entry               float64             `json:"entry_price"`
	StopLoss            float64             `json:"stop_loss"`
	TakeProfit          float64             `json:"take_profit"`
	TargetProfitPercent float64             `json:"target_profit_percent"`
	MaxHoldSeconds      int                 `json:"max_hold_time"`
	Confidence          float64             `json:"confidence"`
	RiskRewardRatio     float64             `json:"risk_reward_ratio"`
	PumpDump            *PumpDumpSignal     `json:"pump_dump_signal,omitempty"`
	Cascade             *LiquidationCascade `json:"liquidation_cascade,omitempty"`
	VolumeSpike         *VolumeSpike        `json:"volume_spike,omitempty"`
}

// ExchangeQuote is the best bid/ask of one venue.
type ExchangeQuote struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"`
	Volume24h float64 `json:"volume_24h"`
}

// FeeBreakdown lists the fee percentages charged on an arbitrage round trip.
type FeeBreakdown struct {
	BuyFee        float64 `json:"buy_fee"`
	SellFee       float64 `json:"sell_fee"`
	WithdrawalFee float64 `json:"withdrawal_fee"`
	TotalFees     float64 `json:"total_fees"`
}

// ArbitrageOpportunity is a fee adjusted cross venue spread.
type ArbitrageOpportunity struct {
	Symbol         string       `json:"symbol"`
	BuyExchange    string       `json:"buy_exchange"`
	SellExchange   string       `json:"sell_exchange"`
	BuyPrice       float64      `json:"buy_price"`
	SellPrice      float64      `json:"sell_price"`
	GrossProfitPct float64      `json:"profit_percent"`
	NetProfitPct   float64      `json:"net_profit_percent"`
	ProfitUSD      float64      `json:"profit_usd"`
	Fees           FeeBreakdown `json:"fees"`
	Volume24h      float64      `json:"volume_24h"`
	Timestamp      int64        `json:"timestamp"`
	Confidence     float64      `json:"confidence"`
}

// ArbitrageScanResult is the ranked output of one scan.
type ArbitrageScanResult struct {
	ScanID             string                 `json:"scan_id"`
	Timestamp          int64                  `json:"timestamp"`
	TotalOpportunities int                    `json:"total_opportunities"`
	Opportunities      []ArbitrageOpportunity `json:"opportunities"`
	Exchanges          []string               `json:"exchanges"`
	SymbolsScanned     int                    `json:"symbols_scanned"`
}

// PriceLevel is a raw [price, amount] pair as returned by a venue.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// RawOrderBook is one venue's depth snapshot.
type RawOrderBook struct {
	Exchange string       `json:"exchange"`
	Symbol   string       `json:"symbol"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}

// OrderBookLevel is a merged level with the cumulative amount from the best price.
type OrderBookLevel struct {
	Price            float64  `json:"price"`
	Amount           float64  `json:"amount"`
	CumulativeAmount float64  `json:"total"`
	Exchanges        []string `json:"exchanges,omitempty"`
}

// AggregatedOrderBook is the merge of several venues' books.
type AggregatedOrderBook struct {
	Symbol            string           `json:"symbol"`
	Timestamp         int64            `json:"timestamp"`
	Bids              []OrderBookLevel `json:"bids"`
	Asks              []OrderBookLevel `json:"asks"`
	Exchanges         []string         `json:"exchanges"`
	TotalBidLiquidity float64          `json:"total_bid_liquidity"`
	TotalAskLiquidity float64          `json:"total_ask_liquidity"`
}

// BookSide is bid or ask.
type BookSide string

const (
	BidSide BookSide = "bid"
	AskSide BookSide = "ask"
)

// LiquidityCluster groups nearby levels of one side into a zone.
type LiquidityCluster struct {
	Price     float64  `json:"price"`
	Liquidity float64  `json:"liquidity"`
	Side      BookSide `json:"side"`
	Strength  float64  `json:"strength"`
	Exchanges []string `json:"exchanges"`
}

// Sentiment is derived from the bid/ask liquidity ratio.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// LiquidityHeatmap is the full liquidity aggregation output for a symbol.
type LiquidityHeatmap struct {
	Symbol              string              `json:"symbol"`
	Timestamp           int64               `json:"timestamp"`
	CurrentPrice        float64             `json:"current_price"`
	OrderBook           AggregatedOrderBook `json:"order_book"`
	BidClusters         []LiquidityCluster  `json:"bid_clusters"`
	AskClusters         []LiquidityCluster  `json:"ask_clusters"`
	StrongestSupport    float64             `json:"strongest_support"`
	StrongestResistance float64             `json:"strongest_resistance"`
	LiquidityRatio      float64             `json:"liquidity_ratio"`
	Sentiment           Sentiment           `json:"market_sentiment"`
}

// LiquidityLevel is a flattened level for visualisation.
type LiquidityLevel struct {
	Price          float64  `json:"price"`
	Volume         float64  `json:"volume"`
	Side           BookSide `json:"side"`
	PercentFromMid float64  `json:"percent_from_mid"`
}
