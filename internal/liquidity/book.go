// Package liquidity merges order books from several exchanges into one book and finds
// the price zones where resting liquidity concentrates.
package liquidity

import (
	"sort"

	"market-analytics/internal/market"

	"github.com/shopspring/decimal"
)

type bucket struct {
	amount    float64
	exchanges map[string]bool
}

// Merge sums the amounts of every book per side at prices rounded to priceDecimals.
// Bids come back best (highest) first and asks lowest first, each with its cumulative
// amount from the best price, truncated to displayLevels when positive. Totals cover
// every merged level, not only the displayed ones.
func Merge(symbol string, books []market.RawOrderBook, priceDecimals, displayLevels int) market.AggregatedOrderBook {
	bids := make(map[float64]*bucket)
	asks := make(map[float64]*bucket)
	seen := make(map[string]bool, len(books))

	for _, book := range books {
		seen[book.Exchange] = true
		accumulate(bids, book.Bids, book.Exchange, priceDecimals)
		accumulate(asks, book.Asks, book.Exchange, priceDecimals)
	}

	bidLevels, bidTotal := flatten(bids, true)
	askLevels, askTotal := flatten(asks, false)

	if displayLevels > 0 {
		if len(bidLevels) > displayLevels {
			bidLevels = bidLevels[:displayLevels]
		}
		if len(askLevels) > displayLevels {
			askLevels = askLevels[:displayLevels]
		}
	}

	return market.AggregatedOrderBook{
		Symbol:            symbol,
		Bids:              bidLevels,
		Asks:              askLevels,
		Exchanges:         sortedKeys(seen),
		TotalBidLiquidity: bidTotal,
		TotalAskLiquidity: askTotal,
	}
}

func accumulate(side map[float64]*bucket, levels []market.PriceLevel, exchange string, decimals int) {
	for _, l := range levels {
		if l.Amount <= 0 || l.Price <= 0 {
			continue
		}
		price := decimal.NewFromFloat(l.Price).Round(int32(decimals)).InexactFloat64()
		b, ok := side[price]
		if !ok {
			b = &bucket{exchanges: make(map[string]bool)}
			side[price] = b
		}
		b.amount += l.Amount
		b.exchanges[exchange] = true
	}
}

func flatten(side map[float64]*bucket, descending bool) ([]market.OrderBookLevel, float64) {
	prices := make([]float64, 0, len(side))
	for p := range side {
		prices = append(prices, p)
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}

	levels := make([]market.OrderBookLevel, len(prices))
	var cumulative float64
	for i, p := range prices {
		b := side[p]
		cumulative += b.amount
		levels[i] = market.OrderBookLevel{
			Price:            p,
			Amount:           b.amount,
			CumulativeAmount: cumulative,
			Exchanges:        sortedKeys(b.exchanges),
		}
	}
	return levels, cumulative
}

// MidPrice is the average of the best bid and best ask, or 0 when a side is empty.
func MidPrice(book market.AggregatedOrderBook) float64 {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0
	}
	return (book.Bids[0].Price + book.Asks[0].Price) / 2
}

// Cluster walks levels in book order and groups each level with the current cluster
// when it lies within mid×thresholdPct% of the cluster's first (anchor) price. Strength
// is the cluster's share of sideTotal scaled by 5 and capped at 100. The result is
// sorted strongest first; ties keep book order.
func Cluster(levels []market.OrderBookLevel, side market.BookSide, mid, thresholdPct, sideTotal float64) []market.LiquidityCluster {
	threshold := mid * thresholdPct / 100

	var clusters []market.LiquidityCluster
	var current *market.LiquidityCluster
	var exchanges map[string]bool

	flush := func() {
		if current == nil || current.Liquidity <= 0 {
			return
		}
		current.Exchanges = sortedKeys(exchanges)
		current.Strength = strength(current.Liquidity, sideTotal)
		clusters = append(clusters, *current)
	}

	for _, l := range levels {
		if current != nil && abs(l.Price-current.Price) <= threshold {
			current.Liquidity += l.Amount
			for _, ex := range l.Exchanges {
				exchanges[ex] = true
			}
			continue
		}
		flush()
		current = &market.LiquidityCluster{Price: l.Price, Liquidity: l.Amount, Side: side}
		exchanges = make(map[string]bool, len(l.Exchanges))
		for _, ex := range l.Exchanges {
			exchanges[ex] = true
		}
	}
	flush()

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Strength > clusters[j].Strength
	})
	return clusters
}

func strength(liquidity, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := liquidity / total * 500
	if s > 100 {
		return 100
	}
	return s
}

// Sentiment classifies a bid/ask liquidity ratio.
func Sentiment(ratio float64) market.Sentiment {
	switch {
	case ratio > 1.2:
		return market.SentimentBullish
	case ratio < 0.8:
		return market.SentimentBearish
	default:
		return market.SentimentNeutral
	}
}

// Ratio is bid liquidity over ask liquidity; an empty ask side divides by one.
func Ratio(bidTotal, askTotal float64) float64 {
	if askTotal == 0 {
		return bidTotal
	}
	return bidTotal / askTotal
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
