package binance

import "market-analytics/internal/exchange"

// Ensure the adapters implement the engine collaborators
var (
	_ exchange.Venue             = (*Client)(nil)
	_ exchange.CandleSource      = (*Client)(nil)
	_ exchange.LiquidationSource = (*LiquidationStream)(nil)
)
