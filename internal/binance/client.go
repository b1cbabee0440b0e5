// Package binance adapts the Binance REST and futures websocket APIs to the
// exchange collaborators of the analytics engine.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"market-analytics/internal/market"
)

// DefaultBaseURL is the public spot REST endpoint.
const DefaultBaseURL = "https://api.binance.com"

// Client is a read-only market data client. Only public endpoints are used, so no
// credentials are held.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client; an empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return "binance"
}

// GetCandles fetches candlestick data
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var rawKlines [][]interface{}
	if err := c.get(ctx, "/api/v3/klines", params, &rawKlines); err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	candles := make([]market.Candle, 0, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 6 {
			return nil, fmt.Errorf("error parsing klines: row %d has %d fields", i, len(raw))
		}
		openTime, _ := raw[0].(float64)
		candles = append(candles, market.Candle{
			Timestamp: int64(openTime),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
		})
	}

	return candles, nil
}

// bookTicker is the best bid/ask of one symbol
type bookTicker struct {
	Symbol   string  `json:"symbol"`
	BidPrice float64 `json:"bidPrice,string"`
	AskPrice float64 `json:"askPrice,string"`
}

// Ticker24hr represents 24hr ticker price change statistics
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	CloseTime          int64   `json:"closeTime"`
}

// FetchQuote combines the book ticker with the 24h quote volume.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var book bookTicker
	if err := c.get(ctx, "/api/v3/ticker/bookTicker", params, &book); err != nil {
		return nil, fmt.Errorf("error fetching book ticker: %w", err)
	}

	var ticker Ticker24hr
	if err := c.get(ctx, "/api/v3/ticker/24hr", params, &ticker); err != nil {
		return nil, fmt.Errorf("error fetching 24hr ticker: %w", err)
	}

	ts := ticker.CloseTime
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return &market.ExchangeQuote{
		Exchange:  c.Name(),
		Symbol:    symbol,
		Bid:       book.BidPrice,
		Ask:       book.AskPrice,
		Timestamp: ts,
		Volume24h: ticker.QuoteVolume,
	}, nil
}

// depthLimits are the depth sizes the API accepts.
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// FetchOrderBook fetches a depth snapshot. depth is rounded up to an accepted size.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (*market.RawOrderBook, error) {
	limit := depthLimits[len(depthLimits)-1]
	for _, l := range depthLimits {
		if depth <= l {
			limit = l
			break
		}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var raw struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := c.get(ctx, "/api/v3/depth", params, &raw); err != nil {
		return nil, fmt.Errorf("error fetching depth: %w", err)
	}

	return &market.RawOrderBook{
		Exchange: c.Name(),
		Symbol:   symbol,
		Bids:     ParseLevels(raw.Bids),
		Asks:     ParseLevels(raw.Asks),
	}, nil
}

// ParseLevels converts [price, amount] string pairs into price levels.
func ParseLevels(raw [][2]string) []market.PriceLevel {
	levels := make([]market.PriceLevel, 0, len(raw))
	for _, r := range raw {
		levels = append(levels, market.PriceLevel{
			Price:  parseFloat(r[0]),
			Amount: parseFloat(r[1]),
		})
	}
	return levels
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
