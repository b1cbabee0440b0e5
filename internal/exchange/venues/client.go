// Package venues implements read-only quote and depth adapters for the exchanges
// other than Binance. Every venue speaks a slightly different REST dialect over the
// same client.
package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"market-analytics/internal/exchange"
	"market-analytics/internal/market"
)

const defaultTimeout = 10 * time.Second

// dialect describes one venue's public market data API.
type dialect struct {
	name       string
	baseURL    string
	symbol     func(string) string
	tickerPath string
	tickerArgs func(sym string) url.Values
	parseQuote func(body []byte) (tick, error)
	bookPath   func(depth int) string
	bookArgs   func(sym string, depth int) url.Values
	parseBook  func(body []byte) (bids, asks [][]string, err error)
}

// tick is the venue-neutral part of a ticker response.
type tick struct {
	bid, ask, volume float64
	ts               int64
}

var dialects = map[string]dialect{}

func register(d dialect) {
	dialects[d.name] = d
}

// Supported returns the venue names this package can build, sorted.
func Supported() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Client is a REST adapter for one venue.
type Client struct {
	d          dialect
	baseURL    string
	httpClient *http.Client
}

// New creates the adapter for the named venue. An empty baseURL selects the
// production endpoint.
func New(name, baseURL string, timeout time.Duration) (*Client, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", exchange.ErrUnknownExchange, name)
	}
	if baseURL == "" {
		baseURL = d.baseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		d:          d,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Name() string {
	return c.d.name
}

// FetchQuote returns the best bid/ask and 24h quote volume.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error) {
	body, err := c.get(ctx, c.d.tickerPath, c.d.tickerArgs(c.d.symbol(symbol)))
	if err != nil {
		return nil, fmt.Errorf("%s ticker: %w", c.d.name, err)
	}

	t, err := c.d.parseQuote(body)
	if err != nil {
		return nil, fmt.Errorf("%s ticker: %w", c.d.name, err)
	}
	if t.ts == 0 {
		t.ts = time.Now().UnixMilli()
	}

	return &market.ExchangeQuote{
		Exchange:  c.d.name,
		Symbol:    symbol,
		Bid:       t.bid,
		Ask:       t.ask,
		Timestamp: t.ts,
		Volume24h: t.volume,
	}, nil
}

// FetchOrderBook returns up to depth levels per side.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (*market.RawOrderBook, error) {
	if depth <= 0 {
		depth = 100
	}
	body, err := c.get(ctx, c.d.bookPath(depth), c.d.bookArgs(c.d.symbol(symbol), depth))
	if err != nil {
		return nil, fmt.Errorf("%s depth: %w", c.d.name, err)
	}

	bids, asks, err := c.d.parseBook(body)
	if err != nil {
		return nil, fmt.Errorf("%s depth: %w", c.d.name, err)
	}

	return &market.RawOrderBook{
		Exchange: c.d.name,
		Symbol:   symbol,
		Bids:     levels(bids, depth),
		Asks:     levels(asks, depth),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// levels parses [price, amount, ...] rows, skipping malformed ones.
func levels(rows [][]string, limit int) []market.PriceLevel {
	out := make([]market.PriceLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		p, err1 := strconv.ParseFloat(r[0], 64)
		a, err2 := strconv.ParseFloat(r[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, market.PriceLevel{Price: p, Amount: a})
		if len(out) == limit {
			break
		}
	}
	return out
}

func num(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func decode(body []byte, target interface{}) error {
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

// dashed maps BTCUSDT to BTC-USDT.
func dashed(sep string) func(string) string {
	return func(symbol string) string {
		s := strings.ToUpper(symbol)
		for _, quote := range []string{"USDT", "USDC", "BTC", "ETH"} {
			if strings.HasSuffix(s, quote) && len(s) > len(quote) {
				return s[:len(s)-len(quote)] + sep + quote
			}
		}
		return s
	}
}

func plain(symbol string) string {
	return strings.ToUpper(symbol)
}

var _ exchange.Venue = (*Client)(nil)
