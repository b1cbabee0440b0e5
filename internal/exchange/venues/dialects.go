package venues

import (
	"fmt"
	"net/url"
	"strconv"
)

func init() {
	register(bybit)
	register(okx)
	register(gateio)
	register(kucoin)
}

// Bybit v5 spot market data
var bybit = dialect{
	name:       "bybit",
	baseURL:    "https://api.bybit.com",
	symbol:     plain,
	tickerPath: "/v5/market/tickers",
	tickerArgs: func(sym string) url.Values {
		return url.Values{"category": {"spot"}, "symbol": {sym}}
	},
	parseQuote: func(body []byte) (tick, error) {
		var res struct {
			RetCode int    `json:"retCode"`
			RetMsg  string `json:"retMsg"`
			Time    int64  `json:"time"`
			Result  struct {
				List []struct {
					Bid1Price   string `json:"bid1Price"`
					Ask1Price   string `json:"ask1Price"`
					Turnover24h string `json:"turnover24h"`
				} `json:"list"`
			} `json:"result"`
		}
		if err := decode(body, &res); err != nil {
			return tick{}, err
		}
		if res.RetCode != 0 {
			return tick{}, fmt.Errorf("bybit error %d: %s", res.RetCode, res.RetMsg)
		}
		if len(res.Result.List) == 0 {
			return tick{}, fmt.Errorf("empty ticker list")
		}
		t := res.Result.List[0]
		return tick{bid: num(t.Bid1Price), ask: num(t.Ask1Price), volume: num(t.Turnover24h), ts: res.Time}, nil
	},
	bookPath: func(int) string { return "/v5/market/orderbook" },
	bookArgs: func(sym string, depth int) url.Values {
		if depth > 200 {
			depth = 200
		}
		return url.Values{"category": {"spot"}, "symbol": {sym}, "limit": {strconv.Itoa(depth)}}
	},
	parseBook: func(body []byte) ([][]string, [][]string, error) {
		var res struct {
			RetCode int    `json:"retCode"`
			RetMsg  string `json:"retMsg"`
			Result  struct {
				Bids [][]string `json:"b"`
				Asks [][]string `json:"a"`
			} `json:"result"`
		}
		if err := decode(body, &res); err != nil {
			return nil, nil, err
		}
		if res.RetCode != 0 {
			return nil, nil, fmt.Errorf("bybit error %d: %s", res.RetCode, res.RetMsg)
		}
		return res.Result.Bids, res.Result.Asks, nil
	},
}

// OKX v5 market data; instruments are dash separated
var okx = dialect{
	name:       "okx",
	baseURL:    "https://www.okx.com",
	symbol:     dashed("-"),
	tickerPath: "/api/v5/market/ticker",
	tickerArgs: func(sym string) url.Values {
		return url.Values{"instId": {sym}}
	},
	parseQuote: func(body []byte) (tick, error) {
		var res struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
			Data []struct {
				BidPx     string `json:"bidPx"`
				AskPx     string `json:"askPx"`
				VolCcy24h string `json:"volCcy24h"`
				Ts        string `json:"ts"`
			} `json:"data"`
		}
		if err := decode(body, &res); err != nil {
			return tick{}, err
		}
		if res.Code != "0" {
			return tick{}, fmt.Errorf("okx error %s: %s", res.Code, res.Msg)
		}
		if len(res.Data) == 0 {
			return tick{}, fmt.Errorf("empty ticker data")
		}
		d := res.Data[0]
		ts, _ := strconv.ParseInt(d.Ts, 10, 64)
		return tick{bid: num(d.BidPx), ask: num(d.AskPx), volume: num(d.VolCcy24h), ts: ts}, nil
	},
	bookPath: func(int) string { return "/api/v5/market/books" },
	bookArgs: func(sym string, depth int) url.Values {
		if depth > 400 {
			depth = 400
		}
		return url.Values{"instId": {sym}, "sz": {strconv.Itoa(depth)}}
	},
	parseBook: func(body []byte) ([][]string, [][]string, error) {
		var res struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
			Data []struct {
				Bids [][]string `json:"bids"`
				Asks [][]string `json:"asks"`
			} `json:"data"`
		}
		if err := decode(body, &res); err != nil {
			return nil, nil, err
		}
		if res.Code != "0" {
			return nil, nil, fmt.Errorf("okx error %s: %s", res.Code, res.Msg)
		}
		if len(res.Data) == 0 {
			return nil, nil, fmt.Errorf("empty book data")
		}
		return res.Data[0].Bids, res.Data[0].Asks, nil
	},
}

// Gate.io v4 spot; pairs are underscore separated
var gateio = dialect{
	name:       "gateio",
	baseURL:    "https://api.gateio.ws",
	symbol:     dashed("_"),
	tickerPath: "/api/v4/spot/tickers",
	tickerArgs: func(sym string) url.Values {
		return url.Values{"currency_pair": {sym}}
	},
	parseQuote: func(body []byte) (tick, error) {
		var res []struct {
			HighestBid  string `json:"highest_bid"`
			LowestAsk   string `json:"lowest_ask"`
			QuoteVolume string `json:"quote_volume"`
		}
		if err := decode(body, &res); err != nil {
			return tick{}, err
		}
		if len(res) == 0 {
			return tick{}, fmt.Errorf("empty ticker list")
		}
		return tick{bid: num(res[0].HighestBid), ask: num(res[0].LowestAsk), volume: num(res[0].QuoteVolume)}, nil
	},
	bookPath: func(int) string { return "/api/v4/spot/order_book" },
	bookArgs: func(sym string, depth int) url.Values {
		return url.Values{"currency_pair": {sym}, "limit": {strconv.Itoa(depth)}}
	},
	parseBook: func(body []byte) ([][]string, [][]string, error) {
		var res struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		}
		if err := decode(body, &res); err != nil {
			return nil, nil, err
		}
		return res.Bids, res.Asks, nil
	},
}

// KuCoin v1 market data; only 20 and 100 level snapshots are public
var kucoin = dialect{
	name:       "kucoin",
	baseURL:    "https://api.kucoin.com",
	symbol:     dashed("-"),
	tickerPath: "/api/v1/market/stats",
	tickerArgs: func(sym string) url.Values {
		return url.Values{"symbol": {sym}}
	},
	parseQuote: func(body []byte) (tick, error) {
		var res struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
			Data struct {
				Buy      string `json:"buy"`
				Sell     string `json:"sell"`
				VolValue string `json:"volValue"`
				Time     int64  `json:"time"`
			} `json:"data"`
		}
		if err := decode(body, &res); err != nil {
			return tick{}, err
		}
		if res.Code != "200000" {
			return tick{}, fmt.Errorf("kucoin error %s: %s", res.Code, res.Msg)
		}
		return tick{bid: num(res.Data.Buy), ask: num(res.Data.Sell), volume: num(res.Data.VolValue), ts: res.Data.Time}, nil
	},
	bookPath: func(depth int) string {
		if depth <= 20 {
			return "/api/v1/market/orderbook/level2_20"
		}
		return "/api/v1/market/orderbook/level2_100"
	},
	bookArgs: func(sym string, _ int) url.Values {
		return url.Values{"symbol": {sym}}
	},
	parseBook: func(body []byte) ([][]string, [][]string, error) {
		var res struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
			Data struct {
				Bids [][]string `json:"bids"`
				Asks [][]string `json:"asks"`
			} `json:"data"`
		}
		if err := decode(body, &res); err != nil {
			return nil, nil, err
		}
		if res.Code != "200000" {
			return nil, nil, fmt.Errorf("kucoin error %s: %s", res.Code, res.Msg)
		}
		return res.Data.Bids, res.Data.Asks, nil
	},
}
