package cex

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// errNotListed is returned by decoders when the venue answered but does
// not trade the pair.
var errNotListed = errors.New("pair not listed")

// errVenue marks an error code reported inside a well-formed response.
var errVenue = errors.New("venue error")

type ticker struct {
	last   decimal.Decimal
	volume decimal.Decimal
}

// venue describes one exchange's public ticker endpoint.
type venue struct {
	name    string
	baseURL string
	path    string
	param   string
	// query holds fixed parameters sent with every request.
	query  map[string]string
	symbol func(base, quote string) string
	decode func(body []byte) (ticker, error)
	// notListed inspects an error response body.
	notListed func(status int, body []byte) bool
}

func joined(sep string) func(base, quote string) string {
	return func(base, quote string) string { return base + sep + quote }
}

var venues = map[string]venue{
	"binance": {
		name:      "binance",
		baseURL:   "https://api.binance.com",
		path:      "/api/v3/ticker/24hr",
		param:     "symbol",
		symbol:    joined(""),
		decode:    decodeBinance,
		notListed: binanceInvalidSymbol,
	},
	"mexc": {
		name:      "mexc",
		baseURL:   "https://api.mexc.com",
		path:      "/api/v3/ticker/24hr",
		param:     "symbol",
		symbol:    joined(""),
		decode:    decodeBinance,
		notListed: binanceInvalidSymbol,
	},
	"bybit": {
		name:    "bybit",
		baseURL: "https://api.bybit.com",
		path:    "/v5/market/tickers",
		param:   "symbol",
		query:   map[string]string{"category": "spot"},
		symbol:  joined(""),
		decode:  decodeBybit,
	},
	"okx": {
		name:    "okx",
		baseURL: "https://www.okx.com",
		path:    "/api/v5/market/ticker",
		param:   "instId",
		symbol:  joined("-"),
		decode:  decodeOKX,
		notListed: func(_ int, body []byte) bool {
			var r struct {
				Code string `json:"code"`
			}
			return json.Unmarshal(body, &r) == nil && r.Code == "51001"
		},
	},
	"gate": {
		name:    "gate",
		baseURL: "https://api.gateio.ws",
		path:    "/api/v4/spot/tickers",
		param:   "currency_pair",
		symbol:  joined("_"),
		decode:  decodeGate,
		notListed: func(_ int, body []byte) bool {
			var r struct {
				Label string `json:"label"`
			}
			return json.Unmarshal(body, &r) == nil && r.Label == "INVALID_CURRENCY_PAIR"
		},
	},
	"kucoin": {
		name:    "kucoin",
		baseURL: "https://api.kucoin.com",
		path:    "/api/v1/market/stats",
		param:   "symbol",
		symbol:  joined("-"),
		decode:  decodeKucoin,
	},
	"bitget": {
		name:    "bitget",
		baseURL: "https://api.bitget.com",
		path:    "/api/v2/spot/market/tickers",
		param:   "symbol",
		symbol:  joined(""),
		decode:  decodeBitget,
		notListed: func(_ int, body []byte) bool {
			var r struct {
				Code string `json:"code"`
			}
			return json.Unmarshal(body, &r) == nil && r.Code == "40034"
		},
	},
	"huobi": {
		name:    "huobi",
		baseURL: "https://api.huobi.pro",
		path:    "/market/detail/merged",
		param:   "symbol",
		symbol: func(base, quote string) string {
			return strings.ToLower(base + quote)
		},
		decode: decodeHuobi,
	},
}

// Venues returns the supported exchange names, sorted.
func Venues() []string {
	names := make([]string, 0, len(venues))
	for n := range venues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func binanceInvalidSymbol(_ int, body []byte) bool {
	var r struct {
		Code int `json:"code"`
	}
	return json.Unmarshal(body, &r) == nil && r.Code == -1121
}

func decodeBinance(body []byte) (ticker, error) {
	var r struct {
		LastPrice   decimal.Decimal `json:"lastPrice"`
		QuoteVolume decimal.Decimal `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	return ticker{last: r.LastPrice, volume: r.QuoteVolume}, nil
}

func decodeBybit(body []byte) (ticker, error) {
	var r struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				LastPrice   decimal.Decimal `json:"lastPrice"`
				Turnover24h decimal.Decimal `json:"turnover24h"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	switch {
	case r.RetCode == 10001:
		return ticker{}, fmt.Errorf("%w: %s", errNotListed, r.RetMsg)
	case r.RetCode != 0:
		return ticker{}, fmt.Errorf("%w: bybit retCode %d: %s", errVenue, r.RetCode, r.RetMsg)
	case len(r.Result.List) == 0:
		return ticker{}, errNotListed
	}
	t := r.Result.List[0]
	return ticker{last: t.LastPrice, volume: t.Turnover24h}, nil
}

func decodeOKX(body []byte) (ticker, error) {
	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Last      decimal.Decimal `json:"last"`
			VolCcy24h decimal.Decimal `json:"volCcy24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	switch {
	case r.Code == "51001":
		return ticker{}, fmt.Errorf("%w: %s", errNotListed, r.Msg)
	case r.Code != "0":
		return ticker{}, fmt.Errorf("%w: okx code %s: %s", errVenue, r.Code, r.Msg)
	case len(r.Data) == 0:
		return ticker{}, errNotListed
	}
	return ticker{last: r.Data[0].Last, volume: r.Data[0].VolCcy24h}, nil
}

func decodeGate(body []byte) (ticker, error) {
	var r []struct {
		Last        decimal.Decimal `json:"last"`
		QuoteVolume decimal.Decimal `json:"quote_volume"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	if len(r) == 0 {
		return ticker{}, errNotListed
	}
	return ticker{last: r[0].Last, volume: r[0].QuoteVolume}, nil
}

func decodeKucoin(body []byte) (ticker, error) {
	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Last     *decimal.Decimal `json:"last"`
			VolValue decimal.Decimal  `json:"volValue"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	if r.Code != "200000" {
		return ticker{}, fmt.Errorf("%w: kucoin code %s: %s", errVenue, r.Code, r.Msg)
	}
	// Unknown symbols come back as a stats object full of nulls.
	if r.Data.Last == nil {
		return ticker{}, errNotListed
	}
	return ticker{last: *r.Data.Last, volume: r.Data.VolValue}, nil
}

func decodeBitget(body []byte) (ticker, error) {
	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			LastPr      decimal.Decimal `json:"lastPr"`
			QuoteVolume decimal.Decimal `json:"quoteVolume"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	switch {
	case r.Code != "00000":
		return ticker{}, fmt.Errorf("%w: bitget code %s: %s", errVenue, r.Code, r.Msg)
	case len(r.Data) == 0:
		return ticker{}, errNotListed
	}
	return ticker{last: r.Data[0].LastPr, volume: r.Data[0].QuoteVolume}, nil
}

func decodeHuobi(body []byte) (ticker, error) {
	var r struct {
		Status  string `json:"status"`
		ErrCode string `json:"err-code"`
		ErrMsg  string `json:"err-msg"`
		Tick    struct {
			Close decimal.Decimal `json:"close"`
			Vol   decimal.Decimal `json:"vol"`
		} `json:"tick"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ticker{}, err
	}
	if r.Status != "ok" {
		if r.ErrCode == "invalid-parameter" {
			return ticker{}, fmt.Errorf("%w: %s", errNotListed, r.ErrMsg)
		}
		return ticker{}, fmt.Errorf("%w: huobi %s: %s", errVenue, r.ErrCode, r.ErrMsg)
	}
	return ticker{last: r.Tick.Close, volume: r.Tick.Vol}, nil
}
