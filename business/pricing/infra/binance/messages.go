// Package binance keeps a best bid/ask cache fed by Binance's bookTicker
// WebSocket stream.
package binance

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// StreamEvent wraps every message on a combined stream.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64           `json:"u"`
	Symbol   string          `json:"s"`
	BidPrice decimal.Decimal `json:"b"`
	BidQty   decimal.Decimal `json:"B"`
	AskPrice decimal.Decimal `json:"a"`
	AskQty   decimal.Decimal `json:"A"`
}

// BookTickerStream returns the bookTicker stream name for a symbol.
func BookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

// CombinedStreamURL builds /stream?streams=a/b/c on base.
func CombinedStreamURL(base string, symbols []string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = BookTickerStream(s)
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}
