package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one source's price for one instrument at one instant.
type Quote struct {
	SourceID   string
	Instrument string
	Price      decimal.Decimal
	Timestamp  time.Time
	// Liquidity is an optional size hint: 24h quote volume on a CEX, the
	// bought amount on a DEX.
	Liquidity *decimal.Decimal
}

// NewQuote builds a quote, rejecting non-positive prices.
func NewQuote(sourceID, instrument string, price decimal.Decimal, ts time.Time) (Quote, error) {
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("%s %s: non-positive price %s", sourceID, instrument, price)
	}
	return Quote{
		SourceID:   sourceID,
		Instrument: instrument,
		Price:      price,
		Timestamp:  ts,
	}, nil
}

// WithLiquidity returns a copy carrying the liquidity hint.
func (q Quote) WithLiquidity(l decimal.Decimal) Quote {
	q.Liquidity = &l
	return q
}
