// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Opportunity is a spread between the cheapest and the most expensive
// source for one instrument in one tick.
type Opportunity struct {
	Instrument    string
	BuySource     string
	BuyPrice      decimal.Decimal
	SellSource    string
	SellPrice     decimal.Decimal
	SpreadPercent decimal.Decimal // (sell - buy) / buy * 100
	DetectedAt    time.Time
}

// Triple identifies the opportunity for deduplication.
func (o Opportunity) Triple() Triple {
	return Triple{Instrument: o.Instrument, BuySource: o.BuySource, SellSource: o.SellSource}
}

func (o Opportunity) String() string {
	return fmt.Sprintf("%s buy %s@%s sell %s@%s spread %s%%",
		o.Instrument, o.BuySource, o.BuyPrice, o.SellSource, o.SellPrice, o.SpreadPercent.StringFixed(2))
}

// SpreadPercent computes (sell - buy) / buy * 100. buy must be positive.
func SpreadPercent(buy, sell decimal.Decimal) decimal.Decimal {
	return sell.Sub(buy).Div(buy).Mul(hundred)
}

// Triple is the (instrument, buy source, sell source) key of an alert.
type Triple struct {
	Instrument string
	BuySource  string
	SellSource string
}

// Key renders the triple for use as a store key.
func (t Triple) Key() string {
	return t.Instrument + "|" + t.BuySource + "|" + t.SellSource
}

func (t Triple) String() string {
	return t.Key()
}

// AlertRecord is the last notification sent for a triple.
type AlertRecord struct {
	Triple         Triple
	SpreadBucket   int64
	LastNotifiedAt time.Time
}

// Bucket returns floor(spread / width). A non-positive width is treated as
// one percentage point.
func Bucket(spreadPercent, width decimal.Decimal) int64 {
	if !width.IsPositive() {
		width = decimal.NewFromInt(1)
	}
	return spreadPercent.Div(width).Floor().IntPart()
}
