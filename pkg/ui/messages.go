package ui

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRow is one source's price in a PricesMsg.
type QuoteRow struct {
	Source string
	Price  decimal.Decimal
}

// PricesMsg replaces the quotes shown for an instrument.
type PricesMsg struct {
	Instrument string
	Quotes     []QuoteRow
	At         time.Time
}

// OpportunityMsg is a detected spread.
type OpportunityMsg struct {
	Instrument string
	Buy        string
	BuyPrice   string
	Sell       string
	SellPrice  string
	Spread     string
	Notified   bool
	At         time.Time
}

// ScanMsg summarizes a completed scan tick.
type ScanMsg struct {
	TickID        string
	Duration      time.Duration
	Opportunities int
	Alerts        int
	Fatal         int
	NextIn        time.Duration
	At            time.Time
}

// SourceDownMsg reports a source that produced no quote.
type SourceDownMsg struct {
	Source     string
	Instrument string
	Kind       string
	Reason     string
	At         time.Time
}

// LogMsg mirrors a log line.
type LogMsg struct {
	Level   string
	Message string
	At      time.Time
}
