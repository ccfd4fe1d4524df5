// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// QuoteSource is one exchange or DEX network. FetchQuote returns either a
// quote or a *domain.Unavailable; it must honor ctx.
type QuoteSource interface {
	ID() string
	FetchQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, error)
}

// PriceAggregator collects one tick's quotes for an instrument.
type PriceAggregator interface {
	Aggregate(ctx context.Context, inst domain.Instrument) (domain.PriceMap, error)
}

// UnavailableSink receives each dropped source exactly once per fetch.
type UnavailableSink interface {
	SourceUnavailable(ctx context.Context, instrument string, u *domain.Unavailable)
}

// SinkFunc adapts a function to UnavailableSink.
type SinkFunc func(ctx context.Context, instrument string, u *domain.Unavailable)

func (f SinkFunc) SourceUnavailable(ctx context.Context, instrument string, u *domain.Unavailable) {
	f(ctx, instrument, u)
}
