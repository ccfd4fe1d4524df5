// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra/binance"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator  = di.NewToken[*app.Aggregator]("pricing.Aggregator")
	Instruments = di.NewToken[[]domain.Instrument]("pricing.Instruments")
	// Sink receives every dropped source. Other modules may Add to it.
	Sink = di.NewToken[*app.MultiSink]("pricing.Sink")
)

// Private dependency tokens - internal to pricing module
var (
	Sources = di.NewToken[[]app.QuoteSource]("pricing:sources")
	// BinanceStream is nil when the stream is disabled.
	BinanceStream = di.NewToken[*binance.Stream]("pricing:binanceStream")
)

func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetInstruments(c di.ServiceRegistry) []domain.Instrument {
	return di.GetToken(c, Instruments)
}

func GetSink(c di.ServiceRegistry) *app.MultiSink {
	return di.GetToken(c, Sink)
}

func GetSources(c di.ServiceRegistry) []app.QuoteSource {
	return di.GetToken(c, Sources)
}

func GetBinanceStream(c di.ServiceRegistry) *binance.Stream {
	return di.GetToken(c, BinanceStream)
}
