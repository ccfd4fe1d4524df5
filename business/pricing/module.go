// Package pricing implements the pricing bounded context: quote sources and
// the per-instrument price aggregator.
package pricing

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum"

	blockchainDI "github.com/fd1az/spread-monitor/business/blockchain/di"
	"github.com/fd1az/spread-monitor/business/pricing/app"
	pricingDI "github.com/fd1az/spread-monitor/business/pricing/di"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra/binance"
	"github.com/fd1az/spread-monitor/business/pricing/infra/cex"
	"github.com/fd1az/spread-monitor/business/pricing/infra/uniswap"
	"github.com/fd1az/spread-monitor/business/pricing/infra/zeroex"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
	"github.com/fd1az/spread-monitor/internal/ratelimit"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
// Factories panic on construction errors; Startup turns that into an error.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.Instruments, func(sr di.ServiceRegistry) []domain.Instrument {
		cfg := sr.Get("config").(*config.Config)
		out := make([]domain.Instrument, 0, len(cfg.Instruments))
		for _, ic := range cfg.Instruments {
			inst, err := domain.NewInstrument(ic.Symbol, ic.Contracts, ic.Decimals)
			if err != nil {
				panic(err)
			}
			out = append(out, inst)
		}
		return out
	})

	di.RegisterToken(c, pricingDI.BinanceStream, func(sr di.ServiceRegistry) *binance.Stream {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if !cfg.CEX.BinanceStream.Enabled || !hasVenue(cfg.CEX.Exchanges, "binance") {
			return nil
		}
		var symbols []string
		for _, inst := range pricingDI.GetInstruments(sr) {
			symbols = append(symbols, inst.Base+inst.Quote)
		}
		stream, err := binance.NewStream(binance.StreamConfig{
			URL:          cfg.CEX.BinanceStream.WebSocketURL,
			Symbols:      symbols,
			StaleTimeout: cfg.CEX.BinanceStream.StaleTimeout,
		}, log)
		if err != nil {
			panic(err)
		}
		return stream
	})

	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) []app.QuoteSource {
		sources, err := buildSources(sr)
		if err != nil {
			panic(err)
		}
		return sources
	})

	di.RegisterToken(c, pricingDI.Sink, func(sr di.ServiceRegistry) *app.MultiSink {
		log := sr.Get("logger").(logger.LoggerInterface)
		logSink, err := app.NewLogSink(log)
		if err != nil {
			panic(err)
		}
		return app.NewMultiSink(logSink)
	})

	di.RegisterToken(c, pricingDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		agg, err := app.NewAggregator(pricingDI.GetSources(sr), pricingDI.GetSink(sr), app.AggregatorConfig{
			SourceTimeout:  cfg.Scan.SourceTimeout,
			MaxConcurrency: int64(cfg.Scan.MaxConcurrency),
		})
		if err != nil {
			panic(err)
		}
		return agg
	})

	return nil
}

// buildSources creates the adapters in configured order: exchanges, then
// 0x networks, then uniswap networks.
func buildSources(sr di.ServiceRegistry) ([]app.QuoteSource, error) {
	cfg := sr.Get("config").(*config.Config)
	log := sr.Get("logger").(logger.LoggerInterface)
	networks := sr.Get("networks").(*asset.Registry)

	var sources []app.QuoteSource

	stream := pricingDI.GetBinanceStream(sr)
	for _, name := range cfg.CEX.Exchanges {
		name = strings.ToLower(name)
		var opts []cex.Option
		if name == "binance" && stream != nil {
			opts = append(opts, cex.WithStream(stream))
		}
		a, err := cex.New(name, cex.Config{
			BaseURL:           cfg.CEX.BaseURLs[name],
			RequestsPerMinute: cfg.CEX.RequestsPerMinute,
			Timeout:           cfg.Scan.SourceTimeout,
		}, log, opts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, a)
	}

	if cfg.ZeroEx.Enabled {
		limiter := ratelimit.New("0x", cfg.ZeroEx.RequestsPerMinute)
		for _, name := range cfg.ZeroEx.Networks {
			network, ok := networks.Get(name)
			if !ok {
				return nil, apperror.New(apperror.CodeConfigurationError,
					apperror.WithContext("zeroex: unknown network "+name))
			}
			a, err := zeroex.New(network, zeroex.Config{
				BaseURL: cfg.ZeroEx.BaseURL,
				APIKey:  cfg.ZeroEx.APIKey,
				Timeout: cfg.Scan.SourceTimeout,
				Limiter: limiter,
			}, log)
			if err != nil {
				return nil, err
			}
			sources = append(sources, a)
		}
	}

	if cfg.Uniswap.Enabled {
		chains := blockchainDI.GetChainService(sr)
		caller := func(ctx context.Context, network string) (ethereum.ContractCaller, error) {
			c, err := chains.Client(ctx, network)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		for _, n := range cfg.Uniswap.Networks {
			network, ok := networks.Get(n.Name)
			if !ok {
				return nil, apperror.New(apperror.CodeConfigurationError,
					apperror.WithContext("uniswap: unknown network "+n.Name))
			}
			a, err := uniswap.New(uniswap.Config{
				Network:  network,
				Quoter:   n.QuoterAddressHex(),
				FeeTiers: cfg.Uniswap.FeeTiers,
			}, caller, log)
			if err != nil {
				return nil, err
			}
			sources = append(sources, a)
		}
	}

	return sources, nil
}

func hasVenue(exchanges []string, name string) bool {
	return slices.ContainsFunc(exchanges, func(e string) bool { return strings.EqualFold(e, name) })
}

// Startup resolves the aggregator and starts the optional binance stream.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("pricing: %v", r)))
		}
	}()

	log := mono.Logger()
	agg := pricingDI.GetAggregator(mono.Services())

	if stream := pricingDI.GetBinanceStream(mono.Services()); stream != nil {
		stream.Start(ctx)
		mono.OnClose(stream.Close)
		log.Info(ctx, "binance stream starting")
	}

	log.Info(ctx, "pricing module started",
		"sources", agg.Sources(),
		"instruments", len(pricingDI.GetInstruments(mono.Services())))
	return nil
}
