// Package arbitrage implements the arbitrage bounded context: spread
// detection, alert deduplication and the scan loop.
package arbitrage

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/spread-monitor/business/arbitrage/di"
	"github.com/fd1az/spread-monitor/business/arbitrage/infra"
	"github.com/fd1az/spread-monitor/business/arbitrage/infra/memstore"
	"github.com/fd1az/spread-monitor/business/arbitrage/infra/redisstore"
	notifyApp "github.com/fd1az/spread-monitor/business/notify/app"
	notifyDI "github.com/fd1az/spread-monitor/business/notify/di"
	pricingDI "github.com/fd1az/spread-monitor/business/pricing/di"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
)

// DashboardService is the registry key of the optional TUI. It holds an
// infra.Sender.
const DashboardService = "dashboard"

const redisDialTimeout = 5 * time.Second

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.AlertStore, func(sr di.ServiceRegistry) app.AlertStore {
		cfg := sr.Get("config").(*config.Config)
		// Records outlive the cooldown so a bucket change is still seen.
		ttl := 2 * cfg.Dedup.Cooldown

		if cfg.Dedup.Store != "redis" {
			return memstore.New(ttl)
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		defer cancel()
		rdb, err := redisstore.Dial(ctx, redisstore.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			panic(apperror.New(apperror.CodeAlertStoreError, apperror.WithCause(err)))
		}
		return redisstore.New(rdb, cfg.Dedup.KeyPrefix, ttl)
	})

	di.RegisterToken(c, arbitrageDI.Deduplicator, func(sr di.ServiceRegistry) *app.Deduplicator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		d, err := app.NewDeduplicator(arbitrageDI.GetAlertStore(sr), app.DedupConfig{
			Cooldown:    cfg.Dedup.Cooldown,
			BucketWidth: cfg.Dedup.BucketWidthDecimal(),
		}, log)
		if err != nil {
			panic(err)
		}
		return d
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.TUIMode && sr.Has(DashboardService) {
			return infra.NewTUIReporter(sr.Get(DashboardService).(infra.Sender))
		}
		return infra.NewConsoleReporter(nil)
	})

	di.RegisterToken(c, arbitrageDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		agg := pricingDI.GetAggregator(sr)

		s, err := app.NewScanner(
			agg,
			pricingDI.GetInstruments(sr),
			arbitrageDI.GetDeduplicator(sr),
			notifyDI.GetNotifier(sr),
			app.ScannerConfig{
				Interval:           cfg.Scan.Interval,
				ThresholdPercent:   cfg.Scan.ThresholdDecimal(),
				FatalBackoffFactor: cfg.Scan.FatalBackoffFactor,
				NotifyTimeout:      notifyBudget(cfg.Notify),
			},
			log,
			app.WithSources(agg.Sources()),
			app.WithReporter(arbitrageDI.GetReporter(sr)),
		)
		if err != nil {
			panic(err)
		}
		return s
	})

	return nil
}

// notifyBudget bounds the startup and shutdown notifications so the last
// retry, backoff included, still fits.
func notifyBudget(cfg config.NotifyConfig) time.Duration {
	return notifyApp.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		SendTimeout:    cfg.SendTimeout,
	}.DeliveryBudget()
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// Startup builds the scanner, wires the store lifecycle and registers the
// health checks. The scan loop itself is started by the caller.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("arbitrage: %v", r)))
		}
	}()

	sr := mono.Services()
	cfg := mono.Config()
	scanner := arbitrageDI.GetScanner(sr)

	switch store := arbitrageDI.GetAlertStore(sr).(type) {
	case *memstore.Store:
		go store.Run(ctx, cfg.Dedup.Cooldown)
	case pinger:
		mono.OnClose(store.Close)
		if hs := mono.Health(); hs != nil {
			hs.RegisterCheck("alert_store", func(ctx context.Context) (bool, string) {
				if err := store.Ping(ctx); err != nil {
					return false, err.Error()
				}
				return true, ""
			})
		}
	}

	if r, ok := arbitrageDI.GetReporter(sr).(*infra.TUIReporter); ok {
		pricingDI.GetSink(sr).Add(r)
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("scanner", scanner.HealthCheck)
	}

	mono.Logger().Info(ctx, "arbitrage module started",
		"dedup_store", cfg.Dedup.Store,
		"cooldown", cfg.Dedup.Cooldown.String(),
		"threshold_percent", cfg.Scan.ThresholdPercent)
	return nil
}
