// Package main is the entry point for the cross-exchange spread monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/spread-monitor/business/arbitrage"
	arbitrageDI "github.com/fd1az/spread-monitor/business/arbitrage/di"
	"github.com/fd1az/spread-monitor/business/blockchain"
	"github.com/fd1az/spread-monitor/business/notify"
	"github.com/fd1az/spread-monitor/business/pricing"
	"github.com/fd1az/spread-monitor/internal/apm"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/health"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/metrics"
	"github.com/fd1az/spread-monitor/internal/monolith"
	"github.com/fd1az/spread-monitor/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	tuiMode := flag.Bool("tui", false, "Show the terminal dashboard instead of log output")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spread-monitor %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.TUIMode = tuiMode

	// In TUI mode JSON logs would corrupt the screen; warnings and errors
	// go to the dashboard's log panel instead.
	var dash *ui.Dashboard
	var log *logger.Logger
	level := logger.ParseLevel(cfg.App.LogLevel)
	if tuiMode {
		dash = ui.NewDashboard(instrumentSymbols(cfg))
		log = logger.New(io.Discard, level, cfg.App.Name, func(_ context.Context, r slog.Record) {
			if r.Level >= logger.LevelWarn {
				dash.Send(ui.LogMsg{Level: r.Level.String(), Message: r.Message, At: r.Time})
			}
		})
	} else {
		log = logger.New(os.Stderr, level, cfg.App.Name, nil)
	}
	log.Info(ctx, "starting spread monitor",
		"version", version,
		"environment", cfg.App.Environment,
		"instruments", len(cfg.Instruments))

	if cfg.Telemetry.Enabled {
		cleanup, err := setupTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health.Port, version, log)
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
			healthServer = nil
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = healthServer.Stop(sctx)
			}()
		}
	}

	mono := monolith.New(cfg, log, healthServer)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(context.Background(), "cleanup failed", "error", err)
		}
	}()
	if dash != nil {
		mono.Container().Register(arbitrage.DashboardService, dash)
	}

	// Dependency order: notify and arbitrage resolve pricing, pricing
	// resolves blockchain.
	modules := []monolith.Module{
		&blockchain.Module{},
		&pricing.Module{},
		&notify.Module{},
		&arbitrage.Module{},
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	scanner := arbitrageDI.GetScanner(mono.Services())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return scanner.Run(runCtx)
	})
	if dash != nil {
		g.Go(func() error {
			// Quitting the dashboard stops the scanner.
			defer cancel()
			if err := dash.Run(runCtx); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	stats := scanner.Stats()
	log.Info(context.Background(), "spread monitor stopped",
		"ticks", stats.Ticks,
		"opportunities", stats.Opportunities,
		"alerts_sent", stats.AlertsSent,
		"alerts_suppressed", stats.AlertsSuppressed,
		"fatal_errors", stats.FatalErrors)
	return err
}

// setupTelemetry installs the tracer and meter providers and starts the
// Prometheus endpoint. The returned func flushes and stops them.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	tel := cfg.Telemetry
	provider := apm.Provider(tel.TraceProvider)

	tp, err := apm.NewTraceProvider(ctx, log, apm.Options{
		ServiceName: tel.ServiceName,
		Provider:    provider,
		Endpoint:    tel.OTLPEndpoint,
		Headers:     tel.OTLPHeaders,
		Insecure:    strings.HasPrefix(tel.OTLPEndpoint, "http://"),
	})
	if err != nil {
		return nil, err
	}

	mopts := metrics.Options{ServiceName: tel.ServiceName, Prometheus: true}
	if provider == apm.OTLPGRPCProvider {
		mopts.OTLPEndpoint = tel.OTLPEndpoint
		mopts.OTLPHeaders = apm.ParseHeaders(tel.OTLPHeaders)
		mopts.Insecure = strings.HasPrefix(tel.OTLPEndpoint, "http://")
	}
	mp, err := metrics.NewMetricProvider(ctx, mopts)
	if err != nil {
		_ = tp.Stop()
		return nil, err
	}

	srv, err := metrics.ServePrometheusMetrics(mp, tel.PrometheusPort, log)
	if err != nil {
		log.Warn(ctx, "prometheus endpoint disabled", "error", err)
	}

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if srv != nil {
			errs = append(errs, srv.Stop(sctx))
		}
		errs = append(errs, mp.Shutdown(sctx), tp.Stop())
		if err := errors.Join(errs...); err != nil {
			log.Warn(sctx, "telemetry shutdown", "error", err)
		}
	}, nil
}

func instrumentSymbols(cfg *config.Config) []string {
	out := make([]string, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		out[i] = strings.ToUpper(strings.TrimSpace(inst.Symbol))
	}
	return out
}
