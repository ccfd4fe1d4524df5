package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingApp "github.com/fd1az/spread-monitor/business/pricing/app"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const (
	tracerName = "arbitrage"
	meterName  = "arbitrage"

	defaultInterval      = 10 * time.Second
	defaultBackoffFactor = 1.5
	defaultNotifyTimeout = 30 * time.Second
)

// State is the scanner lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ScannerConfig holds the loop timing and detection threshold.
type ScannerConfig struct {
	Interval         time.Duration
	ThresholdPercent decimal.Decimal
	// FatalBackoffFactor stretches the sleep after a tick with fatal errors.
	FatalBackoffFactor float64
	// NotifyTimeout bounds the startup and shutdown notifications.
	NotifyTimeout time.Duration
}

// Stats are cumulative scanner counters.
type Stats struct {
	Ticks            int64
	FatalErrors      int64
	Opportunities    int64
	AlertsSent       int64
	AlertsSuppressed int64
	LastTickAt       time.Time
}

// ScannerOption customizes a Scanner.
type ScannerOption func(*Scanner)

// WithReporter attaches a display reporter.
func WithReporter(r Reporter) ScannerOption {
	return func(s *Scanner) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithSources lists the source ids for the startup message.
func WithSources(ids []string) ScannerOption {
	return func(s *Scanner) { s.sources = ids }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// Scanner runs aggregate, detect, dedup and notify for every instrument on
// a fixed interval until its context is cancelled.
type Scanner struct {
	agg         pricingApp.PriceAggregator
	instruments []pricingDomain.Instrument
	dedup       *Deduplicator
	notifier    Notifier
	reporter    Reporter
	sources     []string
	cfg         ScannerConfig
	log         logger.LoggerInterface
	now         func() time.Time

	state     atomic.Int32
	startedAt atomic.Int64
	lastTick  atomic.Int64

	ticks            atomic.Int64
	fatalErrors      atomic.Int64
	opportunities    atomic.Int64
	alertsSent       atomic.Int64
	alertsSuppressed atomic.Int64

	tracer       trace.Tracer
	tickCounter  metric.Int64Counter
	fatalCounter metric.Int64Counter
	oppCounter   metric.Int64Counter
	alertCounter metric.Int64Counter
	tickLatency  metric.Float64Histogram
}

// NewScanner creates a Scanner.
func NewScanner(
	agg pricingApp.PriceAggregator,
	instruments []pricingDomain.Instrument,
	dedup *Deduplicator,
	notifier Notifier,
	cfg ScannerConfig,
	log logger.LoggerInterface,
	opts ...ScannerOption,
) (*Scanner, error) {
	switch {
	case agg == nil, dedup == nil, notifier == nil:
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("scanner: aggregator, deduplicator and notifier are required"))
	case len(instruments) == 0:
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("scanner: no instruments"))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.FatalBackoffFactor < 1 {
		cfg.FatalBackoffFactor = defaultBackoffFactor
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}

	s := &Scanner{
		agg:         agg,
		instruments: instruments,
		dedup:       dedup,
		notifier:    notifier,
		reporter:    NopReporter{},
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(meterName)
	var err error
	if s.tickCounter, err = meter.Int64Counter("scanner_ticks_total",
		metric.WithDescription("Completed scan ticks")); err != nil {
		return nil, err
	}
	if s.fatalCounter, err = meter.Int64Counter("scanner_fatal_errors_total",
		metric.WithDescription("Unexpected per-instrument failures")); err != nil {
		return nil, err
	}
	if s.oppCounter, err = meter.Int64Counter("opportunities_total",
		metric.WithDescription("Opportunities at or above threshold")); err != nil {
		return nil, err
	}
	if s.alertCounter, err = meter.Int64Counter("alerts_total",
		metric.WithDescription("Opportunity alerts by outcome")); err != nil {
		return nil, err
	}
	if s.tickLatency, err = meter.Float64Histogram("scanner_tick_duration_ms",
		metric.WithDescription("Scan tick duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return s, nil
}

// Run sends the startup notification and scans until ctx is cancelled.
// A tick in progress is not interrupted: it runs on a context detached from
// ctx and every call inside carries its own timeout. The shutdown
// notification is sent before Run returns.
func (s *Scanner) Run(ctx context.Context) error {
	s.setState(StateIdle)
	s.startedAt.Store(s.now().UnixNano())

	s.notifyDetached(ctx, func(nctx context.Context) {
		s.notifier.NotifyStartup(nctx, s.startupInfo())
	})
	s.log.Info(ctx, "scanner started",
		"instruments", len(s.instruments),
		"interval", s.cfg.Interval.String(),
		"threshold_percent", s.cfg.ThresholdPercent.String())

	for ctx.Err() == nil {
		fatal := s.tick(context.WithoutCancel(ctx))

		wait := s.cfg.Interval
		if fatal > 0 {
			wait = time.Duration(float64(s.cfg.Interval) * s.cfg.FatalBackoffFactor)
			s.log.Warn(ctx, "backing off after fatal errors", "fatal", fatal, "sleep", wait.String())
		}

		s.setState(StateSleeping)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	s.setState(StateStopped)
	reason := "shutdown requested"
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		reason = cause.Error()
	}
	s.log.Info(ctx, "scanner stopping", "reason", reason)
	s.notifyDetached(ctx, func(nctx context.Context) {
		s.notifier.NotifyShutdown(nctx, reason)
	})
	return nil
}

func (s *Scanner) notifyDetached(ctx context.Context, fn func(context.Context)) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()
	fn(nctx)
}

func (s *Scanner) startupInfo() StartupInfo {
	names := make([]string, len(s.instruments))
	for i, inst := range s.instruments {
		names[i] = inst.Symbol
	}
	return StartupInfo{
		Instruments:      names,
		Sources:          s.sources,
		Interval:         s.cfg.Interval,
		ThresholdPercent: s.cfg.ThresholdPercent.String(),
	}
}

// tick scans every instrument once and returns the number of fatal errors.
func (s *Scanner) tick(ctx context.Context) (fatal int) {
	tickID := uuid.NewString()
	start := s.now()
	s.setState(StateScanning)

	ctx, span := s.tracer.Start(ctx, "scanner.tick", trace.WithAttributes(attribute.String("tick_id", tickID)))
	defer span.End()

	report := TickReport{ID: tickID, StartedAt: start, Instruments: len(s.instruments)}

	defer func() {
		if r := recover(); r != nil {
			fatal++
			s.fatal(ctx, tickID, "", newPanicError(r))
		}
		report.Duration = s.now().Sub(start)
		report.Fatal = fatal
		report.NextIn = s.cfg.Interval
		if fatal > 0 {
			report.NextIn = time.Duration(float64(s.cfg.Interval) * s.cfg.FatalBackoffFactor)
			span.SetStatus(codes.Error, fmt.Sprintf("%d fatal", fatal))
		}

		s.ticks.Add(1)
		s.lastTick.Store(s.now().UnixNano())
		s.tickCounter.Add(ctx, 1)
		s.tickLatency.Record(ctx, float64(report.Duration.Microseconds())/1000)
		s.reporter.OnTick(ctx, report)
		s.log.Debug(ctx, "tick done",
			"tick_id", tickID, "duration", report.Duration.String(),
			"opportunities", report.Opportunities, "alerts", report.Alerts, "fatal", fatal)
	}()

	for _, inst := range s.instruments {
		res, err := s.scanInstrument(ctx, inst)
		if err != nil {
			fatal++
			s.fatal(ctx, tickID, inst.Symbol, err)
			continue
		}
		if res.detected {
			report.Opportunities++
		}
		if res.alerted {
			report.Alerts++
		}
	}
	return fatal
}

type scanResult struct {
	detected bool
	alerted  bool
}

// scanInstrument is the isolation boundary for one instrument: an
// aggregator error or a panic comes back as err.
func (s *Scanner) scanInstrument(ctx context.Context, inst pricingDomain.Instrument) (res scanResult, err error) {
	ctx, span := s.tracer.Start(ctx, "scanner.instrument", trace.WithAttributes(attribute.String("instrument", inst.Symbol)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "instrument failed")
		}
	}()

	pm, err := s.agg.Aggregate(ctx, inst)
	if err != nil {
		return res, err
	}
	s.reporter.OnPrices(ctx, pm)

	opp, ok := domain.Detect(pm, s.cfg.ThresholdPercent, s.now())
	if !ok {
		return res, nil
	}
	res.detected = true
	s.opportunities.Add(1)
	s.oppCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("instrument", inst.Symbol)))
	span.SetAttributes(
		attribute.String("buy", opp.BuySource),
		attribute.String("sell", opp.SellSource),
		attribute.String("spread_percent", opp.SpreadPercent.StringFixed(2)))

	notify := s.dedup.ShouldNotify(ctx, opp, opp.DetectedAt)
	if notify {
		delivered := s.notifier.NotifyOpportunity(ctx, inst, opp)
		res.alerted = true
		s.alertsSent.Add(1)
		s.alertCounter.Add(ctx, 1, metric.WithAttributes(append(tripleAttrs(opp.Triple()),
			attribute.Bool("delivered", delivered), attribute.String("outcome", "sent"))...))
		s.log.Info(ctx, "opportunity alerted",
			"instrument", opp.Instrument, "buy", opp.BuySource, "buy_price", opp.BuyPrice.String(),
			"sell", opp.SellSource, "sell_price", opp.SellPrice.String(),
			"spread_percent", opp.SpreadPercent.StringFixed(2), "delivered", delivered)
	} else {
		s.alertsSuppressed.Add(1)
		s.alertCounter.Add(ctx, 1, metric.WithAttributes(append(tripleAttrs(opp.Triple()),
			attribute.String("outcome", "suppressed"))...))
		s.log.Debug(ctx, "opportunity suppressed", "triple", opp.Triple().Key(),
			"spread_percent", opp.SpreadPercent.StringFixed(2))
	}
	s.reporter.OnOpportunity(ctx, opp, notify)
	return res, nil
}

// fatal records an unexpected failure and alerts the operator.
func (s *Scanner) fatal(ctx context.Context, tickID, instrument string, cause error) {
	where := "tick " + tickID
	if instrument != "" {
		where += " instrument " + instrument
	}
	appErr := apperror.New(apperror.CodeSchedulerFatal, apperror.WithCause(cause), apperror.WithContext(where))

	s.fatalErrors.Add(1)
	s.fatalCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("instrument", instrument)))

	args := appErr.LogArgs()
	if p, ok := cause.(*panicError); ok {
		args = append(args, "stack", string(p.stack))
	}
	s.log.Error(ctx, "scan failed", args...)
	s.notifier.NotifyFatal(ctx, appErr)
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

func (s *Scanner) setState(st State) {
	s.state.Store(int32(st))
}

// Stats returns a snapshot of the counters.
func (s *Scanner) Stats() Stats {
	st := Stats{
		Ticks:            s.ticks.Load(),
		FatalErrors:      s.fatalErrors.Load(),
		Opportunities:    s.opportunities.Load(),
		AlertsSent:       s.alertsSent.Load(),
		AlertsSuppressed: s.alertsSuppressed.Load(),
	}
	if ns := s.lastTick.Load(); ns != 0 {
		st.LastTickAt = time.Unix(0, ns)
	}
	return st
}

// HealthCheck is healthy while ticks keep completing. The allowance covers
// three intervals plus one backoff.
func (s *Scanner) HealthCheck(_ context.Context) (bool, string) {
	allowance := 3*s.cfg.Interval + time.Duration(float64(s.cfg.Interval)*s.cfg.FatalBackoffFactor)
	state := s.State()
	if state == StateStopped {
		return false, "stopped"
	}

	ref := s.lastTick.Load()
	if ref == 0 {
		ref = s.startedAt.Load()
		if ref == 0 {
			return false, "not started"
		}
	}
	age := s.now().Sub(time.Unix(0, ref))
	if age > allowance {
		return false, fmt.Sprintf("last tick %s ago", age.Truncate(time.Millisecond))
	}
	return true, state.String()
}

type panicError struct {
	value any
	stack []byte
}

func newPanicError(v any) *panicError {
	return &panicError{value: v, stack: debug.Stack()}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
