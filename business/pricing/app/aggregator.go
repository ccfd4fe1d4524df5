package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"

	defaultSourceTimeout = 5 * time.Second
)

// AggregatorConfig holds fan-out limits.
type AggregatorConfig struct {
	SourceTimeout time.Duration
	// MaxConcurrency caps in-flight fetches across all Aggregate calls.
	MaxConcurrency int64
}

// Aggregator fetches every configured source concurrently and keeps the
// quotes that arrive within the source timeout.
type Aggregator struct {
	sources []QuoteSource
	timeout time.Duration
	sem     *semaphore.Weighted
	sink    UnavailableSink

	tracer       trace.Tracer
	fetchLatency metric.Float64Histogram
	quotesTotal  metric.Int64Counter
}

var _ PriceAggregator = (*Aggregator)(nil)

// NewAggregator creates an Aggregator over sources in the given order.
func NewAggregator(sources []QuoteSource, sink UnavailableSink, cfg AggregatorConfig) (*Aggregator, error) {
	if len(sources) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no quote sources"))
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s.ID()] {
			return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("duplicate source "+s.ID()))
		}
		seen[s.ID()] = true
	}

	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = int64(len(sources))
	}
	if sink == nil {
		sink = SinkFunc(func(context.Context, string, *domain.Unavailable) {})
	}

	meter := otel.Meter(meterName)
	fetchLatency, err := meter.Float64Histogram("quote_fetch_latency_ms",
		metric.WithDescription("Per-source quote fetch latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	quotesTotal, err := meter.Int64Counter("quotes_total",
		metric.WithDescription("Quotes fetched, by source and outcome"))
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		sources:      sources,
		timeout:      timeout,
		sem:          semaphore.NewWeighted(limit),
		sink:         sink,
		tracer:       otel.Tracer(tracerName),
		fetchLatency: fetchLatency,
		quotesTotal:  quotesTotal,
	}, nil
}

// Sources returns the source ids in configured order.
func (a *Aggregator) Sources() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ID()
	}
	return ids
}

type fetchResult struct {
	quote domain.Quote
	err   error
}

// Aggregate runs one fetch per source and waits for all of them. Failed
// sources are reported to the sink and left out of the map. The returned
// error is reserved for unexpected failures such as a panicking adapter.
func (a *Aggregator) Aggregate(ctx context.Context, inst domain.Instrument) (domain.PriceMap, error) {
	ctx, span := a.tracer.Start(ctx, "pricing.aggregate",
		trace.WithAttributes(attribute.String("instrument", inst.Symbol)))
	defer span.End()

	results := make([]fetchResult, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			q, err := a.fetch(gctx, src, inst)
			var panicErr *sourcePanic
			if errors.As(err, &panicErr) {
				return err
			}
			results[i] = fetchResult{quote: q, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source panicked")
		return domain.PriceMap{}, apperror.New(apperror.CodeAggregationFailed,
			apperror.WithCause(err), apperror.WithContext(inst.Symbol))
	}

	pm := domain.NewPriceMap(inst.Symbol)
	for i, r := range results {
		src := a.sources[i].ID()
		if r.err != nil {
			u, ok := domain.AsUnavailable(r.err)
			if !ok {
				u = domain.NewUnavailable(src, domain.KindTransport, "unclassified error", r.err)
			}
			a.quotesTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("source", src), attribute.String("outcome", u.Kind.String())))
			a.sink.SourceUnavailable(ctx, inst.Symbol, u)
			continue
		}
		if err := pm.Add(r.quote); err != nil {
			u := domain.NewUnavailable(src, domain.KindParseError, "rejected quote", err)
			a.quotesTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("source", src), attribute.String("outcome", u.Kind.String())))
			a.sink.SourceUnavailable(ctx, inst.Symbol, u)
			continue
		}
		a.quotesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", src), attribute.String("outcome", "ok")))
	}

	span.SetAttributes(attribute.Int("quotes", pm.Len()), attribute.Int("sources", len(a.sources)))
	return pm, nil
}

type sourcePanic struct {
	source string
	value  any
	stack  []byte
}

func (p *sourcePanic) Error() string {
	return fmt.Sprintf("source %s panicked: %v", p.source, p.value)
}

// fetch runs one source under the source timeout. The call runs on its own
// goroutine so a source that ignores ctx still cannot hold the tick past
// the timeout.
func (a *Aggregator) fetch(ctx context.Context, src QuoteSource, inst domain.Instrument) (domain.Quote, error) {
	id := src.ID()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return domain.Quote{}, domain.NewUnavailable(id, domain.KindTimeout, "waiting for fetch slot", err)
	}

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		defer a.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: &sourcePanic{source: id, value: r, stack: debug.Stack()}}
			}
		}()
		q, err := src.FetchQuote(ctx, inst)
		done <- fetchResult{quote: q, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = domain.NewUnavailable(id, domain.KindTimeout, "source timeout "+a.timeout.String(), ctx.Err())
	}

	a.fetchLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("source", id)))

	if res.err != nil {
		if _, ok := domain.AsUnavailable(res.err); !ok && errors.Is(res.err, context.DeadlineExceeded) {
			res.err = domain.NewUnavailable(id, domain.KindTimeout, "deadline exceeded", res.err)
		}
		return domain.Quote{}, res.err
	}
	if res.quote.SourceID != id || res.quote.Instrument != inst.Symbol || !res.quote.Price.IsPositive() {
		return domain.Quote{}, domain.NewUnavailable(id, domain.KindParseError,
			fmt.Sprintf("malformed quote %s/%s price %s", res.quote.SourceID, res.quote.Instrument, res.quote.Price), nil)
	}
	return res.quote, nil
}
