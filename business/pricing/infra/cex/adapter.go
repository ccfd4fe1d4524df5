// Package cex quotes last traded prices from centralized exchange REST APIs.
package cex

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/circuitbreaker"
	"github.com/fd1az/spread-monitor/internal/httpclient"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/ratelimit"
)

const tracerName = "cex"

var _ app.QuoteSource = (*Adapter)(nil)

// PriceStream serves fresh prices pushed by a venue, keyed by the venue's
// symbol. ok is false when the stream has nothing younger than its
// staleness limit.
type PriceStream interface {
	Mid(symbol string) (price decimal.Decimal, ok bool)
}

// Config configures one venue adapter.
type Config struct {
	// BaseURL overrides the venue's public API root.
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithStream serves prices from s while it is fresh.
func WithStream(s PriceStream) Option {
	return func(a *Adapter) { a.stream = s }
}

// WithClock replaces time.Now for quote timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// Adapter is a QuoteSource backed by one exchange's ticker endpoint.
type Adapter struct {
	venue   venue
	client  httpclient.Client
	breaker *circuitbreaker.CircuitBreaker[ticker]
	stream  PriceStream
	log     logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates the adapter for the named venue.
func New(name string, cfg Config, log logger.LoggerInterface, opts ...Option) (*Adapter, error) {
	v, ok := venues[name]
	if !ok {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("unknown exchange "+name))
	}
	baseURL := v.baseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	tracer := otel.Tracer(tracerName)
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(name),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithLimiter(ratelimit.New(name, cfg.RequestsPerMinute)),
		httpclient.WithTraceOptions(tracer, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}

	bcfg := circuitbreaker.DefaultConfig(name)
	// A venue that answers "not listed" or garbles one ticker is still up.
	bcfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		u, ok := domain.AsUnavailable(err)
		return ok && (u.Kind == domain.KindNotListed || u.Kind == domain.KindParseError)
	}

	a := &Adapter{
		venue:   v,
		client:  client,
		breaker: circuitbreaker.New[ticker](bcfg),
		log:     log,
		tracer:  tracer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ID returns the venue name.
func (a *Adapter) ID() string { return a.venue.name }

// Symbol returns the venue's symbol for inst.
func (a *Adapter) Symbol(inst domain.Instrument) string {
	return a.venue.symbol(inst.Base, inst.Quote)
}

func (a *Adapter) FetchQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, error) {
	sym := a.Symbol(inst)
	ctx, span := a.tracer.Start(ctx, "cex.fetch_quote", trace.WithAttributes(
		attribute.String("venue", a.venue.name),
		attribute.String("symbol", sym),
	))
	defer span.End()

	if a.stream != nil {
		if mid, ok := a.stream.Mid(sym); ok {
			span.SetAttributes(attribute.String("via", "stream"))
			return a.quote(inst, ticker{last: mid})
		}
		a.log.Debug(ctx, "stream stale, falling back to rest", "venue", a.venue.name, "symbol", sym)
	}

	t, err := a.breaker.Execute(func() (ticker, error) {
		return a.fetch(ctx, sym)
	})
	if err != nil {
		u := infra.Classify(a.venue.name, err)
		span.RecordError(u)
		return domain.Quote{}, u
	}
	span.SetAttributes(attribute.String("via", "rest"), attribute.String("price", t.last.String()))
	return a.quote(inst, t)
}

func (a *Adapter) quote(inst domain.Instrument, t ticker) (domain.Quote, error) {
	q, err := domain.NewQuote(a.venue.name, inst.Symbol, t.last, a.now())
	if err != nil {
		return domain.Quote{}, domain.NewUnavailable(a.venue.name, domain.KindParseError, "non-positive price", err)
	}
	if t.volume.IsPositive() {
		q = q.WithLiquidity(t.volume)
	}
	return q, nil
}

func (a *Adapter) fetch(ctx context.Context, sym string) (ticker, error) {
	req := a.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "ticker")))
	for k, v := range a.venue.query {
		req = req.SetQueryParam(k, v)
	}
	resp, err := req.SetQueryParam(a.venue.param, sym).Get(ctx, a.venue.path)
	if err != nil {
		if se, ok := httpclient.AsStatusError(err); ok && a.venue.notListed != nil && a.venue.notListed(se.StatusCode, se.Body) {
			return ticker{}, domain.NewUnavailable(a.venue.name, domain.KindNotListed, sym, err)
		}
		return ticker{}, err
	}

	t, err := a.venue.decode(resp.Body())
	switch {
	case errors.Is(err, errNotListed):
		return ticker{}, domain.NewUnavailable(a.venue.name, domain.KindNotListed, sym, err)
	case errors.Is(err, errVenue):
		return ticker{}, domain.NewUnavailable(a.venue.name, domain.KindTransport, "", err)
	case err != nil:
		return ticker{}, domain.NewUnavailable(a.venue.name, domain.KindParseError, "decode ticker", err)
	}
	return t, nil
}
