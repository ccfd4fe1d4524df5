package app

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// LogSink logs dropped sources and counts them by source and kind.
type LogSink struct {
	log     logger.LoggerInterface
	counter metric.Int64Counter
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.LoggerInterface) (*LogSink, error) {
	counter, err := otel.Meter(meterName).Int64Counter(
		"source_unavailable_total",
		metric.WithDescription("Quote fetches that produced no price, by source and kind"),
	)
	if err != nil {
		return nil, err
	}
	return &LogSink{log: log, counter: counter}, nil
}

func (s *LogSink) SourceUnavailable(ctx context.Context, instrument string, u *domain.Unavailable) {
	s.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", u.Source),
		attribute.String("kind", u.Kind.String()),
	))

	appErr := apperror.New(apperror.CodeSourceUnavailable,
		apperror.WithCause(u),
		apperror.WithContext(instrument))
	args := append([]any{"source", u.Source, "instrument", instrument, "kind", u.Kind.String()}, appErr.LogArgs()...)
	// Not-listed and unsupported are configuration facts, not incidents.
	if u.Kind == domain.KindNotListed || u.Kind == domain.KindUnsupported {
		s.log.Debug(ctx, "source unavailable", args...)
		return
	}
	s.log.Warn(ctx, "source unavailable", args...)
}

// MultiSink fans out to several sinks. Sinks may be added after
// construction.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []UnavailableSink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...UnavailableSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add appends a sink.
func (m *MultiSink) Add(s UnavailableSink) {
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

func (m *MultiSink) SourceUnavailable(ctx context.Context, instrument string, u *domain.Unavailable) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()
	for _, s := range sinks {
		s.SourceUnavailable(ctx, instrument, u)
	}
}
