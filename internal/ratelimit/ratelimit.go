// Package ratelimit wraps golang.org/x/time/rate for outbound API budgets.
package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// Limiter is a named token bucket. The name tags wait-time metrics.
type Limiter struct {
	name    string
	limiter *rate.Limiter
	waited  metric.Float64Histogram
}

// New creates a limiter allowing requestsPerMinute with a burst of a tenth
// of that, at least one. A non-positive rate means unlimited.
func New(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return newLimiter(name, rate.NewLimiter(rate.Inf, 1))
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return newLimiter(name, rate.NewLimiter(perMinute(requestsPerMinute), burst))
}

// NewWithBurst creates a limiter with an explicit per-second rate and burst.
func NewWithBurst(name string, requestsPerSecond float64, burst int) *Limiter {
	return newLimiter(name, rate.NewLimiter(rate.Limit(requestsPerSecond), burst))
}

func newLimiter(name string, l *rate.Limiter) *Limiter {
	waited, _ := otel.Meter("ratelimit").Float64Histogram("ratelimit_wait_ms",
		metric.WithDescription("Time spent waiting for a rate limit token"),
		metric.WithUnit("ms"))
	return &Limiter{name: name, limiter: l, waited: waited}
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Name returns the limiter name.
func (l *Limiter) Name() string { return l.name }

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := l.limiter.Wait(ctx)
	if l.waited != nil {
		l.waited.Record(ctx, float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(attribute.String("limiter", l.name)))
	}
	return err
}

// Allow reports whether a request may happen now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// SetLimit updates the rate. Used to back off after a 429.
func (l *Limiter) SetLimit(requestsPerMinute int) {
	l.limiter.SetLimit(perMinute(requestsPerMinute))
}
