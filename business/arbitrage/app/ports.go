// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
)

// UpdateFunc decides, from the previous record (nil when none), whether to
// notify and what to store. A nil next leaves the record untouched.
type UpdateFunc func(prev *domain.AlertRecord) (next *domain.AlertRecord, notify bool)

// ErrUpdateConflict is returned by an AlertStore when other writers kept
// changing the triple's record and the update gave up. One of them has just
// decided for the triple.
var ErrUpdateConflict = errors.New("alert store: too many concurrent updates")

// AlertStore holds one AlertRecord per triple. Update must run fn and apply
// its result atomically for that triple.
type AlertStore interface {
	Update(ctx context.Context, t domain.Triple, fn UpdateFunc) (bool, error)
}

// Notifier delivers operator messages. Implementations never fail the
// caller; the returned bool reports whether at least one channel delivered.
type Notifier interface {
	NotifyStartup(ctx context.Context, info StartupInfo) bool
	NotifyOpportunity(ctx context.Context, inst pricingDomain.Instrument, opp domain.Opportunity) bool
	NotifyFatal(ctx context.Context, err error) bool
	NotifyShutdown(ctx context.Context, reason string) bool
}

// StartupInfo is sent once when scanning starts.
type StartupInfo struct {
	Instruments      []string
	Sources          []string
	Interval         time.Duration
	ThresholdPercent string
}

// Reporter observes scanning for display. Calls happen on the scan
// goroutine and must not block.
type Reporter interface {
	OnPrices(ctx context.Context, pm pricingDomain.PriceMap)
	OnOpportunity(ctx context.Context, opp domain.Opportunity, notified bool)
	OnTick(ctx context.Context, tick TickReport)
}

// TickReport summarizes one completed tick.
type TickReport struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Instruments   int
	Opportunities int
	Alerts        int
	Fatal         int
	NextIn        time.Duration
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) OnPrices(context.Context, pricingDomain.PriceMap)        {}
func (NopReporter) OnOpportunity(context.Context, domain.Opportunity, bool) {}
func (NopReporter) OnTick(context.Context, TickReport)                      {}
