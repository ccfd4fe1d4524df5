package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const (
	defaultCooldown = 5 * time.Minute
)

// DedupConfig holds the suppression policy.
type DedupConfig struct {
	Cooldown time.Duration
	// BucketWidth is in percentage points.
	BucketWidth decimal.Decimal
}

// Deduplicator suppresses repeat alerts for the same triple.
//
// An alert goes out the first time a triple is seen, when the cooldown has
// elapsed since the last alert, or when the spread moved into another
// bucket. Every alert restarts the cooldown.
type Deduplicator struct {
	store    AlertStore
	cooldown time.Duration
	width    decimal.Decimal
	log      logger.LoggerInterface

	storeErrors metric.Int64Counter
}

// NewDeduplicator creates a Deduplicator over store.
func NewDeduplicator(store AlertStore, cfg DedupConfig, log logger.LoggerInterface) (*Deduplicator, error) {
	if store == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("dedup: nil store"))
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	width := cfg.BucketWidth
	if !width.IsPositive() {
		width = decimal.NewFromInt(1)
	}
	storeErrors, err := otel.Meter(meterName).Int64Counter("alert_store_errors_total",
		metric.WithDescription("Alert store failures; the alert was sent anyway"))
	if err != nil {
		return nil, err
	}
	return &Deduplicator{
		store:       store,
		cooldown:    cooldown,
		width:       width,
		log:         log,
		storeErrors: storeErrors,
	}, nil
}

// ShouldNotify reports whether opp should be sent and records it when so.
// A failing store lets the alert through; a write conflict suppresses it,
// since the competing writer has already decided for the triple.
func (d *Deduplicator) ShouldNotify(ctx context.Context, opp domain.Opportunity, now time.Time) bool {
	triple := opp.Triple()
	bucket := domain.Bucket(opp.SpreadPercent, d.width)

	notify, err := d.store.Update(ctx, triple, func(prev *domain.AlertRecord) (*domain.AlertRecord, bool) {
		return d.decide(prev, triple, bucket, now)
	})
	if errors.Is(err, ErrUpdateConflict) {
		d.log.Info(ctx, "alert store conflict, leaving triple to the other writer",
			"triple", triple.Key())
		return false
	}
	if err != nil {
		d.storeErrors.Add(ctx, 1)
		appErr := apperror.New(apperror.CodeAlertStoreError,
			apperror.WithCause(err), apperror.WithContext(triple.Key()))
		d.log.Warn(ctx, "alert store failed, notifying anyway", appErr.LogArgs()...)
		return true
	}
	return notify
}

func (d *Deduplicator) decide(prev *domain.AlertRecord, triple domain.Triple, bucket int64, now time.Time) (*domain.AlertRecord, bool) {
	next := &domain.AlertRecord{Triple: triple, SpreadBucket: bucket, LastNotifiedAt: now}
	switch {
	case prev == nil:
		return next, true
	case prev.SpreadBucket != bucket:
		return next, true
	case now.Sub(prev.LastNotifiedAt) >= d.cooldown:
		return next, true
	default:
		return nil, false
	}
}

// Cooldown returns the effective cooldown.
func (d *Deduplicator) Cooldown() time.Duration {
	return d.cooldown
}

func tripleAttrs(t domain.Triple) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("instrument", t.Instrument),
		attribute.String("buy", t.BuySource),
		attribute.String("sell", t.SellSource),
	}
}
