package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// mapStore is a minimal AlertStore for tests.
type mapStore struct {
	records map[string]domain.AlertRecord
	err     error
}

func newMapStore() *mapStore {
	return &mapStore{records: map[string]domain.AlertRecord{}}
}

func (m *mapStore) Update(_ context.Context, t domain.Triple, fn UpdateFunc) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	var prev *domain.AlertRecord
	if rec, ok := m.records[t.Key()]; ok {
		prev = &rec
	}
	next, notify := fn(prev)
	if next != nil {
		m.records[t.Key()] = *next
	}
	return notify, nil
}

func opportunity(spread string) domain.Opportunity {
	return domain.Opportunity{
		Instrument:    "LINK/USDT",
		BuySource:     "okx",
		SellSource:    "0x:bsc",
		SpreadPercent: decimal.RequireFromString(spread),
	}
}

func newDedup(t *testing.T, store AlertStore) *Deduplicator {
	t.Helper()
	d, err := NewDeduplicator(store, DedupConfig{
		Cooldown:    5 * time.Minute,
		BucketWidth: decimal.NewFromInt(1),
	}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDeduplicator_Policy(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	type step struct {
		at     time.Duration
		spread string
		want   bool
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name:  "first_occurrence_notifies",
			steps: []step{{0, "7.37", true}},
		},
		{
			name:  "same_bucket_within_cooldown_suppressed",
			steps: []step{{0, "7.37", true}, {time.Minute, "7.90", false}, {4 * time.Minute, "7.01", false}},
		},
		{
			name:  "cooldown_elapsed_notifies",
			steps: []step{{0, "7.37", true}, {5 * time.Minute, "7.40", true}},
		},
		{
			name:  "bucket_up_notifies_and_restarts_cooldown",
			steps: []step{{0, "7.37", true}, {time.Minute, "8.10", true}, {5 * time.Minute, "8.20", false}, {6 * time.Minute, "8.20", true}},
		},
		{
			name:  "bucket_down_notifies",
			steps: []step{{0, "7.37", true}, {time.Minute, "5.50", true}},
		},
		{
			name:  "suppressed_repeats_do_not_extend_cooldown",
			steps: []step{{0, "7.37", true}, {3 * time.Minute, "7.2", false}, {5 * time.Minute, "7.2", true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDedup(t, newMapStore())
			for i, s := range tt.steps {
				got := d.ShouldNotify(context.Background(), opportunity(s.spread), t0.Add(s.at))
				if got != s.want {
					t.Errorf("step %d (%s at +%s): notify = %v, want %v", i, s.spread, s.at, got, s.want)
				}
			}
		})
	}
}

func TestDeduplicator_TriplesAreIndependent(t *testing.T) {
	d := newDedup(t, newMapStore())
	now := time.Now()
	a := opportunity("3")
	b := opportunity("3")
	b.SellSource = "binance"

	if !d.ShouldNotify(context.Background(), a, now) || !d.ShouldNotify(context.Background(), b, now) {
		t.Fatal("first alert per triple must notify")
	}
	if d.ShouldNotify(context.Background(), a, now.Add(time.Second)) {
		t.Error("repeat of a notified")
	}
}

func TestDeduplicator_StoreErrorFailsOpen(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("redis down")
	d := newDedup(t, store)
	for i := 0; i < 3; i++ {
		if !d.ShouldNotify(context.Background(), opportunity("2"), time.Now()) {
			t.Fatalf("attempt %d suppressed on store error", i)
		}
	}
}

func TestDeduplicator_ConflictSuppresses(t *testing.T) {
	store := newMapStore()
	store.err = fmt.Errorf("redisstore: %w", ErrUpdateConflict)
	d := newDedup(t, store)
	if d.ShouldNotify(context.Background(), opportunity("2"), time.Now()) {
		t.Error("alert sent although another writer won the triple")
	}
}

func TestNewDeduplicator_Defaults(t *testing.T) {
	d, err := NewDeduplicator(newMapStore(), DedupConfig{}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if d.Cooldown() != defaultCooldown {
		t.Errorf("cooldown = %s", d.Cooldown())
	}
	if _, err := NewDeduplicator(nil, DedupConfig{}, logger.NewNop()); err == nil {
		t.Error("expected error for nil store")
	}
}
