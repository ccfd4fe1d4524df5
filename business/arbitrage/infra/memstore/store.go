// Package memstore keeps alert records in process memory.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
)

var _ app.AlertStore = (*Store)(nil)

// Store is a mutex-guarded map of alert records. Records older than ttl are
// treated as absent and dropped by Cleanup. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]domain.AlertRecord
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Store. A zero ttl keeps records forever.
func New(ttl time.Duration) *Store {
	return &Store{
		records: make(map[string]domain.AlertRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Update runs fn under the store lock.
func (s *Store) Update(_ context.Context, t domain.Triple, fn app.UpdateFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.Key()
	var prev *domain.AlertRecord
	if rec, ok := s.records[key]; ok && !s.expired(rec) {
		prev = &rec
	}

	next, notify := fn(prev)
	if next != nil {
		s.records[key] = *next
	}
	return notify, nil
}

// Get returns the record for t.
func (s *Store) Get(t domain.Triple) (domain.AlertRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[t.Key()]
	if !ok || s.expired(rec) {
		return domain.AlertRecord{}, false
	}
	return rec, true
}

// Len returns the number of stored records, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Cleanup removes expired records.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		if s.expired(rec) {
			delete(s.records, k)
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func (s *Store) expired(rec domain.AlertRecord) bool {
	return s.ttl > 0 && s.now().Sub(rec.LastNotifiedAt) >= s.ttl
}
