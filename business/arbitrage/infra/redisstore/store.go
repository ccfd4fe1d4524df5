// Package redisstore keeps alert records in Redis so several monitor
// replicas share one suppression state.
package redisstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
)

const (
	fieldBucket     = "bucket"
	fieldNotifiedAt = "notified_at"

	maxTxRetries = 5
)

var _ app.AlertStore = (*Store)(nil)

// ErrConflict is returned when a triple kept changing under WATCH.
var ErrConflict = fmt.Errorf("redisstore: %w", app.ErrUpdateConflict)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
}

// Dial creates a client and pings it.
func Dial(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// Store keeps each record in a hash at <prefix><triple key>, expiring after
// ttl. Updates are optimistic WATCH/MULTI transactions on that key.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Store. ttl should cover the dedup cooldown.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) key(t domain.Triple) string {
	return s.prefix + t.Key()
}

// Update reads the record, runs fn and writes its result in one
// transaction, retrying when another writer touched the key meanwhile.
func (s *Store) Update(ctx context.Context, t domain.Triple, fn app.UpdateFunc) (bool, error) {
	key := s.key(t)
	var notify bool

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		prev, err := decode(t, fields)
		if err != nil {
			return err
		}

		next, ok := fn(prev)
		notify = ok
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldBucket, next.SpreadBucket,
				fieldNotifiedAt, next.LastNotifiedAt.UnixNano())
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return notify, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("redis: update %s: %w", key, err)
	}
	return false, ErrConflict
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func decode(t domain.Triple, fields map[string]string) (*domain.AlertRecord, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	bucket, err := strconv.ParseInt(fields[fieldBucket], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: bad %s for %s: %w", fieldBucket, t, err)
	}
	nanos, err := strconv.ParseInt(fields[fieldNotifiedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: bad %s for %s: %w", fieldNotifiedAt, t, err)
	}
	return &domain.AlertRecord{
		Triple:         t,
		SpreadBucket:   bucket,
		LastNotifiedAt: time.Unix(0, nanos),
	}, nil
}
