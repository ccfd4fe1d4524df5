package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/wsconn"
)

const (
	meterName = "binance"

	// DefaultStreamURL is the public market data endpoint.
	DefaultStreamURL    = "wss://stream.binance.com:9443"
	defaultStaleTimeout = 5 * time.Second
)

// StreamConfig configures the bookTicker stream.
type StreamConfig struct {
	URL string
	// Symbols in Binance format, e.g. "LINKUSDT".
	Symbols      []string
	StaleTimeout time.Duration
}

type book struct {
	bid, ask decimal.Decimal
	at       time.Time
}

// Stream caches the latest best bid/ask per symbol.
type Stream struct {
	cfg  StreamConfig
	log  logger.LoggerInterface
	conn *wsconn.Client
	now  func() time.Time

	mu    sync.RWMutex
	books map[string]book

	updates     metric.Int64Counter
	parseErrors metric.Int64Counter
}

// NewStream creates the stream. It does not connect; call Start.
func NewStream(cfg StreamConfig, log logger.LoggerInterface) (*Stream, error) {
	if len(cfg.Symbols) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("binance stream: no symbols"))
	}
	if cfg.URL == "" {
		cfg.URL = DefaultStreamURL
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = defaultStaleTimeout
	}

	streamURL, err := CombinedStreamURL(cfg.URL, cfg.Symbols)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	wsCfg := wsconn.DefaultConfig(streamURL, "binance")
	wsCfg.Logger = log
	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(meterName)
	updates, err := meter.Int64Counter("binance_book_ticker_updates_total",
		metric.WithDescription("bookTicker updates applied"))
	if err != nil {
		return nil, err
	}
	parseErrors, err := meter.Int64Counter("binance_stream_parse_errors_total",
		metric.WithDescription("Stream messages that could not be decoded"))
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg:         cfg,
		log:         log,
		conn:        conn,
		now:         time.Now,
		books:       make(map[string]book, len(cfg.Symbols)),
		updates:     updates,
		parseErrors: parseErrors,
	}
	conn.OnMessage(s.handleMessage)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "binance stream state", "state", string(state), "error", err)
			return
		}
		log.Info(context.Background(), "binance stream state", "state", string(state))
	})
	return s, nil
}

// Start connects in the background and keeps retrying until Close.
// Until the first update arrives Mid reports nothing and callers use REST.
func (s *Stream) Start(ctx context.Context) {
	go func() {
		if err := s.conn.ConnectWithRetry(ctx); err != nil {
			s.log.Warn(ctx, "binance stream gave up connecting", "error", err)
		}
	}()
}

// Mid returns the mid of the best bid and ask if the last update is
// younger than the stale timeout.
func (s *Stream) Mid(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	b, ok := s.books[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if !ok || s.now().Sub(b.at) > s.cfg.StaleTimeout {
		return decimal.Zero, false
	}
	if !b.bid.IsPositive() || !b.ask.IsPositive() {
		return decimal.Zero, false
	}
	return b.bid.Add(b.ask).Div(decimal.NewFromInt(2)), true
}

// Connected reports whether the socket is up.
func (s *Stream) Connected() bool {
	return s.conn.IsConnected()
}

// Close stops the stream.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) handleMessage(ctx context.Context, data []byte) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Stream == "" {
		// Subscription acks have no stream field.
		if err != nil {
			s.parseErrors.Add(ctx, 1)
		}
		return
	}
	if !strings.HasSuffix(ev.Stream, "@bookTicker") {
		return
	}

	var t BookTickerEvent
	if err := json.Unmarshal(ev.Data, &t); err != nil {
		s.parseErrors.Add(ctx, 1)
		s.log.Debug(ctx, "bad bookTicker payload", "stream", ev.Stream, "error", err)
		return
	}
	s.apply(t)
	s.updates.Add(ctx, 1)
}

func (s *Stream) apply(t BookTickerEvent) {
	s.mu.Lock()
	s.books[strings.ToUpper(t.Symbol)] = book{bid: t.BidPrice, ask: t.AskPrice, at: s.now()}
	s.mu.Unlock()
}
