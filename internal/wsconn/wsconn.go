// Package wsconn provides a WebSocket client with automatic reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

var errMaxReconnects = errors.New("wsconn: max reconnects reached")

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string

	PingInterval   time.Duration // 0 disables pings
	ReadTimeout    time.Duration // 0 waits forever
	WriteTimeout   time.Duration
	MaxMessageSize int64

	AutoReconnect  bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite

	Logger logger.LoggerInterface
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
		AutoReconnect:  true,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// MessageHandler receives every data frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition.
type StateHandler func(state State, err error)

// Client is a WebSocket client that reconnects with exponential backoff.
type Client struct {
	cfg Config
	log logger.LoggerInterface

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	handlersMu sync.RWMutex
	onMessage  MessageHandler
	onState    StateHandler

	lifeCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	messagesTotal   metric.Int64Counter
	reconnectsTotal metric.Int64Counter
	attrs           metric.MeasurementOption
}

// New creates a new WebSocket client. It does not dial.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("wsconn: url is required"))
	}
	if cfg.Name == "" {
		cfg.Name = cfg.URL
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	meter := otel.Meter("wsconn")
	messagesTotal, err := meter.Int64Counter("wsconn_messages_total",
		metric.WithDescription("WebSocket data frames received"))
	if err != nil {
		return nil, err
	}
	reconnectsTotal, err := meter.Int64Counter("wsconn_reconnects_total",
		metric.WithDescription("WebSocket reconnect attempts"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:             cfg,
		log:             log,
		state:           StateDisconnected,
		lifeCtx:         ctx,
		cancel:          cancel,
		messagesTotal:   messagesTotal,
		reconnectsTotal: reconnectsTotal,
		attrs:           metric.WithAttributes(attribute.String("conn", cfg.Name)),
	}, nil
}

// OnMessage installs the data frame handler. Handlers run on the read
// goroutine and should not block.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange installs the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = h
	c.handlersMu.Unlock()
}

// Connect dials once. On failure the client returns to StateDisconnected.
func (c *Client) Connect(ctx context.Context) error {
	if c.lifeCtx.Err() != nil {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
	}

	c.setState(StateConnecting, nil)
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err), apperror.WithContext(c.cfg.Name))
	}
	c.install(conn)
	return nil
}

// ConnectWithRetry dials until it succeeds, ctx ends, or MaxReconnects
// attempts have failed.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if c.cfg.MaxReconnects > 0 && attempt >= c.cfg.MaxReconnects {
			return err
		}
		c.log.Warn(ctx, "websocket connect failed, retrying",
			"conn", c.cfg.Name, "attempt", attempt, "backoff", backoff.String(), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.lifeCtx.Done():
			return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
	}
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return apperror.New(apperror.CodeWebSocketSendError, apperror.WithContext(c.cfg.Name+": not connected"))
	}

	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError, apperror.WithCause(err), apperror.WithContext(c.cfg.Name))
	}
	return nil
}

// SendJSON marshals v and writes it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketSendError, apperror.WithCause(err), apperror.WithContext("marshal"))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnection and closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			if err := conn.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
				c.log.Debug(context.Background(), "websocket close", "conn", c.cfg.Name, "error", err)
			}
		}
		c.wg.Wait()
		c.setState(StateClosed, nil)
	})
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	return conn, nil
}

func (c *Client) install(conn *websocket.Conn) {
	c.mu.Lock()
	if c.lifeCtx.Err() != nil {
		c.mu.Unlock()
		conn.CloseNow()
		return
	}
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(conn)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		ctx := c.lifeCtx
		var cancel context.CancelFunc = func() {}
		if c.cfg.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		c.messagesTotal.Add(c.lifeCtx, 1, c.attrs)
		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.lifeCtx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.lifeCtx.Done():
			return
		case <-ticker.C:
			if !c.owns(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(c.lifeCtx, c.cfg.WriteTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.handleDisconnect(conn, err)
				return
			}
		}
	}
}

func (c *Client) owns(conn *websocket.Conn) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn == conn
}

// handleDisconnect is called by whichever loop notices the failure first;
// later callers for the same conn are no-ops.
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	if c.lifeCtx.Err() != nil {
		return
	}
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	conn.CloseNow()

	c.log.Warn(c.lifeCtx, "websocket disconnected", "conn", c.cfg.Name, "error", cause)

	if !c.cfg.AutoReconnect {
		c.setState(StateDisconnected, cause)
		return
	}
	c.setState(StateReconnecting, cause)
	c.reconnect()
}

func (c *Client) reconnect() {
	backoff := c.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		if c.cfg.MaxReconnects > 0 && attempt > c.cfg.MaxReconnects {
			c.setState(StateDisconnected, errMaxReconnects)
			return
		}
		select {
		case <-c.lifeCtx.Done():
			return
		case <-time.After(backoff):
		}

		c.reconnectsTotal.Add(c.lifeCtx, 1, c.attrs)
		conn, err := c.dial(c.lifeCtx)
		if err != nil {
			c.log.Debug(c.lifeCtx, "websocket reconnect failed",
				"conn", c.cfg.Name, "attempt", attempt, "error", err)
			backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
			continue
		}
		c.log.Info(c.lifeCtx, "websocket reconnected", "conn", c.cfg.Name, "attempt", attempt)
		c.install(conn)
		return
	}
}

func (c *Client) setState(s State, err error) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.handlersMu.RLock()
	h := c.onState
	c.handlersMu.RUnlock()
	if h != nil {
		h(s, err)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
