package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	arbApp "github.com/fd1az/spread-monitor/business/arbitrage/app"
	arbDomain "github.com/fd1az/spread-monitor/business/arbitrage/domain"
	"github.com/fd1az/spread-monitor/business/notify/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apm"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const (
	tracerName = "notify"
	meterName  = "notify"

	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultSendTimeout    = 10 * time.Second

	// maxRetryAfter bounds a server-requested wait so one channel cannot
	// stall a scan tick.
	maxRetryAfter = 30 * time.Second
)

var _ arbApp.Notifier = (*Notifier)(nil)

// Config controls retries. Every attempt runs under SendTimeout.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SendTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(defaultMaxBackoff, c.InitialBackoff)
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	return c
}

// DeliveryBudget is the longest one channel can take to exhaust its
// attempts: every attempt under SendTimeout plus a MaxBackoff wait before
// each retry. Server-requested waits longer than MaxBackoff can exceed it.
func (c Config) DeliveryBudget() time.Duration {
	c = c.withDefaults()
	return c.SendTimeout*time.Duration(c.MaxRetries+1) + c.MaxBackoff*time.Duration(c.MaxRetries)
}

// ChannelResult is the outcome for one channel.
type ChannelResult struct {
	Channel   string
	Delivered bool
	Attempts  int
	Err       error
}

// Result aggregates a Send over all channels. Delivered is true when any
// channel delivered.
type Result struct {
	Delivered bool
	Attempts  int
	Err       error
	Channels  []ChannelResult
}

// Notifier fans a message out to every channel, retrying transient
// failures. It never returns an error to its caller.
type Notifier struct {
	channels []Channel
	networks *asset.Registry
	cfg      Config
	log      logger.LoggerInterface
	sleep    func(ctx context.Context, d time.Duration) error

	tracer   apm.Tracer
	sent     metric.Int64Counter
	attempts metric.Int64Counter
}

// NewNotifier creates a Notifier. networks resolves explorer links in
// opportunity alerts.
func NewNotifier(channels []Channel, networks *asset.Registry, cfg Config, log logger.LoggerInterface) (*Notifier, error) {
	if log == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("logger is nil"))
	}
	if networks == nil {
		networks = asset.DefaultRegistry()
	}
	cfg = cfg.withDefaults()

	meter := otel.Meter(meterName)
	sent, err := meter.Int64Counter("notifications_total",
		metric.WithDescription("Notifications by channel and outcome"))
	if err != nil {
		return nil, err
	}
	attempts, err := meter.Int64Counter("notification_attempts_total",
		metric.WithDescription("Individual transport attempts"))
	if err != nil {
		return nil, err
	}

	return &Notifier{
		channels: channels,
		networks: networks,
		cfg:      cfg,
		log:      log,
		sleep:    sleepCtx,
		tracer:   apm.NewTracer(tracerName),
		sent:     sent,
		attempts: attempts,
	}, nil
}

// Channels returns the channel labels.
func (n *Notifier) Channels() []string {
	out := make([]string, len(n.channels))
	for i, ch := range n.channels {
		out[i] = ch.String()
	}
	return out
}

// Send delivers text to every channel concurrently and waits for all of
// them.
func (n *Notifier) Send(ctx context.Context, kind, text string) Result {
	ctx, span := n.tracer.StartSpanFromContext(ctx, "notify.send", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("channels", len(n.channels)),
	))
	defer span.End()

	results := make([]ChannelResult, len(n.channels))
	var g errgroup.Group
	for i, ch := range n.channels {
		g.Go(func() error {
			results[i] = n.deliver(ctx, ch, kind, text)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Channels: results}
	var errs []error
	for _, r := range results {
		res.Attempts += r.Attempts
		if r.Delivered {
			res.Delivered = true
			continue
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	res.Err = errors.Join(errs...)
	if !res.Delivered {
		span.NoticeError(res.Err)
	}
	return res
}

func (n *Notifier) deliver(ctx context.Context, ch Channel, kind, text string) ChannelResult {
	label := ch.String()
	res := ChannelResult{Channel: label}
	backoff := n.cfg.InitialBackoff

	for {
		res.Attempts++
		actx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
		err := ch.Transport.SendMessage(actx, ch.Destination, text)
		cancel()
		n.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", ch.Transport.Name())))

		if err == nil {
			res.Delivered = true
			res.Err = nil
			n.record(ctx, ch, kind, "delivered")
			return res
		}
		res.Err = err

		class := domain.Classify(err)
		if class == domain.Permanent {
			n.drop(ctx, ch, kind, class, res)
			return res
		}
		if res.Attempts > n.cfg.MaxRetries {
			n.drop(ctx, ch, kind, class, res)
			return res
		}

		wait := backoff
		if ra := min(domain.RetryAfter(err), maxRetryAfter); ra > wait {
			wait = ra
		}
		n.log.Debug(ctx, "retrying notification", "channel", label, "attempt", res.Attempts,
			"wait", wait.String(), "error", err)
		if err := n.sleep(ctx, wait); err != nil {
			res.Err = errors.Join(res.Err, err)
			n.drop(ctx, ch, kind, class, res)
			return res
		}
		backoff = min(backoff*2, n.cfg.MaxBackoff)
	}
}

func (n *Notifier) drop(ctx context.Context, ch Channel, kind string, class domain.Class, res ChannelResult) {
	appErr := apperror.New(class.Code(),
		apperror.WithCause(res.Err),
		apperror.WithContext(fmt.Sprintf("%s after %d attempts", ch, res.Attempts)))
	n.log.Warn(ctx, "notification dropped", append(appErr.LogArgs(), "kind", kind)...)
	n.record(ctx, ch, kind, class.String())
}

func (n *Notifier) record(ctx context.Context, ch Channel, kind, outcome string) {
	n.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", ch.Transport.Name()),
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (n *Notifier) NotifyStartup(ctx context.Context, info arbApp.StartupInfo) bool {
	text := domain.StartupText(info.Instruments, info.Sources, info.Interval, info.ThresholdPercent)
	return n.Send(ctx, "startup", text).Delivered
}

func (n *Notifier) NotifyOpportunity(ctx context.Context, inst pricingDomain.Instrument, opp arbDomain.Opportunity) bool {
	return n.Send(ctx, "opportunity", domain.OpportunityText(inst, opp, n.networks)).Delivered
}

func (n *Notifier) NotifyFatal(ctx context.Context, err error) bool {
	return n.Send(ctx, "fatal", domain.FatalText(err)).Delivered
}

func (n *Notifier) NotifyShutdown(ctx context.Context, reason string) bool {
	return n.Send(ctx, "shutdown", domain.ShutdownText(reason)).Delivered
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
