// Package discord sends notifications to Discord webhooks.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"

	"github.com/fd1az/spread-monitor/business/notify/app"
	"github.com/fd1az/spread-monitor/business/notify/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/httpclient"
)

const (
	name = "discord"

	// maxContent is Discord's message length limit in characters.
	maxContent = 2000
)

var _ app.Transport = (*Transport)(nil)

// Transport posts to webhooks. Destinations are full webhook URLs.
type Transport struct {
	client httpclient.Client
	now    func() time.Time
}

// New creates a Transport.
func New(timeout time.Duration) (*Transport, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(name),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(otel.Tracer(name)),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	return &Transport{client: client, now: time.Now}, nil
}

func (t *Transport) Name() string { return name }

type webhookPayload struct {
	Content string `json:"content"`
}

type rateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func (t *Transport) SendMessage(ctx context.Context, webhookURL, text string) error {
	u, err := url.Parse(webhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &domain.DeliveryError{Channel: name, Err: domain.ErrInvalidDestination}
	}
	text = truncate(text, maxContent)

	_, err = t.client.NewRequest(httpclient.WithResponseErrorHandler(t.handleError)).
		SetBody(webhookPayload{Content: text}).
		Post(ctx, webhookURL)
	if err != nil {
		var de *domain.DeliveryError
		if errors.As(err, &de) {
			return de
		}
		// The webhook path is a credential.
		redacted := u.Scheme + "://" + u.Host + "/***"
		return &domain.DeliveryError{Channel: name, Err: httpclient.RedactURL(err, redacted)}
	}
	return nil
}

// truncate cuts text to at most limit runes, ending with "...".
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit-3 {
			return text[:i] + "..."
		}
		n++
	}
	return text
}

func (t *Transport) handleError(status int, header http.Header, body []byte) error {
	if status < 400 {
		return nil
	}
	var res rateLimitResponse
	_ = json.Unmarshal(body, &res)

	retryAfter := time.Duration(res.RetryAfter * float64(time.Second))
	if retryAfter == 0 {
		retryAfter = httpclient.ParseRetryAfter(header, t.now())
	}
	msg := res.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &domain.DeliveryError{Channel: name, StatusCode: status, RetryAfter: retryAfter, Err: errors.New(msg)}
}
