// Package telegram sends notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fd1az/spread-monitor/business/notify/app"
	"github.com/fd1az/spread-monitor/business/notify/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/httpclient"
)

const (
	name = "telegram"

	DefaultAPIURL   = "https://api.telegram.org"
	sendMessagePath = "/sendMessage"
)

var _ app.Transport = (*Transport)(nil)

// Config holds the bot credentials.
type Config struct {
	BotToken string
	APIURL   string
	Timeout  time.Duration
}

// Transport calls sendMessage for one bot. Destinations are chat ids.
type Transport struct {
	client httpclient.Client
	now    func() time.Time
	// redacted stands in for the request URL in errors; the real one
	// carries the bot token.
	redacted string
}

// New creates a Transport.
func New(cfg Config) (*Transport, error) {
	if cfg.BotToken == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("telegram: bot token is empty"))
	}
	apiURL := strings.TrimSuffix(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(name),
		httpclient.WithBaseURL(apiURL+"/bot"+cfg.BotToken),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
		httpclient.WithTraceOptions(otel.Tracer(name)),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	return &Transport{
		client:   client,
		now:      time.Now,
		redacted: apiURL + "/bot***" + sendMessagePath,
	}, nil
}

func (t *Transport) Name() string { return name }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (t *Transport) SendMessage(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(chatID) == "" {
		return &domain.DeliveryError{Channel: name, Err: domain.ErrInvalidDestination}
	}

	var out apiResponse
	_, err := t.client.NewRequest(httpclient.WithResponseErrorHandler(t.handleError)).
		SetBody(sendMessageRequest{ChatID: chatID, Text: text, DisableWebPagePreview: true}).
		SetResult(&out).
		Post(ctx, sendMessagePath)
	if err != nil {
		var de *domain.DeliveryError
		if errors.As(err, &de) {
			return de
		}
		return &domain.DeliveryError{Channel: name, Err: httpclient.RedactURL(err, t.redacted)}
	}
	if !out.OK {
		return &domain.DeliveryError{Channel: name, StatusCode: http.StatusBadRequest, Err: errors.New(out.Description)}
	}
	return nil
}

// handleError reads the Bot API error body, including retry_after on 429.
func (t *Transport) handleError(status int, header http.Header, body []byte) error {
	if status < 400 {
		return nil
	}
	var res apiResponse
	_ = json.Unmarshal(body, &res)

	retryAfter := time.Duration(res.Parameters.RetryAfter) * time.Second
	if retryAfter == 0 {
		retryAfter = httpclient.ParseRetryAfter(header, t.now())
	}

	cause := errors.New(res.Description)
	if res.Description == "" {
		cause = errors.New(http.StatusText(status))
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(res.Description), "chat not found") {
		cause = errors.Join(domain.ErrInvalidDestination, cause)
	}
	return &domain.DeliveryError{Channel: name, StatusCode: status, RetryAfter: retryAfter, Err: cause}
}
