// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption specifies what to record on spans.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

// Waiter gates outgoing requests. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

type clientOptions struct {
	client         *http.Client
	meterProvider  metric.MeterProvider
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
	baseURL        string
	limiter        Waiter
	tracer         trace.Tracer
	logRequest     bool
	logResponse    bool
}

// ClientOption configures the instrumented client.
type ClientOption func(*clientOptions)

// WithHTTPClient uses an existing http.Client; its transport gets wrapped.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.client = c }
}

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithProviderName labels metrics and spans with the upstream's name.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

// WithRoundTripper sets a custom base transport.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.roundTripper = rt }
}

// WithRequestTimeout bounds each request end to end.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

// WithBaseURL sets the base URL relative paths are joined to.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithLimiter makes every request wait on l before it is sent.
func WithLimiter(l Waiter) ClientOption {
	return func(o *clientOptions) { o.limiter = l }
}

// WithTraceOptions enables request/response body recording on spans.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			switch opt {
			case TraceRequest:
				o.logRequest = true
			case TraceResponse:
				o.logResponse = true
			}
		}
	}
}

type requestOptions struct {
	errorHandler  ResponseErrorHandler
	labels        []Label
	redactHeaders []string
	recordHeaders bool
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// ResponseErrorHandler maps a response to an error. Returning nil accepts
// the response whatever its status.
type ResponseErrorHandler func(statusCode int, header http.Header, body []byte) error

// WithResponseErrorHandler replaces the default status check.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

// Label is a key-value pair attached to request metrics.
type Label struct {
	Key   string
	Value string
}

// NewLabel creates a new label.
func NewLabel(key, value string) Label {
	return Label{Key: key, Value: value}
}

// WithLabels sets metric labels for the request.
func WithLabels(labels ...Label) RequestOption {
	return func(o *requestOptions) { o.labels = append(o.labels, labels...) }
}

// WithHeaderRecording records request headers on the span, masking redact.
func WithHeaderRecording(redact ...string) RequestOption {
	return func(o *requestOptions) {
		o.recordHeaders = true
		o.redactHeaders = redact
	}
}
