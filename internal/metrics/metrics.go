// Package metrics wires the OpenTelemetry meter provider to Prometheus and
// an optional OTLP collector.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/spread-monitor/internal/logger"
)

// MetricProvider is the installed meter provider.
type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

// Options selects readers for the meter provider.
type Options struct {
	ServiceName string
	// Prometheus enables the pull exporter served by Server.
	Prometheus bool
	// OTLPEndpoint enables the push exporter when non-empty.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	Insecure     bool
}

// Provider owns the SDK meter provider and the Prometheus registry.
type Provider struct {
	*sdkmetric.MeterProvider
	registry *prom.Registry
}

// NewMetricProvider builds the readers, installs the global meter provider
// and returns it.
func NewMetricProvider(ctx context.Context, opts Options) (*Provider, error) {
	var readerOpts []sdkmetric.Option
	registry := prom.NewRegistry()

	if opts.Prometheus {
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("metrics: prometheus exporter: %w", err)
		}
		readerOpts = append(readerOpts, sdkmetric.WithReader(exp))
	}

	if opts.OTLPEndpoint != "" {
		o := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(opts.OTLPEndpoint),
			otlpmetricgrpc.WithHeaders(opts.OTLPHeaders),
		}
		if opts.Insecure {
			o = append(o, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, o...)
		if err != nil {
			return nil, fmt.Errorf("metrics: otlp exporter: %w", err)
		}
		readerOpts = append(readerOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	readerOpts = append(readerOpts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(opts.ServiceName)),
	))

	mp := sdkmetric.NewMeterProvider(readerOpts...)
	otel.SetMeterProvider(mp)

	return &Provider{MeterProvider: mp, registry: registry}, nil
}

// Handler serves the Prometheus registry.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics.
type Server struct {
	server   *http.Server
	listener net.Listener
	log      logger.LoggerInterface
}

// ServePrometheusMetrics binds port and serves p's registry in the
// background.
func ServePrometheusMetrics(p *Provider, port int, log logger.LoggerInterface) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	s := &Server{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		log:      log,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "metrics server stopped", "error", err)
		}
	}()
	log.Info(context.Background(), "serving metrics", "addr", ln.Addr().String()+"/metrics")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
