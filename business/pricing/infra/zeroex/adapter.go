// Package zeroex quotes DEX prices through the 0x swap API.
package zeroex

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/circuitbreaker"
	"github.com/fd1az/spread-monitor/internal/httpclient"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const (
	tracerName = "zeroex"

	DefaultBaseURL = "https://api.0x.org"
	pricePath      = "/swap/permit2/price"
	apiVersion     = "v2"
)

var _ app.QuoteSource = (*Adapter)(nil)

// Config is shared by the adapters of every network.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Limiter is shared across networks since they spend one API key.
	Limiter httpclient.Waiter
}

// Adapter quotes one whole token against the network's stablecoin.
type Adapter struct {
	id      string
	network asset.Network
	client  httpclient.Client
	breaker *circuitbreaker.CircuitBreaker[priceResponse]
	log     logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates the adapter for network. Its source id is "0x:<network>".
func New(network asset.Network, cfg Config, log logger.LoggerInterface) (*Adapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	id := "0x:" + network.Name

	headers := map[string]string{
		"Accept":     "application/json",
		"0x-version": apiVersion,
	}
	if cfg.APIKey != "" {
		headers["0x-api-key"] = cfg.APIKey
	}

	tracer := otel.Tracer(tracerName)
	opts := []httpclient.ClientOption{
		httpclient.WithProviderName(id),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(headers),
		httpclient.WithTraceOptions(tracer),
	}
	if cfg.Limiter != nil {
		opts = append(opts, httpclient.WithLimiter(cfg.Limiter))
	}
	client, err := httpclient.NewInstrumentedClient(opts...)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}

	bcfg := circuitbreaker.DefaultConfig(id)
	bcfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		u, ok := domain.AsUnavailable(err)
		return ok && (u.Kind == domain.KindNotListed || u.Kind == domain.KindParseError)
	}

	return &Adapter{
		id:      id,
		network: network,
		client:  client,
		breaker: circuitbreaker.New[priceResponse](bcfg),
		log:     log,
		tracer:  tracer,
		now:     time.Now,
	}, nil
}

func (a *Adapter) ID() string { return a.id }

type priceResponse struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	SellAmount         string `json:"sellAmount"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (a *Adapter) FetchQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, error) {
	token, ok := inst.Contract(a.network.Name)
	if !ok {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindUnsupported,
			"no contract on "+a.network.Name, nil)
	}
	decimals := inst.Decimals(a.network.Name)
	sellAmount := asset.OneUnit(decimals)

	ctx, span := a.tracer.Start(ctx, "zeroex.fetch_quote", trace.WithAttributes(
		attribute.String("network", a.network.Name),
		attribute.String("token", token.Hex()),
	))
	defer span.End()

	res, err := a.breaker.Execute(func() (priceResponse, error) {
		var out priceResponse
		_, err := a.client.NewRequest(
			httpclient.WithLabels(httpclient.NewLabel("network", a.network.Name)),
			httpclient.WithResponseErrorHandler(a.handleError),
		).
			SetQueryParam("chainId", strconv.FormatUint(a.network.ChainID, 10)).
			SetQueryParam("sellToken", token.Hex()).
			SetQueryParam("buyToken", a.network.Stable.Address.Hex()).
			SetQueryParam("sellAmount", sellAmount.String()).
			SetResult(&out).
			Get(ctx, pricePath)
		if err != nil {
			return priceResponse{}, err
		}
		if !out.LiquidityAvailable {
			return priceResponse{}, domain.NewUnavailable(a.id, domain.KindNotListed, "no liquidity", nil)
		}
		return out, nil
	})
	if err != nil {
		u := infra.Classify(a.id, err)
		span.RecordError(u)
		return domain.Quote{}, u
	}

	buy, ok := new(big.Int).SetString(res.BuyAmount, 10)
	if !ok || buy.Sign() <= 0 {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindParseError, "buyAmount "+res.BuyAmount, nil)
	}
	price, err := asset.PriceFromRaw(sellAmount, decimals, buy, a.network.Stable.Decimals)
	if err != nil {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindParseError, "price", err)
	}
	q, err := domain.NewQuote(a.id, inst.Symbol, price, a.now())
	if err != nil {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindParseError, "price", err)
	}
	span.SetAttributes(attribute.String("price", price.String()))
	return q, nil
}

// handleError maps API errors before the generic status handling.
func (a *Adapter) handleError(status int, header http.Header, body []byte) error {
	if status < 400 {
		return nil
	}
	var e apiError
	_ = json.Unmarshal(body, &e)
	if status == http.StatusBadRequest && (e.Name == "TOKEN_NOT_SUPPORTED" || e.Name == "INSUFFICIENT_LIQUIDITY") {
		return domain.NewUnavailable(a.id, domain.KindNotListed, e.Name, nil)
	}
	return &httpclient.StatusError{
		Provider:   a.id,
		StatusCode: status,
		Body:       body,
		RetryAfter: httpclient.ParseRetryAfter(header, time.Now()),
	}
}
