// Package uniswap quotes on-chain prices from Uniswap V3 QuoterV2.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/circuitbreaker"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
	method     = "quoteExactInputSingle"
)

var _ app.QuoteSource = (*Adapter)(nil)

// CallerFunc returns a contract caller for a network, dialing if needed.
type CallerFunc func(ctx context.Context, network string) (ethereum.ContractCaller, error)

// Config configures the adapter for one network.
type Config struct {
	Network  asset.Network
	Quoter   common.Address
	FeeTiers []int
}

// Adapter quotes one whole token against the network's stablecoin,
// keeping the best output across fee tiers.
type Adapter struct {
	id       string
	network  asset.Network
	quoter   common.Address
	feeTiers []int
	abi      abi.ABI
	caller   CallerFunc
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	log      logger.LoggerInterface
	tracer   trace.Tracer
	now      func() time.Time

	callLatency metric.Float64Histogram
}

// New creates the adapter. Its source id is "uniswap:<network>".
func New(cfg Config, caller CallerFunc, log logger.LoggerInterface) (*Adapter, error) {
	parsed, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = DefaultFeeTiers
	}
	id := "uniswap:" + cfg.Network.Name

	callLatency, err := otel.Meter(meterName).Float64Histogram("uniswap_quoter_call_ms",
		metric.WithDescription("QuoterV2 eth_call latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	bcfg := circuitbreaker.DefaultConfig(id)
	// Reverts mean "no pool at this tier", not a sick node.
	bcfg.IsSuccessful = func(err error) bool {
		return err == nil || isRevert(err)
	}

	return &Adapter{
		id:          id,
		network:     cfg.Network,
		quoter:      cfg.Quoter,
		feeTiers:    tiers,
		abi:         parsed,
		caller:      caller,
		cb:          circuitbreaker.New[[]byte](bcfg),
		log:         log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		callLatency: callLatency,
	}, nil
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) FetchQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, error) {
	token, ok := inst.Contract(a.network.Name)
	if !ok {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindUnsupported,
			"no contract on "+a.network.Name, nil)
	}
	stable := a.network.Stable
	if token == stable.Address {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindUnsupported, "token is the quote stable", nil)
	}

	ctx, span := a.tracer.Start(ctx, "uniswap.fetch_quote", trace.WithAttributes(
		attribute.String("network", a.network.Name),
		attribute.String("token", token.Hex()),
	))
	defer span.End()

	caller, err := a.caller(ctx, a.network.Name)
	if err != nil {
		u := infra.Classify(a.id, err)
		span.RecordError(u)
		return domain.Quote{}, u
	}

	decimals := inst.Decimals(a.network.Name)
	amountIn := asset.OneUnit(decimals)

	var (
		best     *QuoteResult
		bestTier int
		lastErr  error
		reverts  int
	)
	for _, tier := range a.feeTiers {
		res, err := a.quoteTier(ctx, caller, token, stable.Address, amountIn, tier)
		if err != nil {
			if isRevert(err) {
				reverts++
			}
			lastErr = err
			span.AddEvent("fee_tier_failed", trace.WithAttributes(
				attribute.Int("fee_tier", tier), attribute.String("error", err.Error())))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if best == nil || res.AmountOut.Cmp(best.AmountOut) > 0 {
			best, bestTier = res, tier
		}
	}

	if best == nil {
		span.SetStatus(codes.Error, "no quote")
		if reverts == len(a.feeTiers) {
			return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindNotListed, "no pool for "+stable.Symbol, lastErr)
		}
		return domain.Quote{}, infra.Classify(a.id, lastErr)
	}

	price, err := asset.PriceFromRaw(amountIn, decimals, best.AmountOut, stable.Decimals)
	if err != nil {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindParseError, "amountOut", err)
	}
	q, err := domain.NewQuote(a.id, inst.Symbol, price, a.now())
	if err != nil {
		return domain.Quote{}, domain.NewUnavailable(a.id, domain.KindParseError, "zero output", err)
	}

	span.SetAttributes(attribute.Int("fee_tier", bestTier), attribute.String("price", price.String()))
	a.log.Debug(ctx, "uniswap quote",
		"network", a.network.Name, "instrument", inst.Symbol, "fee_tier", bestTier, "price", price.String())
	return q, nil
}

func (a *Adapter) quoteTier(ctx context.Context, caller ethereum.ContractCaller, tokenIn, tokenOut common.Address, amountIn *big.Int, tier int) (*QuoteResult, error) {
	data, err := a.abi.Pack(method, QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(tier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}

	start := time.Now()
	out, err := a.cb.Execute(func() ([]byte, error) {
		return caller.CallContract(ctx, ethereum.CallMsg{To: &a.quoter, Data: data}, nil)
	})
	a.callLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("network", a.network.Name), attribute.Int("fee_tier", tier)))
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContext(fmt.Sprintf("fee tier %d", tier)))
	}

	values, err := a.abi.Unpack(method, out)
	if err != nil || len(values) < 4 {
		return nil, domain.NewUnavailable(a.id, domain.KindParseError, "decode quoter output", err)
	}
	amountOut, ok := values[0].(*big.Int)
	if !ok {
		return nil, domain.NewUnavailable(a.id, domain.KindParseError, "amountOut type", nil)
	}
	res := &QuoteResult{AmountOut: amountOut}
	res.SqrtPriceX96After, _ = values[1].(*big.Int)
	res.InitializedTicksCrossed, _ = values[2].(uint32)
	res.GasEstimate, _ = values[3].(*big.Int)
	return res, nil
}

// isRevert reports whether err is an execution revert from the node.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.Contains(e.Error(), "execution reverted") {
			return true
		}
	}
	return false
}
