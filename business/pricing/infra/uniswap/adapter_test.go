package uniswap

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/logger"
)

var quoterAddr = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")

// fakeQuoter answers quoteExactInputSingle from a per-tier table.
type fakeQuoter struct {
	t       *testing.T
	abi     abi.ABI
	outputs map[int64]*big.Int
	errs    map[int64]error

	mu    sync.Mutex
	calls []QuoteExactInputSingleParams
}

func newFakeQuoter(t *testing.T) *fakeQuoter {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeQuoter{t: t, abi: parsed, outputs: map[int64]*big.Int{}, errs: map[int64]error{}}
}

func (f *fakeQuoter) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != quoterAddr {
		f.t.Errorf("call to %v, want quoter", msg.To)
	}
	m := f.abi.Methods[method]
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		f.t.Fatalf("unpack input: %v", err)
	}
	params := *abi.ConvertType(args[0], new(QuoteExactInputSingleParams)).(*QuoteExactInputSingleParams)

	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()

	fee := params.Fee.Int64()
	if err, ok := f.errs[fee]; ok {
		return nil, err
	}
	out, ok := f.outputs[fee]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return m.Outputs.Pack(out, big.NewInt(1), uint32(2), big.NewInt(90000))
}

func (f *fakeQuoter) callerFunc() CallerFunc {
	return func(context.Context, string) (ethereum.ContractCaller, error) { return f, nil }
}

func linkOnEthereum(t *testing.T) domain.Instrument {
	t.Helper()
	inst, err := domain.NewInstrument("LINK/USDT",
		map[string]string{"ethereum": "0x514910771AF9Ca656af840dff83E8264EcF986CA"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return inst
}

func newAdapter(t *testing.T, caller CallerFunc) *Adapter {
	t.Helper()
	a, err := New(Config{Network: asset.Ethereum, Quoter: quoterAddr}, caller, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAdapter_BestFeeTierWins(t *testing.T) {
	q := newFakeQuoter(t)
	q.outputs[FeeTier005] = big.NewInt(14_400_000) // 14.4 USDT
	q.outputs[FeeTier030] = big.NewInt(14_520_000) // 14.52 USDT
	// 1% tier has no pool and reverts.

	a := newAdapter(t, q.callerFunc())
	if a.ID() != "uniswap:ethereum" {
		t.Errorf("id = %s", a.ID())
	}
	quote, err := a.FetchQuote(context.Background(), linkOnEthereum(t))
	if err != nil {
		t.Fatal(err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("14.52")) {
		t.Errorf("price = %s, want 14.52", quote.Price)
	}
	if len(q.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(q.calls))
	}
	c := q.calls[0]
	if c.TokenOut != asset.Ethereum.Stable.Address {
		t.Errorf("tokenOut = %s", c.TokenOut.Hex())
	}
	if c.AmountIn.Cmp(asset.OneUnit(18)) != 0 {
		t.Errorf("amountIn = %s", c.AmountIn)
	}
}

func TestAdapter_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(q *fakeQuoter)
		caller func(q *fakeQuoter) CallerFunc
		want   domain.Kind
	}{
		{
			name:  "no_pool_on_any_tier",
			setup: func(*fakeQuoter) {},
			want:  domain.KindNotListed,
		},
		{
			name: "rpc_down",
			setup: func(q *fakeQuoter) {
				for _, tier := range DefaultFeeTiers {
					q.errs[int64(tier)] = errors.New("connection refused")
				}
			},
			want: domain.KindTransport,
		},
		{
			name:  "dial_timeout",
			setup: func(*fakeQuoter) {},
			caller: func(*fakeQuoter) CallerFunc {
				return func(context.Context, string) (ethereum.ContractCaller, error) {
					return nil, context.DeadlineExceeded
				}
			},
			want: domain.KindTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuoter(t)
			tt.setup(q)
			caller := q.callerFunc()
			if tt.caller != nil {
				caller = tt.caller(q)
			}
			_, err := newAdapter(t, caller).FetchQuote(context.Background(), linkOnEthereum(t))
			u, ok := domain.AsUnavailable(err)
			if !ok {
				t.Fatalf("err = %v, want *Unavailable", err)
			}
			if u.Kind != tt.want {
				t.Errorf("kind = %s, want %s (%v)", u.Kind, tt.want, err)
			}
		})
	}
}

func TestAdapter_UnsupportedWithoutContract(t *testing.T) {
	inst, _ := domain.NewInstrument("LINK/USDT", map[string]string{"bsc": "0xF8A0BF9cF54Bb92F17374d9e9A321E6a111a51bD"}, nil)
	called := false
	a := newAdapter(t, func(context.Context, string) (ethereum.ContractCaller, error) {
		called = true
		return nil, errors.New("should not dial")
	})
	_, err := a.FetchQuote(context.Background(), inst)
	u, ok := domain.AsUnavailable(err)
	if !ok || u.Kind != domain.KindUnsupported {
		t.Errorf("err = %v, want unsupported", err)
	}
	if called {
		t.Error("dialed for a network without a contract")
	}
}

func TestAdapter_RevertsDoNotTripBreaker(t *testing.T) {
	q := newFakeQuoter(t)
	a := newAdapter(t, q.callerFunc())
	inst := linkOnEthereum(t)
	for i := 0; i < 5; i++ {
		_, err := a.FetchQuote(context.Background(), inst)
		if u, ok := domain.AsUnavailable(err); !ok || u.Kind != domain.KindNotListed {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
}
