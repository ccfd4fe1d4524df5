package zeroex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const linkOnBSC = "0xF8A0BF9cF54Bb92F17374d9e9A321E6a111a51bD"

func linkInstrument(t *testing.T) domain.Instrument {
	t.Helper()
	inst, err := domain.NewInstrument("LINK/USDT",
		map[string]string{"bsc": linkOnBSC, "ethereum": "0x514910771AF9Ca656af840dff83E8264EcF986CA"},
		nil)
	if err != nil {
		t.Fatal(err)
	}
	return inst
}

func TestAdapter_FetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pricePath {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("chainId") != "56" {
			t.Errorf("chainId = %s", q.Get("chainId"))
		}
		if q.Get("sellToken") != common.HexToAddress(linkOnBSC).Hex() {
			t.Errorf("sellToken = %s", q.Get("sellToken"))
		}
		if q.Get("buyToken") != asset.BSC.Stable.Address.Hex() {
			t.Errorf("buyToken = %s", q.Get("buyToken"))
		}
		if q.Get("sellAmount") != "1000000000000000000" {
			t.Errorf("sellAmount = %s", q.Get("sellAmount"))
		}
		if r.Header.Get("0x-api-key") != "secret" || r.Header.Get("0x-version") != "v2" {
			t.Errorf("headers = %v", r.Header)
		}
		// 14.5 USDT with 18 decimals on BSC.
		_, _ = w.Write([]byte(`{"liquidityAvailable":true,"buyAmount":"14500000000000000000","sellAmount":"1000000000000000000"}`))
	}))
	defer srv.Close()

	a, err := New(asset.BSC, Config{BaseURL: srv.URL, APIKey: "secret"}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() != "0x:bsc" {
		t.Errorf("id = %s", a.ID())
	}
	q, err := a.FetchQuote(context.Background(), linkInstrument(t))
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(decimal.RequireFromString("14.5")) {
		t.Errorf("price = %s, want 14.5", q.Price)
	}
	if q.SourceID != "0x:bsc" || q.Instrument != "LINK/USDT" {
		t.Errorf("quote = %+v", q)
	}
}

func TestAdapter_SixDecimalStable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"liquidityAvailable":true,"buyAmount":"14512345"}`))
	}))
	defer srv.Close()

	a, _ := New(asset.Ethereum, Config{BaseURL: srv.URL}, logger.NewNop())
	q, err := a.FetchQuote(context.Background(), linkInstrument(t))
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(decimal.RequireFromString("14.512345")) {
		t.Errorf("price = %s", q.Price)
	}
}

func TestAdapter_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.Kind
	}{
		{name: "no_liquidity", status: 200, body: `{"liquidityAvailable":false,"zid":"0x1"}`, want: domain.KindNotListed},
		{name: "token_not_supported", status: 400, body: `{"name":"TOKEN_NOT_SUPPORTED","message":"Token is not supported"}`, want: domain.KindNotListed},
		{name: "rate_limited", status: 429, body: `{"name":"RATE_LIMITED"}`, want: domain.KindRateLimited},
		{name: "unauthorized", status: 401, body: `{"name":"UNAUTHORIZED"}`, want: domain.KindTransport},
		{name: "bad_amount", status: 200, body: `{"liquidityAvailable":true,"buyAmount":"abc"}`, want: domain.KindParseError},
		{name: "bad_json", status: 200, body: `{`, want: domain.KindParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, _ := New(asset.BSC, Config{BaseURL: srv.URL}, logger.NewNop())
			_, err := a.FetchQuote(context.Background(), linkInstrument(t))
			u, ok := domain.AsUnavailable(err)
			if !ok {
				t.Fatalf("err = %v, want *Unavailable", err)
			}
			if u.Kind != tt.want {
				t.Errorf("kind = %s, want %s", u.Kind, tt.want)
			}
		})
	}
}

func TestAdapter_UnsupportedNetwork(t *testing.T) {
	a, _ := New(asset.Polygon, Config{BaseURL: "http://127.0.0.1:1"}, logger.NewNop())
	_, err := a.FetchQuote(context.Background(), linkInstrument(t))
	u, ok := domain.AsUnavailable(err)
	if !ok || u.Kind != domain.KindUnsupported {
		t.Errorf("err = %v, want unsupported", err)
	}
}
