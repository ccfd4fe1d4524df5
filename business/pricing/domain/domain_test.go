package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewInstrument(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{name: "ok", symbol: "link/usdt"},
		{name: "no_slash", symbol: "LINKUSDT", wantErr: true},
		{name: "empty_quote", symbol: "LINK/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewInstrument(tt.symbol, nil, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if inst.Symbol != "LINK/USDT" || inst.Base != "LINK" || inst.Quote != "USDT" {
				t.Errorf("inst = %+v", inst)
			}
		})
	}
}

func TestInstrument_ContractsAndDecimals(t *testing.T) {
	inst, err := NewInstrument("LINK/USDT",
		map[string]string{"Ethereum": "0x514910771AF9Ca656af840dff83E8264EcF986CA"},
		map[string]uint8{"bsc": 8},
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := inst.Contract("ethereum"); !ok {
		t.Error("ethereum contract missing")
	}
	if _, ok := inst.Contract("bsc"); ok {
		t.Error("unexpected bsc contract")
	}
	if inst.Decimals("ethereum") != 18 || inst.Decimals("BSC") != 8 {
		t.Errorf("decimals = %d/%d", inst.Decimals("ethereum"), inst.Decimals("bsc"))
	}

	if _, err := NewInstrument("LINK/USDT", map[string]string{"bsc": "0xnope"}, nil); err == nil {
		t.Error("expected invalid contract error")
	}
}

func TestPriceMap_OrderAndUniqueness(t *testing.T) {
	pm := NewPriceMap("ETH/USDT")
	now := time.Now()
	for _, src := range []string{"okx", "binance", "0x:bsc"} {
		q, err := NewQuote(src, "ETH/USDT", decimal.NewFromInt(100), now)
		if err != nil {
			t.Fatal(err)
		}
		if err := pm.Add(q); err != nil {
			t.Fatal(err)
		}
	}

	dup, _ := NewQuote("okx", "ETH/USDT", decimal.NewFromInt(1), now)
	if err := pm.Add(dup); err == nil {
		t.Error("duplicate source accepted")
	}
	other, _ := NewQuote("kucoin", "BTC/USDT", decimal.NewFromInt(1), now)
	if err := pm.Add(other); err == nil {
		t.Error("quote for another instrument accepted")
	}

	var got []string
	for _, q := range pm.Quotes() {
		got = append(got, q.SourceID)
	}
	if fmt.Sprint(got) != "[okx binance 0x:bsc]" {
		t.Errorf("order = %v", got)
	}
	if q, ok := pm.Get("okx"); !ok || !q.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Get(okx) = %+v, %v", q, ok)
	}
}

func TestNewQuote_RejectsNonPositive(t *testing.T) {
	for _, p := range []string{"0", "-1"} {
		if _, err := NewQuote("binance", "ETH/USDT", decimal.RequireFromString(p), time.Now()); err == nil {
			t.Errorf("price %s accepted", p)
		}
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("i/o timeout")
	var err error = NewUnavailable("bybit", KindTimeout, "ticker", cause)

	u, ok := AsUnavailable(fmt.Errorf("wrapped: %w", err))
	if !ok || u.Kind != KindTimeout || u.Source != "bybit" {
		t.Fatalf("AsUnavailable = %+v, %v", u, ok)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if err.Error() != "bybit unavailable (timeout): ticker: i/o timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
	if KindNotListed.String() != "not_listed" {
		t.Errorf("kind string = %s", KindNotListed)
	}
}
