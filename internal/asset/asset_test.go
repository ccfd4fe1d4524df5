package asset

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals uint8
		want     string
		wantErr  error
	}{
		{name: "one_eth", raw: OneUnit(18), decimals: 18, want: "1"},
		{name: "usdt_6_decimals", raw: big.NewInt(3_412_250_000), decimals: 6, want: "3412.25"},
		{name: "zero", raw: big.NewInt(0), decimals: 18, want: "0"},
		{name: "nil", raw: nil, decimals: 18, wantErr: ErrNilRaw},
		{name: "negative", raw: big.NewInt(-1), decimals: 6, wantErr: ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDecimal(tt.raw, tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals uint8
		want     string
		wantErr  error
	}{
		{name: "whole", in: "2", decimals: 6, want: "2000000"},
		{name: "fractional", in: "0.5", decimals: 18, want: "500000000000000000"},
		{name: "too_precise", in: "0.0000001", decimals: 6, wantErr: ErrTooManyDecimals},
		{name: "negative", in: "-1", decimals: 6, wantErr: ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimal(decimal.RequireFromString(tt.in), tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPriceFromRaw(t *testing.T) {
	// 1 WETH (18 decimals) -> 3400.5 USDT (6 decimals)
	price, err := PriceFromRaw(OneUnit(18), 18, big.NewInt(3_400_500_000), 6)
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(decimal.RequireFromString("3400.5")) {
		t.Errorf("price = %s", price)
	}

	if _, err := PriceFromRaw(big.NewInt(0), 18, big.NewInt(1), 6); err == nil {
		t.Error("expected error for zero input")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	n, ok := r.Get(" BSC ")
	if !ok {
		t.Fatal("bsc not registered")
	}
	if n.ChainID != ChainIDBSC || n.Stable.Decimals != 18 {
		t.Errorf("bsc = %+v", n)
	}

	if _, ok := r.Get("solana"); ok {
		t.Error("unexpected network solana")
	}

	names := r.Names()
	if len(names) != 6 || names[0] != "arbitrum" {
		t.Errorf("names = %v", names)
	}

	addr := common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")
	if got := Ethereum.TokenURL(addr); got != "https://etherscan.io/token/"+addr.Hex() {
		t.Errorf("TokenURL = %s", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet should panic on unknown network")
		}
	}()
	r.MustGet("solana")
}
