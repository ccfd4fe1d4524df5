package asset

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for token")
)

// OneUnit returns 10^decimals, the raw size of one whole token.
func OneUnit(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// ToDecimal converts a raw on-chain amount to a human amount.
func ToDecimal(raw *big.Int, decimals uint8) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, ErrNilRaw
	}
	if raw.Sign() < 0 {
		return decimal.Zero, ErrNegativeAmount
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

// FromDecimal converts a human amount to raw units. It rejects negative
// values and values finer than the token's precision.
func FromDecimal(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	return scaled.BigInt(), nil
}

// PriceFromRaw returns amountOut/amountIn adjusted for both tokens' decimals.
func PriceFromRaw(amountIn *big.Int, decimalsIn uint8, amountOut *big.Int, decimalsOut uint8) (decimal.Decimal, error) {
	in, err := ToDecimal(amountIn, decimalsIn)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := ToDecimal(amountOut, decimalsOut)
	if err != nil {
		return decimal.Zero, err
	}
	if in.IsZero() {
		return decimal.Zero, errors.New("asset: zero input amount")
	}
	return out.DivRound(in, 18), nil
}
