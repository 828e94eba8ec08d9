// Package numeric implements the integer amount arithmetic the ledger relies
// on: exact-decimal fraction multiplication with floor rounding, big-int
// ratio multiplication, and saturating subtraction. No binary floats.
package numeric

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MulFrac returns floor(amount * frac). Negative products clamp to zero.
func MulFrac(amount uint64, frac decimal.Decimal) uint64 {
	if frac.Sign() <= 0 || amount == 0 {
		return 0
	}
	out := decimal.NewFromUint64(amount).Mul(frac).Floor()
	bi := out.BigInt()
	if !bi.IsUint64() {
		// Only reachable with multipliers above 1; fractions <= 1 cannot
		// overflow a uint64 input.
		return ^uint64(0)
	}
	return bi.Uint64()
}

// MulRatio returns floor(amount * num / den). A zero denominator yields zero.
func MulRatio(amount, num, den uint64) uint64 {
	if den == 0 || amount == 0 || num == 0 {
		return 0
	}
	res := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(num))
	res.Quo(res, new(big.Int).SetUint64(den))
	if !res.IsUint64() {
		return ^uint64(0)
	}
	return res.Uint64()
}

// CheckedAdd returns a+b and reports whether the sum fits in a uint64.
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// SatSub returns a-b, saturating at zero.
func SatSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
