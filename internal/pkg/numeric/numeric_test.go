package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMulFracFloors(t *testing.T) {
	frac := decimal.RequireFromString("0.3")
	assert.Equal(t, uint64(30), MulFrac(100, frac))
	assert.Equal(t, uint64(0), MulFrac(1, frac)) // 0.3 floors to 0
	assert.Equal(t, uint64(3), MulFrac(11, frac))
}

func TestMulFracEdges(t *testing.T) {
	one := decimal.NewFromInt(1)
	assert.Equal(t, uint64(12345), MulFrac(12345, one))
	assert.Equal(t, uint64(0), MulFrac(12345, decimal.Zero))
	assert.Equal(t, uint64(0), MulFrac(0, one))
}

func TestMulRatio(t *testing.T) {
	// 40 * 100/400 = 10, 40 * 300/400 = 30
	assert.Equal(t, uint64(10), MulRatio(40, 100, 400))
	assert.Equal(t, uint64(30), MulRatio(40, 300, 400))
	// floor division
	assert.Equal(t, uint64(33), MulRatio(100, 1, 3))
	// zero denominator
	assert.Equal(t, uint64(0), MulRatio(100, 1, 0))
}

func TestMulRatioNoIntermediateOverflow(t *testing.T) {
	big := uint64(1) << 62
	if got := MulRatio(big, big, big); got != big {
		t.Fatalf("expected %d, got %d", big, got)
	}
}

func TestCheckedAdd(t *testing.T) {
	sum, ok := CheckedAdd(2, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), sum)

	max := ^uint64(0)
	sum, ok = CheckedAdd(max, 0)
	assert.True(t, ok)
	assert.Equal(t, max, sum)

	_, ok = CheckedAdd(max, 1)
	assert.False(t, ok)
	_, ok = CheckedAdd(uint64(1)<<63, uint64(1)<<63)
	assert.False(t, ok)
}

func TestSatSub(t *testing.T) {
	assert.Equal(t, uint64(5), SatSub(10, 5))
	assert.Equal(t, uint64(0), SatSub(5, 10))
	assert.Equal(t, uint64(0), SatSub(5, 5))
}
