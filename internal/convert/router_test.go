package convert

import (
	"context"
	"strings"
	"testing"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// stubQuoter simulates a fixed-price venue: 1 inj = 10 usdc.
type stubQuoter struct {
	fail bool
}

func (q *stubQuoter) Simulate(_ context.Context, offer, ask string, amount uint64) (uint64, error) {
	if q.fail {
		return 0, apperrors.New(apperrors.ErrConversion, "venue down", nil)
	}
	if offer == "inj" && ask == "usdc" {
		return amount * 10, nil
	}
	return amount / 10, nil
}

func (q *stubQuoter) BuildSwap(offer, ask string, amount, minOut uint64) (model.Instruction, error) {
	msg := map[string]any{"swap": map[string]any{"offer": offer, "ask": ask, "minimum_receive": minOut}}
	return model.NewInvoke("0xRouter", msg, model.Coin{Denom: offer, Amount: amount})
}

func TestIdentityConversion(t *testing.T) {
	r := NewRouter(&stubQuoter{}, "usdc")
	instr, out, err := r.ToBase(context.Background(), "usdc", 100, decimal.RequireFromString("0.01"), "0xVault")
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), out)
	assert.Equal(t, model.InstructionTransfer, instr.Type)
	assert.Equal(t, "0xVault", instr.Target)
	assert.Equal(t, uint64(100), instr.Funds[0].Amount)
}

func TestZeroAmountRejected(t *testing.T) {
	r := NewRouter(&stubQuoter{}, "usdc")
	_, _, err := r.ToBase(context.Background(), "inj", 0, decimal.Zero, "0xVault")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAmount))

	_, _, err = r.FromBase(context.Background(), "usdc", 0, decimal.Zero, "0xVault")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAmount))
}

func TestSlippageFloor(t *testing.T) {
	r := NewRouter(&stubQuoter{}, "usdc")
	// 100 inj -> simulated 1000 usdc; 1% slippage -> floor 990
	instr, out, err := r.ToBase(context.Background(), "inj", 100, decimal.RequireFromString("0.01"), "0xVault")
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), out)
	assert.Equal(t, model.InstructionInvoke, instr.Type)
	if !strings.Contains(string(instr.Msg), "990") {
		t.Fatalf("expected minimum_receive 990 in %s", instr.Msg)
	}
}

func TestSlippageFloorFloors(t *testing.T) {
	// floor(99 * 0.99) = 98, not 98.01 rounded up
	got := numeric.MulFrac(99, decimal.NewFromInt(1).Sub(decimal.RequireFromString("0.01")))
	assert.Equal(t, uint64(98), got)
}

func TestVenueFailureSurfacesConversionError(t *testing.T) {
	r := NewRouter(&stubQuoter{fail: true}, "usdc")
	_, _, err := r.ToBase(context.Background(), "inj", 100, decimal.Zero, "0xVault")
	assert.True(t, apperrors.Is(err, apperrors.ErrConversion))
}
