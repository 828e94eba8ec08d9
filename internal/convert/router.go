// Package convert is the denomination-conversion boundary: it turns amounts
// in any accepted denom into the canonical accounting unit and back, under a
// maximum-slippage bound. Slippage protection is enforced by the venue via
// the minimum-receive floor baked into the swap instruction; nothing is
// re-checked locally after the fact.
package convert

import (
	"context"
	"fmt"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
	"github.com/astrobalance/vaultgate/internal/venue"
	"github.com/shopspring/decimal"
)

type Router struct {
	quoter    venue.Quoter
	baseDenom string
}

func NewRouter(quoter venue.Quoter, baseDenom string) *Router {
	return &Router{quoter: quoter, baseDenom: baseDenom}
}

// ToBase converts amount of denom into the canonical unit. recipient is the
// transfer target for the identity case (denom already canonical). Returns
// the instruction to execute and the simulated output the ledger credits.
func (r *Router) ToBase(ctx context.Context, denom string, amount uint64, maxSlippage decimal.Decimal, recipient string) (model.Instruction, uint64, error) {
	return r.convert(ctx, denom, r.baseDenom, amount, maxSlippage, recipient)
}

// FromBase converts amount of the canonical unit into denom.
func (r *Router) FromBase(ctx context.Context, denom string, amount uint64, maxSlippage decimal.Decimal, recipient string) (model.Instruction, uint64, error) {
	return r.convert(ctx, r.baseDenom, denom, amount, maxSlippage, recipient)
}

func (r *Router) convert(ctx context.Context, offerDenom, askDenom string, amount uint64, maxSlippage decimal.Decimal, recipient string) (model.Instruction, uint64, error) {
	if amount == 0 {
		return model.Instruction{}, 0, apperrors.New(apperrors.ErrInvalidAmount, "cannot convert zero amount", nil)
	}

	// Identity conversion: no venue call, output equals input.
	if offerDenom == askDenom {
		return model.NewTransfer(recipient, model.Coin{Denom: offerDenom, Amount: amount}), amount, nil
	}

	simulated, err := r.quoter.Simulate(ctx, offerDenom, askDenom, amount)
	if err != nil {
		if _, ok := err.(*apperrors.AppError); ok {
			return model.Instruction{}, 0, err
		}
		return model.Instruction{}, 0, apperrors.New(apperrors.ErrConversion,
			fmt.Sprintf("simulate %s->%s failed", offerDenom, askDenom), err)
	}

	// min_expected = floor(simulated * (1 - max_slippage)); the venue aborts
	// the swap if it cannot deliver at least this much.
	minExpected := numeric.MulFrac(simulated, decimal.NewFromInt(1).Sub(maxSlippage))

	instr, err := r.quoter.BuildSwap(offerDenom, askDenom, amount, minExpected)
	if err != nil {
		return model.Instruction{}, 0, err
	}
	return instr, simulated, nil
}
