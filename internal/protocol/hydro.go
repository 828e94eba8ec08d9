package protocol

import (
	"context"
	"strconv"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/shopspring/decimal"
)

// hydroAdapter integrates the Hydro lending market. Hydro calls its
// positions "supplied" rather than "deposited", hence the message names.
type hydroAdapter struct {
	contractAddr string
	reg          *Registry
}

func newHydroAdapter(contractAddr string, reg *Registry) Adapter {
	return &hydroAdapter{contractAddr: contractAddr, reg: reg}
}

func (a *hydroAdapter) Name() string { return "Hydro" }

func (a *hydroAdapter) Deposit(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{"lend": map[string]any{}}
	instr, err := model.NewInvoke(a.contractAddr, msg, model.Coin{
		Denom:  a.reg.baseDenom,
		Amount: amount,
	})
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *hydroAdapter) Withdraw(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{
		"redeem": map[string]any{"amount": strconv.FormatUint(amount, 10)},
	}
	instr, err := model.NewInvoke(a.contractAddr, msg)
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *hydroAdapter) QueryBalance(ctx context.Context) (uint64, error) {
	var resp struct {
		SuppliedAmount uint64 `json:"supplied_amount,string"`
	}
	req := map[string]any{
		"lender_balance": map[string]any{"address": a.reg.vaultAddr},
	}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return 0, err
	}
	return resp.SuppliedAmount, nil
}

func (a *hydroAdapter) QueryAPY(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Rate decimal.Decimal `json:"rate"`
	}
	req := map[string]any{"lending_rate": map[string]any{}}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Rate, nil
}
