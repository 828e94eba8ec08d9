package protocol

import (
	"context"
	"strconv"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/shopspring/decimal"
)

// neptuneAdapter integrates Neptune Finance staking.
type neptuneAdapter struct {
	contractAddr string
	reg          *Registry
}

func newNeptuneAdapter(contractAddr string, reg *Registry) Adapter {
	return &neptuneAdapter{contractAddr: contractAddr, reg: reg}
}

func (a *neptuneAdapter) Name() string { return "Neptune" }

func (a *neptuneAdapter) Deposit(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{"stake": map[string]any{}}
	instr, err := model.NewInvoke(a.contractAddr, msg, model.Coin{
		Denom:  a.reg.baseDenom,
		Amount: amount,
	})
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *neptuneAdapter) Withdraw(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{
		"unstake": map[string]any{"amount": strconv.FormatUint(amount, 10)},
	}
	instr, err := model.NewInvoke(a.contractAddr, msg)
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *neptuneAdapter) QueryBalance(ctx context.Context) (uint64, error) {
	var resp struct {
		Amount uint64 `json:"amount,string"`
	}
	req := map[string]any{
		"staked_balance": map[string]any{"address": a.reg.vaultAddr},
	}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (a *neptuneAdapter) QueryAPY(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		APY decimal.Decimal `json:"apy"`
	}
	req := map[string]any{"staking_rate": map[string]any{}}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.APY, nil
}
