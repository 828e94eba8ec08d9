package protocol

import (
	"context"
	"strconv"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/shopspring/decimal"
)

// helixAdapter integrates the Helix market-making vault.
type helixAdapter struct {
	contractAddr string
	reg          *Registry
}

func newHelixAdapter(contractAddr string, reg *Registry) Adapter {
	return &helixAdapter{contractAddr: contractAddr, reg: reg}
}

func (a *helixAdapter) Name() string { return "Helix" }

func (a *helixAdapter) Deposit(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{"deposit": map[string]any{}}
	instr, err := model.NewInvoke(a.contractAddr, msg, model.Coin{
		Denom:  a.reg.baseDenom,
		Amount: amount,
	})
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *helixAdapter) Withdraw(amount uint64) ([]model.Instruction, error) {
	msg := map[string]any{
		"withdraw": map[string]any{"amount": strconv.FormatUint(amount, 10)},
	}
	instr, err := model.NewInvoke(a.contractAddr, msg)
	if err != nil {
		return nil, err
	}
	return []model.Instruction{instr}, nil
}

func (a *helixAdapter) QueryBalance(ctx context.Context) (uint64, error) {
	var resp struct {
		Amount uint64 `json:"amount,string"`
	}
	req := map[string]any{
		"balance": map[string]any{"address": a.reg.vaultAddr},
	}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (a *helixAdapter) QueryAPY(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		APY decimal.Decimal `json:"apy"`
	}
	req := map[string]any{"apy": map[string]any{}}
	if err := a.reg.querier.SmartQuery(ctx, a.contractAddr, req, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.APY, nil
}
