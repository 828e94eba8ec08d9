package vault

import (
	"context"
	"fmt"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
)

// Withdraw debits the caller and pulls funds out of protocols in proportion
// to their current balances. A non-base payout denom routes through the
// conversion venue; otherwise the payout is a plain transfer.
func (s *Service) Withdraw(ctx context.Context, caller string, amount uint64, denom string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidAmount, "withdraw amount must be greater than zero", nil)
	}

	user, err := loadUser(ctx, tx, caller)
	if err != nil {
		return nil, err
	}
	if user.TotalValue < amount {
		return nil, apperrors.New(apperrors.ErrInsufficientFunds,
			fmt.Sprintf("balance %d is less than requested %d", user.TotalValue, amount), nil)
	}

	result := model.NewOperationResult("withdraw")

	if err := s.pullProportional(ctx, tx, result, amount); err != nil {
		return nil, err
	}

	payout, err := s.payoutInstruction(ctx, tx, cfg, caller, amount, denom)
	if err != nil {
		return nil, err
	}
	result.Add(payout)

	user.TotalValue -= amount
	if err := saveUser(ctx, tx, caller, user); err != nil {
		return nil, err
	}

	total, err := loadTotalValue(ctx, tx)
	if err != nil {
		return nil, err
	}
	total = numeric.SatSub(total, amount)
	if err := saveTotalValue(ctx, tx, total); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result.Attributes["withdrawer"] = caller
	result.Attributes["amount"] = fmt.Sprintf("%d", amount)

	metrics.OperationsTotal.WithLabelValues("withdraw", "ok").Inc()
	metrics.TotalValue.Set(float64(total))
	logger.Get().Info("withdraw accepted", "withdrawer", caller, "amount", amount)

	return result, nil
}

// EmergencyWithdraw exits the caller's whole position immediately. A flat
// fee is withheld from the payout; the user's full balance leaves the
// accounting. The user record is zeroed even when rounding leaves protocol
// dust behind.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller string, denom string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return nil, err
	}

	user, err := loadUser(ctx, tx, caller)
	if err != nil {
		return nil, err
	}
	if user.TotalValue == 0 {
		return nil, apperrors.New(apperrors.ErrNoFunds, "no balance to withdraw", nil)
	}

	userTotal := user.TotalValue
	fee := numeric.MulFrac(userTotal, rp.EmergencyWithdrawalFee)
	payoutAmount := userTotal - fee

	total, err := loadTotalValue(ctx, tx)
	if err != nil {
		return nil, err
	}

	result := model.NewOperationResult("emergency_withdraw")

	// Each protocol gives up the user's share of the whole pool, not of the
	// deployed portion; value idle in the vault account covers the rest.
	if err := s.pullByPoolShare(ctx, tx, result, userTotal, total); err != nil {
		return nil, err
	}

	if payoutAmount > 0 {
		payout, err := s.payoutInstruction(ctx, tx, cfg, caller, payoutAmount, denom)
		if err != nil {
			return nil, err
		}
		result.Add(payout)
	}

	// 全额出账：总值按用户余额扣减，费用留在金库银行余额里
	user.TotalValue = 0
	if err := saveUser(ctx, tx, caller, user); err != nil {
		return nil, err
	}

	total = numeric.SatSub(total, userTotal)
	if err := saveTotalValue(ctx, tx, total); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result.Attributes["withdrawer"] = caller
	result.Attributes["amount"] = fmt.Sprintf("%d", payoutAmount)
	result.Attributes["fee_amount"] = fmt.Sprintf("%d", fee)

	metrics.OperationsTotal.WithLabelValues("emergency_withdraw", "ok").Inc()
	metrics.TotalValue.Set(float64(total))
	logger.Get().Warn("emergency withdraw executed",
		"withdrawer", caller, "amount", payoutAmount, "fee", fee)

	return result, nil
}

// pullProportional stages withdraw instructions pulling amount out of the
// protocols, each contributing in proportion to its current balance. Floor
// division may under-pull by a few units of dust; that is deliberate, the
// vault account absorbs it.
func (s *Service) pullProportional(ctx context.Context, tx *ledger.Tx, result *model.OperationResult, amount uint64) error {
	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return err
	}

	var totalHeld uint64
	for _, p := range protocols {
		if !p.Enabled {
			continue
		}
		totalHeld += p.CurrentBalance
	}
	if totalHeld == 0 {
		return nil // everything is idle in the vault account
	}

	for _, p := range protocols {
		if !p.Enabled || p.CurrentBalance == 0 {
			continue
		}
		pull := numeric.MulRatio(amount, p.CurrentBalance, totalHeld)
		if pull == 0 {
			continue
		}
		adapter, err := s.registry.Resolve(p.Name, p.ContractAddr)
		if err != nil {
			return err
		}
		withdrawInstrs, err := adapter.Withdraw(pull)
		if err != nil {
			return err
		}
		result.Add(withdrawInstrs...)

		p.CurrentBalance = numeric.SatSub(p.CurrentBalance, pull)
		if err := saveProtocol(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

// pullByPoolShare stages withdraw instructions taking the user's fraction of
// the whole pool out of each enabled protocol: pull = balance * userTotal /
// poolTotal, floored.
func (s *Service) pullByPoolShare(ctx context.Context, tx *ledger.Tx, result *model.OperationResult, userTotal, poolTotal uint64) error {
	if poolTotal == 0 {
		return nil
	}
	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return err
	}
	for _, p := range protocols {
		if !p.Enabled || p.CurrentBalance == 0 {
			continue
		}
		pull := numeric.MulRatio(p.CurrentBalance, userTotal, poolTotal)
		if pull == 0 {
			continue
		}
		adapter, err := s.registry.Resolve(p.Name, p.ContractAddr)
		if err != nil {
			return err
		}
		withdrawInstrs, err := adapter.Withdraw(pull)
		if err != nil {
			return err
		}
		result.Add(withdrawInstrs...)

		p.CurrentBalance = numeric.SatSub(p.CurrentBalance, pull)
		if err := saveProtocol(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

// payoutInstruction builds the final leg handing value to the caller,
// converting out of the base denom when asked.
func (s *Service) payoutInstruction(ctx context.Context, tx *ledger.Tx, cfg *model.Config, caller string, amount uint64, denom string) (model.Instruction, error) {
	if denom == "" || denom == cfg.BaseDenom {
		return model.NewTransfer(caller, model.Coin{Denom: cfg.BaseDenom, Amount: amount}), nil
	}
	if !cfg.IsAccepted(denom) {
		return model.Instruction{}, apperrors.New(apperrors.ErrUnsupportedDenom,
			fmt.Sprintf("denom not accepted: %s", denom), nil)
	}
	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return model.Instruction{}, err
	}
	instr, _, err := s.converter.FromBase(ctx, denom, amount, rp.MaxSlippage, caller)
	return instr, err
}
