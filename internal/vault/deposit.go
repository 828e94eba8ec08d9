package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
)

// Deposit credits the caller with the base-denom value of the attached funds
// and spreads that value across enabled protocols by allocation. Non-base
// funds are routed through the conversion venue first; the credited value is
// the simulated output, so the user carries the conversion outcome, not the
// pool.
func (s *Service) Deposit(ctx context.Context, caller string, funds []model.Coin) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}

	// 资金校验顺序固定：无资金 → 多币种 → 零额 → 不支持的币种
	if len(funds) == 0 {
		return nil, apperrors.New(apperrors.ErrNoFunds, "no funds sent with deposit", nil)
	}
	if len(funds) > 1 {
		return nil, apperrors.New(apperrors.ErrMultipleDenoms, "deposit accepts exactly one denom", nil)
	}
	coin := funds[0]
	if coin.Amount == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidAmount, "deposit amount must be greater than zero", nil)
	}
	if !cfg.IsAccepted(coin.Denom) {
		return nil, apperrors.New(apperrors.ErrUnsupportedDenom,
			fmt.Sprintf("denom not accepted: %s", coin.Denom), nil)
	}

	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return nil, err
	}

	result := model.NewOperationResult("deposit")

	// 入金先换成基准币种，记账一律以基准单位进行
	instr, credited, err := s.converter.ToBase(ctx, coin.Denom, coin.Amount, rp.MaxSlippage, s.vaultAddr)
	if err != nil {
		return nil, err
	}
	result.Add(instr)

	// Spread the credited value across enabled protocols. Zero shares from
	// flooring are skipped; the dust stays in the vault account until the
	// next rebalance.
	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, p := range protocols {
		if !p.Enabled {
			continue
		}
		share := numeric.MulFrac(credited, p.AllocationPercentage)
		if share == 0 {
			continue
		}
		adapter, err := s.registry.Resolve(p.Name, p.ContractAddr)
		if err != nil {
			return nil, err
		}
		depositInstrs, err := adapter.Deposit(share)
		if err != nil {
			return nil, err
		}
		result.Add(depositInstrs...)

		p.CurrentBalance += share
		if err := saveProtocol(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	user, err := loadUser(ctx, tx, caller)
	if err != nil {
		return nil, err
	}
	newBalance, ok := numeric.CheckedAdd(user.TotalValue, credited)
	if !ok {
		return nil, apperrors.New(apperrors.ErrInternal, "deposit overflows user balance", nil)
	}
	user.TotalValue = newBalance
	user.Deposits = append(user.Deposits, model.UserDeposit{
		Denom:          coin.Denom,
		OriginalAmount: coin.Amount,
		ValueAtDeposit: credited,
		Timestamp:      time.Now().UTC(),
	})
	if err := saveUser(ctx, tx, caller, user); err != nil {
		return nil, err
	}

	total, err := loadTotalValue(ctx, tx)
	if err != nil {
		return nil, err
	}
	total, ok = numeric.CheckedAdd(total, credited)
	if !ok {
		return nil, apperrors.New(apperrors.ErrInternal, "deposit overflows total value", nil)
	}
	if err := saveTotalValue(ctx, tx, total); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result.Attributes["depositor"] = caller
	result.Attributes["denom"] = coin.Denom
	result.Attributes["amount"] = fmt.Sprintf("%d", coin.Amount)
	result.Attributes["credited"] = fmt.Sprintf("%d", credited)

	metrics.OperationsTotal.WithLabelValues("deposit", "ok").Inc()
	metrics.TotalValue.Set(float64(total))
	logger.Get().Info("deposit accepted",
		"depositor", caller, "denom", coin.Denom,
		"amount", coin.Amount, "credited", credited)

	return result, nil
}
