package vault

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
	"github.com/shopspring/decimal"
)

type rebalanceAction struct {
	protocol     string
	contractAddr string
	amount       uint64
}

// Rebalance moves positions toward the target allocation map. Operator only.
// All withdrawal instructions are emitted before any deposit so freed funds
// cover the new positions. Allocations are committed for the named targets;
// balances catch up on the next RefreshBalances cycle.
func (s *Service) Rebalance(ctx context.Context, caller string, targets map[string]decimal.Decimal, reason string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := requireOperator(cfg, caller); err != nil {
		return nil, err
	}

	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := validateAllocations(targets, rp.MaxAllocationPerProtocol); err != nil {
		return nil, err
	}

	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return nil, err
	}
	total, err := loadTotalValue(ctx, tx)
	if err != nil {
		return nil, err
	}

	oldAllocations := make([]model.NamedAllocation, 0, len(protocols))
	for _, p := range protocols {
		oldAllocations = append(oldAllocations, model.NamedAllocation{
			Protocol:   p.Name,
			Allocation: p.AllocationPercentage,
		})
	}

	withdrawals, deposits := planActions(protocols, targets, total)

	result := model.NewOperationResult("rebalance")

	// 先全部赎回，再全部投入
	for _, action := range withdrawals {
		adapter, err := s.registry.Resolve(action.protocol, action.contractAddr)
		if err != nil {
			return nil, err
		}
		instrs, err := adapter.Withdraw(action.amount)
		if err != nil {
			return nil, err
		}
		result.Add(instrs...)
		metrics.RebalanceActions.WithLabelValues("withdraw").Inc()
	}
	for _, action := range deposits {
		adapter, err := s.registry.Resolve(action.protocol, action.contractAddr)
		if err != nil {
			return nil, err
		}
		instrs, err := adapter.Deposit(action.amount)
		if err != nil {
			return nil, err
		}
		result.Add(instrs...)
		metrics.RebalanceActions.WithLabelValues("deposit").Inc()
	}

	// Commit the target allocations. A target naming an unregistered
	// protocol fails here, after planning, and aborts the whole operation.
	newAllocations := make([]model.NamedAllocation, 0, len(targets))
	for _, name := range sortedTargetNames(targets) {
		p, err := loadProtocol(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		p.AllocationPercentage = targets[name]
		if err := saveProtocol(ctx, tx, p); err != nil {
			return nil, err
		}
		newAllocations = append(newAllocations, model.NamedAllocation{
			Protocol:   name,
			Allocation: targets[name],
		})
	}

	record := model.RebalanceRecord{
		Timestamp:      time.Now().UTC(),
		InitiatedBy:    caller,
		OldAllocations: oldAllocations,
		NewAllocations: newAllocations,
		Reason:         reason,
	}
	if err := appendHistory(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// archive failures are logged, never surfaced
	if s.archive != nil {
		if err := s.archive.Insert(ctx, &record); err != nil {
			logger.Get().Warn("rebalance archive insert failed", "error", err)
		}
	}

	result.Attributes["reason"] = reason
	result.Attributes["withdrawals"] = fmt.Sprintf("%d", len(withdrawals))
	result.Attributes["deposits"] = fmt.Sprintf("%d", len(deposits))

	metrics.OperationsTotal.WithLabelValues("rebalance", "ok").Inc()
	logger.Get().Info("rebalance executed", "initiated_by", caller,
		"reason", reason, "withdrawals", len(withdrawals), "deposits", len(deposits))

	return result, nil
}

// CheckRebalanceNeeded reports whether any target deviates from the current
// allocation by more than the configured threshold.
func (s *Service) CheckRebalanceNeeded(ctx context.Context, targets map[string]decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return false, err
	}
	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return false, err
	}

	current := make(map[string]decimal.Decimal, len(protocols))
	for _, p := range protocols {
		current[p.Name] = p.AllocationPercentage
	}

	for name, target := range targets {
		diff := target.Sub(current[name]).Abs()
		if diff.GreaterThan(rp.RebalanceThreshold) {
			return true, nil
		}
	}
	return false, nil
}

// RefreshBalances re-queries every protocol position and rewrites the
// per-protocol balances plus the pool total. Operator or admin.
func (s *Service) RefreshBalances(ctx context.Context, caller string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !sameAddress(cfg.Operator, caller) && !sameAddress(cfg.Admin, caller) {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "operator or admin privileges required", nil)
	}

	protocols, err := listProtocols(ctx, tx)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, p := range protocols {
		adapter, err := s.registry.Resolve(p.Name, p.ContractAddr)
		if err != nil {
			return nil, err
		}
		balance, err := adapter.QueryBalance(ctx)
		if err != nil {
			return nil, err
		}
		p.CurrentBalance = balance
		next, ok := numeric.CheckedAdd(total, balance)
		if !ok {
			return nil, apperrors.New(apperrors.ErrInternal, "reported balances overflow total value", nil)
		}
		total = next
		if err := saveProtocol(ctx, tx, p); err != nil {
			return nil, err
		}
	}
	if err := saveTotalValue(ctx, tx, total); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("refresh_balances")
	result.Attributes["total_value"] = fmt.Sprintf("%d", total)
	result.Attributes["protocols"] = fmt.Sprintf("%d", len(protocols))

	metrics.OperationsTotal.WithLabelValues("refresh_balances", "ok").Inc()
	metrics.TotalValue.Set(float64(total))
	logger.Get().Info("balances refreshed", "total_value", total, "protocols", len(protocols))

	return result, nil
}

// validateAllocations requires the targets to sum to exactly one and no
// single target to exceed the per-protocol cap.
func validateAllocations(targets map[string]decimal.Decimal, maxPerProtocol decimal.Decimal) error {
	if len(targets) == 0 {
		return apperrors.New(apperrors.ErrInvalidAllocations, "target allocations are empty", nil)
	}
	var sum decimal.Decimal
	for _, alloc := range targets {
		if alloc.IsNegative() {
			return apperrors.New(apperrors.ErrInvalidAllocations, "allocations must not be negative", nil)
		}
		sum = sum.Add(alloc)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return apperrors.New(apperrors.ErrInvalidAllocations,
			fmt.Sprintf("allocations sum to %s, expected 1", sum), nil)
	}
	for name, alloc := range targets {
		if alloc.GreaterThan(maxPerProtocol) {
			return apperrors.New(apperrors.ErrExcessiveAllocation,
				fmt.Sprintf("allocation for %s exceeds per-protocol cap %s", name, maxPerProtocol), nil)
		}
	}
	return nil
}

// planActions computes per-protocol moves. Protocols absent from the target
// map are treated as target zero and drained. Floor arithmetic may leave the
// plan slightly under-deployed; the refresh cycle trues it up.
func planActions(current []*model.ProtocolInfo, targets map[string]decimal.Decimal, total uint64) (withdrawals, deposits []rebalanceAction) {
	currentByName := make(map[string]*model.ProtocolInfo, len(current))
	for _, p := range current {
		currentByName[p.Name] = p
	}

	// withdrawals first, over protocols sorted by name
	names := make([]string, 0, len(current))
	for _, p := range current {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := currentByName[name]
		target := targets[name] // zero when absent
		if target.GreaterThanOrEqual(p.AllocationPercentage) {
			continue
		}
		targetBalance := numeric.MulFrac(total, target)
		amount := numeric.SatSub(p.CurrentBalance, targetBalance)
		if amount == 0 {
			continue
		}
		withdrawals = append(withdrawals, rebalanceAction{
			protocol:     name,
			contractAddr: p.ContractAddr,
			amount:       amount,
		})
	}

	for _, name := range sortedTargetNames(targets) {
		target := targets[name]
		p, known := currentByName[name]
		var currentAlloc decimal.Decimal
		var currentBalance uint64
		var contractAddr string
		if known {
			currentAlloc = p.AllocationPercentage
			currentBalance = p.CurrentBalance
			contractAddr = p.ContractAddr
		}
		if target.LessThanOrEqual(currentAlloc) {
			continue
		}
		targetBalance := numeric.MulFrac(total, target)
		amount := numeric.SatSub(targetBalance, currentBalance)
		if amount == 0 {
			continue
		}
		deposits = append(deposits, rebalanceAction{
			protocol:     name,
			contractAddr: contractAddr,
			amount:       amount,
		})
	}
	return withdrawals, deposits
}

func sortedTargetNames(targets map[string]decimal.Decimal) []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// appendHistory pushes a record and trims to the retention limit, evicting
// the oldest entries.
func appendHistory(ctx context.Context, tx *ledger.Tx, record model.RebalanceRecord) error {
	history, err := loadHistory(ctx, tx)
	if err != nil {
		return err
	}
	history = append(history, record)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return saveHistory(ctx, tx, history)
}
