package vault

import (
	"context"
	"fmt"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// AddProtocol registers a new yield venue. The requested allocation is
// checked against the per-protocol cap, then existing allocations are
// squeezed proportionally into the remaining share so the sum stays at one.
// The very first protocol always ends at exactly one regardless of the
// requested figure.
func (s *Service) AddProtocol(ctx context.Context, caller, name, contractAddr string, initialAllocation decimal.Decimal) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return nil, err
	}

	rp, err := loadRiskParameters(ctx, tx)
	if err != nil {
		return nil, err
	}
	if initialAllocation.IsNegative() || initialAllocation.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperrors.New(apperrors.ErrInvalidAllocations, "initial allocation must be in [0, 1]", nil)
	}
	if initialAllocation.GreaterThan(rp.MaxAllocationPerProtocol) {
		return nil, apperrors.New(apperrors.ErrExcessiveAllocation,
			fmt.Sprintf("initial allocation %s exceeds per-protocol cap %s",
				initialAllocation, rp.MaxAllocationPerProtocol), nil)
	}

	if _, found, err := tx.Get(ctx, ledger.ProtocolKey(name)); err != nil {
		return nil, err
	} else if found {
		return nil, apperrors.New(apperrors.ErrProtocolAlreadyExists,
			fmt.Sprintf("protocol already exists: %s", name), nil)
	}

	existing, err := listProtocols(ctx, tx)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	allocation := initialAllocation
	if len(existing) == 0 {
		// sole venue takes the whole pool
		allocation = one
	} else {
		// squeeze existing allocations into (1 - new) of their current sum
		var sum decimal.Decimal
		for _, p := range existing {
			sum = sum.Add(p.AllocationPercentage)
		}
		if sum.IsPositive() {
			scale := one.Sub(allocation).Div(sum)
			for _, p := range existing {
				p.AllocationPercentage = p.AllocationPercentage.Mul(scale)
				if err := saveProtocol(ctx, tx, p); err != nil {
					return nil, err
				}
			}
		}
	}

	info := &model.ProtocolInfo{
		Name:                 name,
		ContractAddr:         contractAddr,
		AllocationPercentage: allocation,
		CurrentBalance:       0,
		Enabled:              true,
	}
	if err := saveProtocol(ctx, tx, info); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("add_protocol")
	result.Attributes["protocol"] = name
	result.Attributes["allocation"] = allocation.String()

	metrics.OperationsTotal.WithLabelValues("add_protocol", "ok").Inc()
	logger.Get().Info("protocol added", "protocol", name,
		"contract", contractAddr, "allocation", allocation.String())

	return result, nil
}

// RemoveProtocol drops a venue: any residual position is pulled back first,
// then the survivors' allocations are renormalized to sum to one. The last
// survivor is set to exactly one.
func (s *Service) RemoveProtocol(ctx context.Context, caller, name string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return nil, err
	}

	removed, err := loadProtocol(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	result := model.NewOperationResult("remove_protocol")

	if removed.CurrentBalance > 0 {
		adapter, err := s.registry.Resolve(removed.Name, removed.ContractAddr)
		if err != nil {
			return nil, err
		}
		withdrawInstrs, err := adapter.Withdraw(removed.CurrentBalance)
		if err != nil {
			return nil, err
		}
		result.Add(withdrawInstrs...)
	}

	if err := deleteProtocol(ctx, tx, name); err != nil {
		return nil, err
	}

	survivors, err := listProtocols(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(survivors) > 0 {
		one := decimal.NewFromInt(1)
		var sum decimal.Decimal
		for _, p := range survivors {
			sum = sum.Add(p.AllocationPercentage)
		}
		for i, p := range survivors {
			switch {
			case len(survivors) == 1:
				p.AllocationPercentage = one
			case i == len(survivors)-1:
				// close out the rounding remainder exactly
				var assigned decimal.Decimal
				for _, q := range survivors[:i] {
					assigned = assigned.Add(q.AllocationPercentage)
				}
				p.AllocationPercentage = one.Sub(assigned)
			case sum.IsPositive():
				p.AllocationPercentage = p.AllocationPercentage.Div(sum)
			}
			if err := saveProtocol(ctx, tx, p); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result.Attributes["protocol"] = name
	result.Attributes["withdrawn"] = fmt.Sprintf("%d", removed.CurrentBalance)

	metrics.OperationsTotal.WithLabelValues("remove_protocol", "ok").Inc()
	logger.Get().Info("protocol removed", "protocol", name, "withdrawn", removed.CurrentBalance)

	return result, nil
}

// UpdateProtocol patches the enabled flag and/or contract address.
func (s *Service) UpdateProtocol(ctx context.Context, caller, name string, enabled *bool, contractAddr *string) (*model.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return nil, err
	}

	p, err := loadProtocol(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	if enabled != nil {
		p.Enabled = *enabled
	}
	if contractAddr != nil {
		if *contractAddr == "" {
			return nil, apperrors.New(apperrors.ErrInvalidRequest, "contract address must not be empty", nil)
		}
		p.ContractAddr = *contractAddr
	}
	if err := saveProtocol(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("update_protocol")
	result.Attributes["protocol"] = name
	result.Attributes["enabled"] = fmt.Sprintf("%t", p.Enabled)

	metrics.OperationsTotal.WithLabelValues("update_protocol", "ok").Inc()
	logger.Get().Info("protocol updated", "protocol", name, "enabled", p.Enabled)

	return result, nil
}
