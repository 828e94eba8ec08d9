package vault

import (
	"context"
	"fmt"

	"github.com/astrobalance/vaultgate/internal/identity"
	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
)

// Admin-only configuration surface.

func (s *Service) UpdateRiskParameters(ctx context.Context, caller string, rp model.RiskParameters) (*model.OperationResult, error) {
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
	if err := validateRiskParameters(&rp); err != nil {
		return nil, err
	}

	if err := saveRiskParameters(ctx, tx, &rp); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("update_risk_parameters")
	result.Attributes["max_allocation_per_protocol"] = rp.MaxAllocationPerProtocol.String()
	result.Attributes["max_slippage"] = rp.MaxSlippage.String()

	metrics.OperationsTotal.WithLabelValues("update_risk_parameters", "ok").Inc()
	logger.Get().Info("risk parameters updated",
		"max_allocation", rp.MaxAllocationPerProtocol.String(),
		"max_slippage", rp.MaxSlippage.String())

	return result, nil
}

func (s *Service) AddSupportedDenom(ctx context.Context, caller, denom string) (*model.OperationResult, error) {
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
	if denom == "" {
		return nil, apperrors.New(apperrors.ErrInvalidDenom, "denom must not be empty", nil)
	}
	if cfg.IsAccepted(denom) {
		return nil, apperrors.New(apperrors.ErrInvalidDenom,
			fmt.Sprintf("denom already accepted: %s", denom), nil)
	}

	cfg.AcceptedDenoms = append(cfg.AcceptedDenoms, denom)
	if err := saveConfig(ctx, tx, cfg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("add_supported_denom")
	result.Attributes["denom"] = denom

	metrics.OperationsTotal.WithLabelValues("add_supported_denom", "ok").Inc()
	logger.Get().Info("denom added", "denom", denom)

	return result, nil
}

// RemoveSupportedDenom drops a deposit denom. The base denom is the unit of
// account and can never be removed.
func (s *Service) RemoveSupportedDenom(ctx context.Context, caller, denom string) (*model.OperationResult, error) {
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
	if denom == cfg.BaseDenom {
		return nil, apperrors.New(apperrors.ErrInvalidDenom, "base denom cannot be removed", nil)
	}
	if !cfg.IsAccepted(denom) {
		return nil, apperrors.New(apperrors.ErrInvalidDenom,
			fmt.Sprintf("denom not accepted: %s", denom), nil)
	}

	kept := make([]string, 0, len(cfg.AcceptedDenoms))
	for _, d := range cfg.AcceptedDenoms {
		if d != denom {
			kept = append(kept, d)
		}
	}
	cfg.AcceptedDenoms = kept
	if err := saveConfig(ctx, tx, cfg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult("remove_supported_denom")
	result.Attributes["denom"] = denom

	metrics.OperationsTotal.WithLabelValues("remove_supported_denom", "ok").Inc()
	logger.Get().Info("denom removed", "denom", denom)

	return result, nil
}

func (s *Service) UpdateAdmin(ctx context.Context, caller, newAdmin string) (*model.OperationResult, error) {
	return s.updateRole(ctx, caller, newAdmin, "update_admin")
}

func (s *Service) UpdateOperator(ctx context.Context, caller, newOperator string) (*model.OperationResult, error) {
	return s.updateRole(ctx, caller, newOperator, "update_operator")
}

func (s *Service) updateRole(ctx context.Context, caller, addr, method string) (*model.OperationResult, error) {
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

	canonical, err := identity.Validate(addr)
	if err != nil {
		return nil, err
	}
	if method == "update_admin" {
		cfg.Admin = canonical
	} else {
		cfg.Operator = canonical
	}
	if err := saveConfig(ctx, tx, cfg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := model.NewOperationResult(method)
	result.Attributes["address"] = canonical

	metrics.OperationsTotal.WithLabelValues(method, "ok").Inc()
	logger.Get().Info("role updated", "method", method, "address", canonical)

	return result, nil
}
