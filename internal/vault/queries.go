package vault

import (
	"context"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/shopspring/decimal"
)

// Read-only surface. Queries run on a throwaway tx so they observe the same
// committed state an operation would.

func (s *Service) GetConfig(ctx context.Context) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadConfig(ctx, ledger.NewTx(s.store))
}

func (s *Service) GetRiskParameters(ctx context.Context) (*model.RiskParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadRiskParameters(ctx, ledger.NewTx(s.store))
}

func (s *Service) GetUserInfo(ctx context.Context, addr string) (*model.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadUser(ctx, ledger.NewTx(s.store), addr)
}

func (s *Service) GetProtocols(ctx context.Context) ([]*model.ProtocolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listProtocols(ctx, ledger.NewTx(s.store))
}

func (s *Service) GetProtocolInfo(ctx context.Context, name string) (*model.ProtocolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadProtocol(ctx, ledger.NewTx(s.store), name)
}

// GetProtocolAPY queries the live rate from the protocol contract.
func (s *Service) GetProtocolAPY(ctx context.Context, name string) (decimal.Decimal, error) {
	s.mu.Lock()
	p, err := loadProtocol(ctx, ledger.NewTx(s.store), name)
	s.mu.Unlock()
	if err != nil {
		return decimal.Zero, err
	}
	adapter, err := s.registry.Resolve(p.Name, p.ContractAddr)
	if err != nil {
		return decimal.Zero, err
	}
	return adapter.QueryAPY(ctx)
}

func (s *Service) GetTotalValue(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadTotalValue(ctx, ledger.NewTx(s.store))
}

// GetRebalanceHistory returns records newest first. A limit of zero means the
// whole in-ledger window; a limit beyond the window reads from the archive
// when one is configured, since the ledger only keeps the most recent entries.
func (s *Service) GetRebalanceHistory(ctx context.Context, limit int) ([]model.RebalanceRecord, error) {
	s.mu.Lock()
	history, err := loadHistory(ctx, ledger.NewTx(s.store))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if limit > len(history) && s.archive != nil {
		archived, err := s.archive.List(ctx, limit, nil, nil)
		if err != nil {
			logger.Get().Warn("rebalance archive read failed", "error", err)
		} else if len(archived) > len(history) {
			out := make([]model.RebalanceRecord, len(archived))
			for i, rec := range archived {
				out[i] = *rec
			}
			return out, nil
		}
	}

	out := make([]model.RebalanceRecord, len(history))
	for i, rec := range history {
		out[len(history)-1-i] = rec
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
