// Package vault is the accounting and strategy core. Every public operation
// runs under one mutex and one staged ledger transaction: it either commits
// all of its ledger writes and returns outbound instructions, or it returns
// an error and the ledger is untouched.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/astrobalance/vaultgate/internal/convert"
	"github.com/astrobalance/vaultgate/internal/identity"
	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/protocol"
	"github.com/shopspring/decimal"
)

// 账本内只保留最近 N 条再平衡记录，完整历史走数据库归档
const historyLimit = 20

// HistoryArchive mirrors rebalance records into durable storage and serves
// reads past the in-ledger window. Archive failures never fail the operation.
type HistoryArchive interface {
	Insert(ctx context.Context, record *model.RebalanceRecord) error
	List(ctx context.Context, limit int, from, to *time.Time) ([]*model.RebalanceRecord, error)
}

type Service struct {
	mu        sync.Mutex
	store     ledger.Store
	registry  *protocol.Registry
	converter *convert.Router
	archive   HistoryArchive
	vaultAddr string
}

func NewService(store ledger.Store, registry *protocol.Registry, converter *convert.Router, archive HistoryArchive, vaultAddr string) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		converter: converter,
		archive:   archive,
		vaultAddr: vaultAddr,
	}
}

// Initialize writes the genesis config, risk parameters and zero total value
// the first time the service boots on an empty ledger. An already-populated
// ledger wins over the config file.
func (s *Service) Initialize(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := ledger.NewTx(s.store)

	_, found, err := tx.Get(ctx, ledger.KeyConfig)
	if err != nil {
		return err
	}
	if found {
		logger.Get().Info("ledger already initialized, keeping existing state")
		return nil
	}

	vaultCfg := &model.Config{
		Admin:          cfg.Vault.Admin,
		Operator:       cfg.Vault.Operator,
		BaseDenom:      cfg.Vault.BaseDenom,
		AcceptedDenoms: cfg.Vault.AcceptedDenoms,
		SwapVenue:      cfg.Venue.RouterAddr,
	}
	if vaultCfg.BaseDenom == "" {
		return apperrors.New(apperrors.ErrInternal, "base denom is required", nil)
	}
	if !vaultCfg.IsAccepted(vaultCfg.BaseDenom) {
		vaultCfg.AcceptedDenoms = append(vaultCfg.AcceptedDenoms, vaultCfg.BaseDenom)
	}

	rp, err := riskFromConfig(&cfg.Risk)
	if err != nil {
		return err
	}

	if err := saveConfig(ctx, tx, vaultCfg); err != nil {
		return err
	}
	if err := saveRiskParameters(ctx, tx, rp); err != nil {
		return err
	}
	if err := saveTotalValue(ctx, tx, 0); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Get().Info("ledger initialized",
		"admin", vaultCfg.Admin,
		"operator", vaultCfg.Operator,
		"base_denom", vaultCfg.BaseDenom)
	return nil
}

func riskFromConfig(rc *config.RiskConfig) (*model.RiskParameters, error) {
	maxAlloc, err := decimal.NewFromString(rc.MaxAllocationPerProtocol)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "invalid max_allocation_per_protocol", err)
	}
	maxSlip, err := decimal.NewFromString(rc.MaxSlippage)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "invalid max_slippage", err)
	}
	threshold, err := decimal.NewFromString(rc.RebalanceThreshold)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "invalid rebalance_threshold", err)
	}
	fee, err := decimal.NewFromString(rc.EmergencyWithdrawalFee)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "invalid emergency_withdrawal_fee", err)
	}
	rp := &model.RiskParameters{
		MaxAllocationPerProtocol: maxAlloc,
		MaxSlippage:              maxSlip,
		RebalanceThreshold:       threshold,
		EmergencyWithdrawalFee:   fee,
	}
	if err := validateRiskParameters(rp); err != nil {
		return nil, err
	}
	return rp, nil
}

func validateRiskParameters(rp *model.RiskParameters) error {
	one := decimal.NewFromInt(1)
	if rp.MaxAllocationPerProtocol.LessThanOrEqual(decimal.Zero) || rp.MaxAllocationPerProtocol.GreaterThan(one) {
		return apperrors.New(apperrors.ErrInvalidRequest, "max allocation per protocol must be in (0, 1]", nil)
	}
	if rp.MaxSlippage.IsNegative() || rp.MaxSlippage.GreaterThanOrEqual(one) {
		return apperrors.New(apperrors.ErrInvalidRequest, "max slippage must be in [0, 1)", nil)
	}
	if rp.RebalanceThreshold.IsNegative() || rp.RebalanceThreshold.GreaterThan(one) {
		return apperrors.New(apperrors.ErrInvalidRequest, "rebalance threshold must be in [0, 1]", nil)
	}
	if rp.EmergencyWithdrawalFee.IsNegative() || rp.EmergencyWithdrawalFee.GreaterThanOrEqual(one) {
		return apperrors.New(apperrors.ErrInvalidRequest, "emergency withdrawal fee must be in [0, 1)", nil)
	}
	return nil
}

// sameAddress 十六进制地址按规范化形式比较，其它标识符按原样比较
func sameAddress(a, b string) bool {
	return a == b || identity.Equal(a, b)
}

func requireAdmin(cfg *model.Config, caller string) error {
	if !sameAddress(cfg.Admin, caller) {
		return apperrors.New(apperrors.ErrUnauthorized, "admin privileges required", nil)
	}
	return nil
}

func requireOperator(cfg *model.Config, caller string) error {
	if !sameAddress(cfg.Operator, caller) {
		return apperrors.New(apperrors.ErrUnauthorized, "operator privileges required", nil)
	}
	return nil
}
