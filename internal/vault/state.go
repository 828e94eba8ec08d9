package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
)

// JSON codecs over the staged transaction. Every operation reads and writes
// through these so the key layout stays in one place.

func loadConfig(ctx context.Context, tx *ledger.Tx) (*model.Config, error) {
	var cfg model.Config
	found, err := loadJSON(ctx, tx, ledger.KeyConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrInternal, "vault is not initialized", nil)
	}
	return &cfg, nil
}

func saveConfig(ctx context.Context, tx *ledger.Tx, cfg *model.Config) error {
	return saveJSON(ctx, tx, ledger.KeyConfig, cfg)
}

func loadRiskParameters(ctx context.Context, tx *ledger.Tx) (*model.RiskParameters, error) {
	var rp model.RiskParameters
	found, err := loadJSON(ctx, tx, ledger.KeyRiskParameters, &rp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrInternal, "risk parameters missing", nil)
	}
	return &rp, nil
}

func saveRiskParameters(ctx context.Context, tx *ledger.Tx, rp *model.RiskParameters) error {
	return saveJSON(ctx, tx, ledger.KeyRiskParameters, rp)
}

func loadTotalValue(ctx context.Context, tx *ledger.Tx) (uint64, error) {
	var total uint64
	_, err := loadJSON(ctx, tx, ledger.KeyTotalValue, &total)
	return total, err
}

func saveTotalValue(ctx context.Context, tx *ledger.Tx, total uint64) error {
	return saveJSON(ctx, tx, ledger.KeyTotalValue, total)
}

// loadUser 新用户返回零值记录
func loadUser(ctx context.Context, tx *ledger.Tx, addr string) (*model.UserInfo, error) {
	var info model.UserInfo
	found, err := loadJSON(ctx, tx, ledger.UserKey(addr), &info)
	if err != nil {
		return nil, err
	}
	if !found {
		return &model.UserInfo{Deposits: []model.UserDeposit{}}, nil
	}
	return &info, nil
}

func saveUser(ctx context.Context, tx *ledger.Tx, addr string, info *model.UserInfo) error {
	return saveJSON(ctx, tx, ledger.UserKey(addr), info)
}

func loadProtocol(ctx context.Context, tx *ledger.Tx, name string) (*model.ProtocolInfo, error) {
	var p model.ProtocolInfo
	found, err := loadJSON(ctx, tx, ledger.ProtocolKey(name), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrProtocolNotFound,
			fmt.Sprintf("protocol not found: %s", name), nil)
	}
	return &p, nil
}

func saveProtocol(ctx context.Context, tx *ledger.Tx, p *model.ProtocolInfo) error {
	return saveJSON(ctx, tx, ledger.ProtocolKey(p.Name), p)
}

func deleteProtocol(ctx context.Context, tx *ledger.Tx, name string) error {
	return tx.Delete(ctx, ledger.ProtocolKey(name))
}

// listProtocols returns every protocol entry, ordered by name.
func listProtocols(ctx context.Context, tx *ledger.Tx) ([]*model.ProtocolInfo, error) {
	keys, err := tx.Keys(ctx, ledger.PrefixProtocol)
	if err != nil {
		return nil, err
	}
	protocols := make([]*model.ProtocolInfo, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, ledger.PrefixProtocol)
		p, err := loadProtocol(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}

func loadHistory(ctx context.Context, tx *ledger.Tx) ([]model.RebalanceRecord, error) {
	var history []model.RebalanceRecord
	found, err := loadJSON(ctx, tx, ledger.KeyRebalanceHistory, &history)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.RebalanceRecord{}, nil
	}
	return history, nil
}

func saveHistory(ctx context.Context, tx *ledger.Tx, history []model.RebalanceRecord) error {
	return saveJSON(ctx, tx, ledger.KeyRebalanceHistory, history)
}

func loadJSON(ctx context.Context, tx *ledger.Tx, key string, out any) (bool, error) {
	raw, found, err := tx.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, apperrors.New(apperrors.ErrStore,
			fmt.Sprintf("corrupt ledger entry: %s", key), err)
	}
	return true, nil
}

func saveJSON(ctx context.Context, tx *ledger.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apperrors.New(apperrors.ErrInternal,
			fmt.Sprintf("encode ledger entry: %s", key), err)
	}
	return tx.Set(ctx, key, raw)
}
