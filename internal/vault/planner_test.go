package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targets(pairs ...string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return out
}

func TestRebalanceRequiresOperator(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)

	_, err := svc.Rebalance(context.Background(), userAddr,
		targets("helix", "0.4", "hydro", "0.2", "neptune", "0.4"), "drift")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRebalanceCommitsTargets(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 1000}})
	require.NoError(t, err)

	res, err := svc.Rebalance(ctx, operatorAddr,
		targets("helix", "0.4", "hydro", "0.2", "neptune", "0.4"), "weekly drift correction")
	require.NoError(t, err)
	assert.Equal(t, "rebalance", res.Attributes["method"])

	helix, _ := svc.GetProtocolInfo(ctx, "helix")
	hydro, _ := svc.GetProtocolInfo(ctx, "hydro")
	neptune, _ := svc.GetProtocolInfo(ctx, "neptune")
	assert.True(t, helix.AllocationPercentage.Equal(decimal.RequireFromString("0.4")))
	assert.True(t, hydro.AllocationPercentage.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, neptune.AllocationPercentage.Equal(decimal.RequireFromString("0.4")))

	history, err := svc.GetRebalanceHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, operatorAddr, history[0].InitiatedBy)
	assert.Equal(t, "weekly drift correction", history[0].Reason)
}

func TestRebalanceWithdrawalsPrecedeDeposits(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 1000}})
	require.NoError(t, err)

	// helix 0.42->0.1 shrinks, hydro 0.18->0.5 grows
	res, err := svc.Rebalance(ctx, operatorAddr,
		targets("helix", "0.1", "hydro", "0.5", "neptune", "0.4"), "shift to hydro")
	require.NoError(t, err)

	var sawDeposit bool
	for _, instr := range res.Instructions {
		isWithdrawal := instrHasKey(instr, "withdraw") || instrHasKey(instr, "redeem") || instrHasKey(instr, "unstake")
		if isWithdrawal && sawDeposit {
			t.Fatal("withdrawal instruction after a deposit instruction")
		}
		if instrHasKey(instr, "deposit") || instrHasKey(instr, "lend") || instrHasKey(instr, "stake") {
			sawDeposit = true
		}
	}
	assert.True(t, sawDeposit)
}

func TestRebalanceValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	_, err := svc.Rebalance(ctx, operatorAddr, nil, "empty")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAllocations))

	// sum must be exactly one
	_, err = svc.Rebalance(ctx, operatorAddr,
		targets("helix", "0.4", "hydro", "0.2", "neptune", "0.3"), "sums to 0.9")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAllocations))

	// per-protocol cap
	_, err = svc.UpdateRiskParameters(ctx, adminAddr, model.RiskParameters{
		MaxAllocationPerProtocol: decimal.RequireFromString("0.5"),
		MaxSlippage:              decimal.RequireFromString("0.01"),
		RebalanceThreshold:       decimal.RequireFromString("0.05"),
		EmergencyWithdrawalFee:   decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	_, err = svc.Rebalance(ctx, operatorAddr,
		targets("helix", "0.6", "hydro", "0.2", "neptune", "0.2"), "over cap")
	assert.True(t, apperrors.Is(err, apperrors.ErrExcessiveAllocation))
}

func TestRebalanceUnknownTargetAbortsAtomically(t *testing.T) {
	svc, store, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 1000}})
	require.NoError(t, err)
	before := store.Snapshot()

	// "hydro" dropped in favor of an unregistered name: validation passes,
	// the commit phase fails, nothing is persisted
	_, err = svc.Rebalance(ctx, operatorAddr,
		targets("helix", "0.4", "ghost", "0.2", "neptune", "0.4"), "typo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrProtocolNotFound))

	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatal("aborted rebalance modified the ledger")
	}
}

func TestRebalanceHistoryNewestFirstAndCapped(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	for i := 0; i < historyLimit+5; i++ {
		_, err := svc.Rebalance(ctx, operatorAddr,
			targets("helix", "0.4", "hydro", "0.2", "neptune", "0.4"),
			fmt.Sprintf("round %d", i))
		require.NoError(t, err)
	}

	history, err := svc.GetRebalanceHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, historyLimit)

	// newest first, oldest entries evicted
	assert.Equal(t, fmt.Sprintf("round %d", historyLimit+4), history[0].Reason)
	assert.Equal(t, fmt.Sprintf("round %d", 5), history[historyLimit-1].Reason)

	// a small limit takes the most recent entries
	history, err = svc.GetRebalanceHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, fmt.Sprintf("round %d", historyLimit+4), history[0].Reason)
}

func TestCheckRebalanceNeeded(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	// current helix allocation is 0.42; threshold is 0.05
	needed, err := svc.CheckRebalanceNeeded(ctx, targets("helix", "0.44"))
	require.NoError(t, err)
	assert.False(t, needed)

	needed, err = svc.CheckRebalanceNeeded(ctx, targets("helix", "0.6"))
	require.NoError(t, err)
	assert.True(t, needed)

	// unknown protocol counts as current zero
	needed, err = svc.CheckRebalanceNeeded(ctx, targets("ghost", "0.5"))
	require.NoError(t, err)
	assert.True(t, needed)
}

type recordingArchive struct {
	records []*model.RebalanceRecord
}

func (a *recordingArchive) Insert(_ context.Context, record *model.RebalanceRecord) error {
	a.records = append(a.records, record)
	return nil
}

func (a *recordingArchive) List(_ context.Context, limit int, _, _ *time.Time) ([]*model.RebalanceRecord, error) {
	out := make([]*model.RebalanceRecord, 0, limit)
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.records[i])
	}
	return out, nil
}

func TestRebalanceHistoryFallsBackToArchive(t *testing.T) {
	svc, _, _ := newTestService(t)
	archive := &recordingArchive{}
	svc.archive = archive
	addStandardProtocols(t, svc)
	ctx := context.Background()

	for i := 0; i < historyLimit+5; i++ {
		_, err := svc.Rebalance(ctx, operatorAddr,
			targets("helix", "0.4", "hydro", "0.2", "neptune", "0.4"),
			fmt.Sprintf("round %d", i))
		require.NoError(t, err)
	}

	// a limit past the in-ledger window reads the full archive
	history, err := svc.GetRebalanceHistory(ctx, historyLimit+5)
	require.NoError(t, err)
	require.Len(t, history, historyLimit+5)
	assert.Equal(t, fmt.Sprintf("round %d", historyLimit+4), history[0].Reason)
	assert.Equal(t, "round 0", history[len(history)-1].Reason)
}

func TestRebalanceArchivesRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	archive := &recordingArchive{}
	svc.archive = archive
	addStandardProtocols(t, svc)

	_, err := svc.Rebalance(context.Background(), operatorAddr,
		targets("helix", "0.4", "hydro", "0.2", "neptune", "0.4"), "archived")
	require.NoError(t, err)
	require.Len(t, archive.records, 1)
	assert.Equal(t, "archived", archive.records[0].Reason)
}

func instrHasKey(instr model.Instruction, key string) bool {
	if instr.Type != model.InstructionInvoke {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(instr.Msg, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
