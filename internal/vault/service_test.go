package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/astrobalance/vaultgate/internal/convert"
	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/protocol"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminAddr    = "0x1000000000000000000000000000000000000001"
	operatorAddr = "0x1000000000000000000000000000000000000002"
	userAddr     = "0x1000000000000000000000000000000000000003"
	testVault    = "0x1000000000000000000000000000000000000004"
)

// stubQuoter prices 1 inj = 10 usdc both ways.
type stubQuoter struct{}

func (stubQuoter) Simulate(_ context.Context, offerDenom, askDenom string, amount uint64) (uint64, error) {
	if offerDenom == "inj" && askDenom == "usdc" {
		return amount * 10, nil
	}
	if offerDenom == "usdc" && askDenom == "inj" {
		return amount / 10, nil
	}
	return 0, apperrors.New(apperrors.ErrConversion, "no route", nil)
}

func (stubQuoter) BuildSwap(offerDenom, askDenom string, amount, minimumReceive uint64) (model.Instruction, error) {
	return model.NewInvoke("router", map[string]any{
		"swap":            map[string]string{"offer": offerDenom, "ask": askDenom},
		"minimum_receive": fmt.Sprintf("%d", minimumReceive),
	}, model.Coin{Denom: offerDenom, Amount: amount})
}

// fakeQuerier serves balance and rate queries per contract address.
type fakeQuerier struct {
	balances map[string]uint64
	apy      map[string]string
}

func (q *fakeQuerier) SmartQuery(_ context.Context, contract string, req any, resp any) error {
	m, ok := req.(map[string]any)
	if !ok {
		return apperrors.New(apperrors.ErrUpstream, "unexpected query shape", nil)
	}
	for key := range m {
		switch key {
		case "balance", "lender_balance", "staked_balance":
			amount := q.balances[contract]
			var raw string
			switch key {
			case "lender_balance":
				raw = fmt.Sprintf(`{"supplied_amount":"%d"}`, amount)
			default:
				raw = fmt.Sprintf(`{"amount":"%d"}`, amount)
			}
			return json.Unmarshal([]byte(raw), resp)
		case "apy", "lending_rate", "staking_rate":
			rate := q.apy[contract]
			if rate == "" {
				rate = "0"
			}
			var raw string
			switch key {
			case "lending_rate":
				raw = fmt.Sprintf(`{"rate":"%s"}`, rate)
			case "apy":
				raw = fmt.Sprintf(`{"apy":"%s"}`, rate)
			default:
				raw = fmt.Sprintf(`{"apy":"%s"}`, rate)
			}
			return json.Unmarshal([]byte(raw), resp)
		}
	}
	return apperrors.New(apperrors.ErrUpstream, "unexpected query", nil)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Vault.Admin = adminAddr
	cfg.Vault.Operator = operatorAddr
	cfg.Vault.Address = testVault
	cfg.Vault.BaseDenom = "usdc"
	cfg.Vault.AcceptedDenoms = []string{"usdc", "inj"}
	cfg.Venue.RouterAddr = "router"
	cfg.Risk.MaxAllocationPerProtocol = "1"
	cfg.Risk.MaxSlippage = "0.01"
	cfg.Risk.RebalanceThreshold = "0.05"
	cfg.Risk.EmergencyWithdrawalFee = "0.01"
	return cfg
}

func newTestService(t *testing.T) (*Service, *ledger.MemoryStore, *fakeQuerier) {
	t.Helper()
	store := ledger.NewMemoryStore()
	querier := &fakeQuerier{balances: map[string]uint64{}, apy: map[string]string{}}
	registry := protocol.NewRegistry("usdc", testVault, querier)
	converter := convert.NewRouter(stubQuoter{}, "usdc")
	svc := NewService(store, registry, converter, nil, testVault)
	require.NoError(t, svc.Initialize(context.Background(), testConfig()))
	return svc, store, querier
}

// addStandardProtocols mirrors the usual three-venue setup: the constructive
// series 30/30/40 ends at helix 42%, hydro 18%, neptune 40%.
func addStandardProtocols(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddProtocol(ctx, adminAddr, "helix", "contract_helix", decimal.RequireFromString("0.3"))
	require.NoError(t, err)
	_, err = svc.AddProtocol(ctx, adminAddr, "hydro", "contract_hydro", decimal.RequireFromString("0.3"))
	require.NoError(t, err)
	_, err = svc.AddProtocol(ctx, adminAddr, "neptune", "contract_neptune", decimal.RequireFromString("0.4"))
	require.NoError(t, err)
}

func TestInitializeIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	before := store.Snapshot()

	// second boot keeps the existing ledger
	require.NoError(t, svc.Initialize(context.Background(), testConfig()))
	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatal("re-initialization modified the ledger")
	}
}

func TestDepositBaseDenom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 100}})
	require.NoError(t, err)
	assert.Equal(t, "deposit", res.Attributes["method"])
	assert.Equal(t, "100", res.Attributes["credited"])

	user, err := svc.GetUserInfo(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), user.TotalValue)
	assert.Len(t, user.Deposits, 1)

	total, err := svc.GetTotalValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), total)
}

func TestDepositValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFunds))

	_, err = svc.Deposit(ctx, userAddr, []model.Coin{
		{Denom: "usdc", Amount: 10}, {Denom: "inj", Amount: 10},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrMultipleDenoms))

	_, err = svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 0}})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAmount))

	_, err = svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "atom", Amount: 10}})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedDenom))
}

func TestDepositConvertsNonBaseDenom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// 10 inj = 100 usdc credited
	res, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "inj", Amount: 10}})
	require.NoError(t, err)
	assert.Equal(t, "100", res.Attributes["credited"])

	user, _ := svc.GetUserInfo(ctx, userAddr)
	assert.Equal(t, uint64(100), user.TotalValue)
}

func TestDepositSpreadsAcrossEnabledProtocols(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	res, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 1000}})
	require.NoError(t, err)

	// transfer into the vault plus one deposit per protocol
	assert.Len(t, res.Instructions, 4)

	helix, _ := svc.GetProtocolInfo(ctx, "helix")
	hydro, _ := svc.GetProtocolInfo(ctx, "hydro")
	neptune, _ := svc.GetProtocolInfo(ctx, "neptune")
	assert.Equal(t, uint64(420), helix.CurrentBalance)
	assert.Equal(t, uint64(180), hydro.CurrentBalance)
	assert.Equal(t, uint64(400), neptune.CurrentBalance)
}

func TestDepositSkipsDisabledProtocols(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	disabled := false
	_, err := svc.UpdateProtocol(ctx, adminAddr, "hydro", &disabled, nil)
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 1000}})
	require.NoError(t, err)

	hydro, _ := svc.GetProtocolInfo(ctx, "hydro")
	assert.Equal(t, uint64(0), hydro.CurrentBalance)
}

func TestWithdrawAfterDeposit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 100}})
	require.NoError(t, err)

	res, err := svc.Withdraw(ctx, userAddr, 50, "")
	require.NoError(t, err)
	assert.Equal(t, "withdraw", res.Attributes["method"])

	user, _ := svc.GetUserInfo(ctx, userAddr)
	assert.Equal(t, uint64(50), user.TotalValue)
	total, _ := svc.GetTotalValue(ctx)
	assert.Equal(t, uint64(50), total)
}

func TestDepositOverflowRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	huge := uint64(1) << 63
	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: huge}})
	require.NoError(t, err)
	before := store.Snapshot()

	// a second deposit of the same size would wrap the pool total
	_, err = svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: huge}})
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))

	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatal("rejected deposit modified the ledger")
	}
	user, _ := svc.GetUserInfo(ctx, userAddr)
	assert.Equal(t, huge, user.TotalValue)
}

func TestWithdrawValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Withdraw(ctx, userAddr, 0, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAmount))

	_, err = svc.Withdraw(ctx, userAddr, 50, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientFunds))
}

func TestWithdrawPullsProportionally(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	// hand-set balances 100/300 to make the ratio arithmetic visible
	seedProtocolBalance(t, svc, "helix", 100)
	seedProtocolBalance(t, svc, "hydro", 300)
	seedProtocolBalance(t, svc, "neptune", 0)
	seedUserBalance(t, svc, userAddr, 400)

	_, err := svc.Withdraw(ctx, userAddr, 40, "")
	require.NoError(t, err)

	helix, _ := svc.GetProtocolInfo(ctx, "helix")
	hydro, _ := svc.GetProtocolInfo(ctx, "hydro")
	assert.Equal(t, uint64(90), helix.CurrentBalance)  // pulled 40*100/400 = 10
	assert.Equal(t, uint64(270), hydro.CurrentBalance) // pulled 40*300/400 = 30
}

func TestFailedOperationLeavesLedgerUntouched(t *testing.T) {
	svc, store, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 500}})
	require.NoError(t, err)
	before := store.Snapshot()

	_, err = svc.Withdraw(ctx, userAddr, 10_000, "")
	require.Error(t, err)
	_, err = svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "atom", Amount: 5}})
	require.Error(t, err)
	_, err = svc.Rebalance(ctx, userAddr, map[string]decimal.Decimal{"helix": decimal.NewFromInt(1)}, "x")
	require.Error(t, err)

	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatal("failed operations must not modify the ledger")
	}
}

func TestEmergencyWithdrawChargesFee(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 100}})
	require.NoError(t, err)

	res, err := svc.EmergencyWithdraw(ctx, userAddr, "")
	require.NoError(t, err)
	assert.Equal(t, "1", res.Attributes["fee_amount"]) // 1% of 100
	assert.Equal(t, "99", res.Attributes["amount"])

	user, _ := svc.GetUserInfo(ctx, userAddr)
	assert.Equal(t, uint64(0), user.TotalValue)

	// the full balance leaves the accounting; the fee is withheld from the
	// payout, not retained as unowned value
	total, _ := svc.GetTotalValue(ctx)
	assert.Equal(t, uint64(0), total)
}

func TestEmergencyWithdrawKeepsAccountsBalanced(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	second := "0x1000000000000000000000000000000000000005"

	_, err := svc.Deposit(ctx, userAddr, []model.Coin{{Denom: "usdc", Amount: 100}})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, second, []model.Coin{{Denom: "usdc", Amount: 250}})
	require.NoError(t, err)

	_, err = svc.EmergencyWithdraw(ctx, userAddr, "")
	require.NoError(t, err)

	// total value tracks the sum of user balances, fee included
	remaining, _ := svc.GetUserInfo(ctx, second)
	total, _ := svc.GetTotalValue(ctx)
	assert.Equal(t, remaining.TotalValue, total)

	_, err = svc.EmergencyWithdraw(ctx, second, "")
	require.NoError(t, err)
	total, _ = svc.GetTotalValue(ctx)
	assert.Equal(t, uint64(0), total)
}

func TestEmergencyWithdrawPullsPoolShare(t *testing.T) {
	svc, _, _ := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	// user owns 100 of a 400 pool; 200 of that pool sits in helix and the
	// remaining 300 is idle in the vault account
	seedUserBalance(t, svc, userAddr, 100)
	seedProtocolBalance(t, svc, "helix", 200)
	tx := ledger.NewTx(svc.store)
	require.NoError(t, saveTotalValue(ctx, tx, 400))
	require.NoError(t, tx.Commit(ctx))

	res, err := svc.EmergencyWithdraw(ctx, userAddr, "")
	require.NoError(t, err)
	assert.Equal(t, "99", res.Attributes["amount"])

	// helix gives up the user's share of the whole pool: 200*100/400 = 50
	helix, _ := svc.GetProtocolInfo(ctx, "helix")
	assert.Equal(t, uint64(150), helix.CurrentBalance)

	total, _ := svc.GetTotalValue(ctx)
	assert.Equal(t, uint64(300), total) // 400 less the user's full 100
}

func TestEmergencyWithdrawWithoutBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.EmergencyWithdraw(context.Background(), userAddr, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFunds))
}

func TestRefreshBalances(t *testing.T) {
	svc, _, querier := newTestService(t)
	addStandardProtocols(t, svc)
	ctx := context.Background()

	querier.balances["contract_helix"] = 100
	querier.balances["contract_hydro"] = 150
	querier.balances["contract_neptune"] = 200

	_, err := svc.RefreshBalances(ctx, userAddr)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	res, err := svc.RefreshBalances(ctx, operatorAddr)
	require.NoError(t, err)
	assert.Equal(t, "450", res.Attributes["total_value"])

	helix, _ := svc.GetProtocolInfo(ctx, "helix")
	assert.Equal(t, uint64(100), helix.CurrentBalance)
	total, _ := svc.GetTotalValue(ctx)
	assert.Equal(t, uint64(450), total)
}

func TestGetProtocolAPY(t *testing.T) {
	svc, _, querier := newTestService(t)
	addStandardProtocols(t, svc)
	querier.apy["contract_helix"] = "0.05"

	apy, err := svc.GetProtocolAPY(context.Background(), "helix")
	require.NoError(t, err)
	assert.True(t, apy.Equal(decimal.RequireFromString("0.05")))

	_, err = svc.GetProtocolAPY(context.Background(), "ghost")
	assert.True(t, apperrors.Is(err, apperrors.ErrProtocolNotFound))
}

// seedProtocolBalance and seedUserBalance write ledger entries directly,
// bypassing the instruction flow, to set up arithmetic fixtures.
func seedProtocolBalance(t *testing.T, svc *Service, name string, balance uint64) {
	t.Helper()
	ctx := context.Background()
	tx := ledger.NewTx(svc.store)
	p, err := loadProtocol(ctx, tx, name)
	require.NoError(t, err)
	p.CurrentBalance = balance
	require.NoError(t, saveProtocol(ctx, tx, p))
	require.NoError(t, tx.Commit(ctx))
}

func seedUserBalance(t *testing.T, svc *Service, addr string, balance uint64) {
	t.Helper()
	ctx := context.Background()
	tx := ledger.NewTx(svc.store)
	user, err := loadUser(ctx, tx, addr)
	require.NoError(t, err)
	user.TotalValue = balance
	require.NoError(t, saveUser(ctx, tx, addr, user))
	require.NoError(t, saveTotalValue(ctx, tx, balance))
	require.NoError(t, tx.Commit(ctx))
}
