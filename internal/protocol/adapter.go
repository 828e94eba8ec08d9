// Package protocol implements the pluggable yield-venue capability: one
// Adapter per external protocol, resolved through a registration table.
// Adapters only build outbound instructions and run read-only queries; all
// ledger mutation stays with the caller. That separation lets the rebalance
// planner batch any number of adapter calls under one atomic ledger update.
package protocol

import (
	"context"
	"fmt"
	"sort"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// Querier is the read-only chain access adapters use for balance and APY
// lookups.
type Querier interface {
	SmartQuery(ctx context.Context, contract string, req any, resp any) error
}

// Adapter 单个收益协议的标准能力
type Adapter interface {
	Deposit(amount uint64) ([]model.Instruction, error)
	Withdraw(amount uint64) ([]model.Instruction, error)
	QueryBalance(ctx context.Context) (uint64, error)
	QueryAPY(ctx context.Context) (decimal.Decimal, error)
	Name() string
}

type factory func(contractAddr string, reg *Registry) Adapter

// Registry resolves a protocol-type identifier to a concrete Adapter.
// Adding a venue means adding a factory entry here, never a name switch
// inside business logic.
type Registry struct {
	baseDenom string
	vaultAddr string // account whose positions adapters query
	querier   Querier
	factories map[string]factory
}

func NewRegistry(baseDenom, vaultAddr string, q Querier) *Registry {
	r := &Registry{
		baseDenom: baseDenom,
		vaultAddr: vaultAddr,
		querier:   q,
		factories: make(map[string]factory),
	}
	r.factories["helix"] = newHelixAdapter
	r.factories["hydro"] = newHydroAdapter
	r.factories["neptune"] = newNeptuneAdapter
	return r
}

// Resolve returns the adapter for the given protocol type, bound to the
// protocol's contract address.
func (r *Registry) Resolve(protocolType, contractAddr string) (Adapter, error) {
	f, ok := r.factories[protocolType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrProtocolNotFound,
			fmt.Sprintf("unknown protocol type: %s", protocolType), nil)
	}
	return f(contractAddr, r), nil
}

// Types lists every registered protocol type, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
