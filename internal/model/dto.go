package model

import "github.com/shopspring/decimal"

// Request bodies for the public operation surface.

type DepositRequest struct {
	Denom  string `json:"denom" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

type WithdrawRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
	Denom  string `json:"denom,omitempty"` // empty = base denom
}

type EmergencyWithdrawRequest struct {
	Denom string `json:"denom,omitempty"`
}

type AddProtocolRequest struct {
	Name              string          `json:"name" binding:"required"`
	ContractAddr      string          `json:"contract_addr" binding:"required"`
	InitialAllocation decimal.Decimal `json:"initial_allocation"`
}

type UpdateProtocolRequest struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	ContractAddr *string `json:"contract_addr,omitempty"`
}

type RebalanceRequest struct {
	TargetAllocations map[string]decimal.Decimal `json:"target_allocations" binding:"required"`
	Reason            string                     `json:"reason"`
}

type UpdateRiskParametersRequest struct {
	RiskParameters RiskParameters `json:"risk_parameters"`
}

type DenomRequest struct {
	Denom string `json:"denom" binding:"required"`
}

type AddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// Query responses.

type UserInfoResponse struct {
	Address  string   `json:"address"`
	UserInfo UserInfo `json:"user_info"`
}

type ProtocolsResponse struct {
	Protocols []ProtocolInfo `json:"protocols"`
}

type ProtocolInfoResponse struct {
	Protocol ProtocolInfo `json:"protocol"`
}

type ProtocolAPYResponse struct {
	Protocol string          `json:"protocol"`
	APY      decimal.Decimal `json:"apy"`
}

type RebalanceHistoryResponse struct {
	History []RebalanceRecord `json:"history"`
}

type TotalValueResponse struct {
	TotalValue uint64 `json:"total_value"`
}

type RebalanceCheckResponse struct {
	RebalanceNeeded bool `json:"rebalance_needed"`
}
