package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 核心账本对象。所有金额一律以基准计价单位 (base denom) 的最小整数单位记账，
// 比例类字段使用精确十进制，绝不使用二进制浮点。

// Config 是金库的全局配置，仅 admin 可以修改
type Config struct {
	Admin          string   `json:"admin"`           // 管理员地址
	Operator       string   `json:"operator"`        // 唯一有权触发 rebalance 的操作者
	BaseDenom      string   `json:"base_denom"`      // 记账基准单位 (如 usdc)
	AcceptedDenoms []string `json:"accepted_denoms"` // 允许存入的币种
	SwapVenue      string   `json:"swap_venue"`      // 外部兑换场所 (router) 地址
}

// IsAccepted reports whether the denom may be deposited.
func (c *Config) IsAccepted(denom string) bool {
	for _, d := range c.AcceptedDenoms {
		if d == denom {
			return true
		}
	}
	return false
}

// RiskParameters 风控参数，仅 admin 可以修改
type RiskParameters struct {
	MaxAllocationPerProtocol decimal.Decimal `json:"max_allocation_per_protocol"` // 单协议最大配比 (0,1]
	MaxSlippage              decimal.Decimal `json:"max_slippage"`                // 兑换最大滑点 [0,1)
	RebalanceThreshold       decimal.Decimal `json:"rebalance_threshold"`         // 触发再平衡的偏离阈值
	EmergencyWithdrawalFee   decimal.Decimal `json:"emergency_withdrawal_fee"`    // 紧急提款手续费比例
}

// ProtocolInfo is the per-venue ledger entry, keyed by protocol name.
type ProtocolInfo struct {
	Name                 string          `json:"name"`
	ContractAddr         string          `json:"contract_addr"`
	AllocationPercentage decimal.Decimal `json:"allocation_percentage"`
	CurrentBalance       uint64          `json:"current_balance"`
	Enabled              bool            `json:"enabled"`
}

// UserDeposit is one audit-trail entry; balances are never derived from it.
type UserDeposit struct {
	Denom          string    `json:"denom"`
	OriginalAmount uint64    `json:"original_amount"`
	ValueAtDeposit uint64    `json:"value_at_deposit"`
	Timestamp      time.Time `json:"timestamp"`
}

// UserInfo is the per-depositor ledger entry. TotalValue is the net of all
// deposits minus withdrawals in base units.
type UserInfo struct {
	TotalValue uint64        `json:"total_value"`
	Deposits   []UserDeposit `json:"deposits"`
}

// NamedAllocation pairs a protocol name with an allocation fraction.
type NamedAllocation struct {
	Protocol   string          `json:"protocol"`
	Allocation decimal.Decimal `json:"allocation"`
}

// RebalanceRecord is an immutable history entry appended on every rebalance.
type RebalanceRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	InitiatedBy    string            `json:"initiated_by"`
	OldAllocations []NamedAllocation `json:"old_allocations"`
	NewAllocations []NamedAllocation `json:"new_allocations"`
	Reason         string            `json:"reason"`
}
