// Package ledger defines the key-value store port every core component
// treats as the single source of truth, plus the staged transaction that
// makes each public operation atomic.
package ledger

import "context"

// Store 是账本的唯一持久化端口。实现方：内存 (默认) 或 Redis。
type Store interface {
	// Get returns the raw value, or found=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns all keys with the given prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Batcher is an optional Store capability: apply a set of writes and deletes
// in one shot. Tx.Commit uses it when available.
type Batcher interface {
	Apply(ctx context.Context, writes map[string][]byte, deletes []string) error
}

// Key layout. Protocol and user entries are prefixed so they can be
// enumerated in order.
const (
	KeyConfig           = "config"
	KeyRiskParameters   = "risk_parameters"
	KeyTotalValue       = "total_value"
	KeyRebalanceHistory = "rebalance_history"

	PrefixProtocol = "protocol:"
	PrefixUser     = "user:"
)

func ProtocolKey(name string) string { return PrefixProtocol + name }

func UserKey(addr string) string { return PrefixUser + addr }
