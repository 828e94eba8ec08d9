package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
)

// Tx stages reads and writes against a Store. Nothing reaches the Store
// until Commit; an abandoned Tx leaves the Store bit-for-bit unchanged,
// which is what gives every public operation its all-or-nothing contract.
type Tx struct {
	store   Store
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewTx(store Store) *Tx {
	return &Tx{
		store:   store,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (tx *Tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := tx.writes[key]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, true, nil
	}
	if _, ok := tx.deletes[key]; ok {
		return nil, false, nil
	}
	v, found, err := tx.store.Get(ctx, key)
	if err != nil {
		return nil, false, apperrors.New(apperrors.ErrStore, "ledger read failed", err)
	}
	return v, found, nil
}

func (tx *Tx) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	tx.writes[key] = v
	delete(tx.deletes, key)
	return nil
}

func (tx *Tx) Delete(_ context.Context, key string) error {
	delete(tx.writes, key)
	tx.deletes[key] = struct{}{}
	return nil
}

// Keys merges the store's key set with staged writes, minus staged deletes.
func (tx *Tx) Keys(ctx context.Context, prefix string) ([]string, error) {
	stored, err := tx.store.Keys(ctx, prefix)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStore, "ledger key scan failed", err)
	}
	seen := make(map[string]struct{}, len(stored))
	keys := make([]string, 0, len(stored))
	for _, k := range stored {
		if _, deleted := tx.deletes[k]; deleted {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range tx.writes {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Commit flushes every staged mutation. Stores implementing Batcher get the
// whole set in one call; otherwise keys are applied in sorted order so
// replays are deterministic.
func (tx *Tx) Commit(ctx context.Context) error {
	deletes := make([]string, 0, len(tx.deletes))
	for k := range tx.deletes {
		deletes = append(deletes, k)
	}
	sort.Strings(deletes)

	if b, ok := tx.store.(Batcher); ok {
		if err := b.Apply(ctx, tx.writes, deletes); err != nil {
			return apperrors.New(apperrors.ErrStore, "ledger commit failed", err)
		}
		return nil
	}

	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := tx.store.Set(ctx, k, tx.writes[k]); err != nil {
			return apperrors.New(apperrors.ErrStore, "ledger commit failed", err)
		}
	}
	for _, k := range deletes {
		if err := tx.store.Delete(ctx, k); err != nil {
			return apperrors.New(apperrors.ErrStore, "ledger commit failed", err)
		}
	}
	return nil
}
