package ledger

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxStagesWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "a", []byte("old"))

	tx := NewTx(store)
	_ = tx.Set(ctx, "a", []byte("new"))
	_ = tx.Set(ctx, "b", []byte("created"))

	// Tx sees its own writes
	v, found, err := tx.Get(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", string(v))

	// Store does not, yet
	v, _, _ = store.Get(ctx, "a")
	assert.Equal(t, "old", string(v))
	_, found, _ = store.Get(ctx, "b")
	assert.False(t, found)

	assert.NoError(t, tx.Commit(ctx))

	v, _, _ = store.Get(ctx, "a")
	assert.Equal(t, "new", string(v))
	v, _, _ = store.Get(ctx, "b")
	assert.Equal(t, "created", string(v))
}

func TestTxAbandonLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "config", []byte(`{"x":1}`))
	_ = store.Set(ctx, "protocol:helix", []byte(`{"b":100}`))
	before := store.Snapshot()

	tx := NewTx(store)
	_ = tx.Set(ctx, "config", []byte(`{"x":2}`))
	_ = tx.Delete(ctx, "protocol:helix")
	_ = tx.Set(ctx, "protocol:hydro", []byte(`{"b":5}`))
	// tx dropped without Commit

	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatalf("store mutated by abandoned tx")
	}
}

func TestTxDeleteVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "user:0xA1", []byte("x"))

	tx := NewTx(store)
	_ = tx.Delete(ctx, "user:0xA1")

	_, found, _ := tx.Get(ctx, "user:0xA1")
	assert.False(t, found)

	// delete then re-set wins
	_ = tx.Set(ctx, "user:0xA1", []byte("y"))
	v, found, _ := tx.Get(ctx, "user:0xA1")
	assert.True(t, found)
	assert.Equal(t, "y", string(v))
}

func TestTxKeysMergesStagedAndStored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "protocol:helix", []byte("1"))
	_ = store.Set(ctx, "protocol:neptune", []byte("2"))
	_ = store.Set(ctx, "user:0xA1", []byte("3"))

	tx := NewTx(store)
	_ = tx.Set(ctx, "protocol:hydro", []byte("4"))
	_ = tx.Delete(ctx, "protocol:neptune")

	keys, err := tx.Keys(ctx, "protocol:")
	assert.NoError(t, err)
	assert.Equal(t, []string{"protocol:helix", "protocol:hydro"}, keys)
}

func TestMemoryStoreKeysSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "protocol:neptune", []byte("1"))
	_ = store.Set(ctx, "protocol:helix", []byte("2"))
	_ = store.Set(ctx, "protocol:hydro", []byte("3"))

	keys, err := store.Keys(ctx, "protocol:")
	assert.NoError(t, err)
	assert.Equal(t, []string{"protocol:helix", "protocol:hydro", "protocol:neptune"}, keys)
}
