package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_GetNotFound(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	_, err := e.Get(context.Background(), MetadataCF, []byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryEngine_CommitAndGet(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	ctx := context.Background()

	b := NewBatch()
	b.SetLogData(RecordBloomChain, "createBloomChain")
	b.Put(MetadataCF, []byte("meta"), []byte{1, 2, 3})
	b.Put(DataCF, []byte("filter-0"), []byte{0xff})
	require.NoError(t, e.Commit(ctx, b))

	v, err := e.Get(ctx, MetadataCF, []byte("meta"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)

	v, err = e.Get(ctx, DataCF, []byte("filter-0"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, v)

	// Column families are disjoint key spaces.
	_, err = e.Get(ctx, DataCF, []byte("meta"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryEngine_GetReturnsCopy(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	ctx := context.Background()

	b := NewBatch()
	b.Put(DataCF, []byte("k"), []byte{1})
	require.NoError(t, e.Commit(ctx, b))

	v, err := e.Get(ctx, DataCF, []byte("k"))
	require.NoError(t, err)
	v[0] = 99

	again, err := e.Get(ctx, DataCF, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, again, "caller mutation must not leak into the engine")
}

func TestMemoryEngine_SnapshotIsolation(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	ctx := context.Background()

	b := NewBatch()
	b.Put(DataCF, []byte("k"), []byte("old"))
	require.NoError(t, e.Commit(ctx, b))

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Release()

	// Commit after the snapshot was taken.
	b2 := NewBatch()
	b2.Put(DataCF, []byte("k"), []byte("new"))
	b2.Put(DataCF, []byte("k2"), []byte("born later"))
	require.NoError(t, e.Commit(ctx, b2))

	v, err := snap.Get(DataCF, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), v)

	_, err = snap.Get(DataCF, []byte("k2"))
	require.ErrorIs(t, err, ErrNotFound)

	// The engine itself sees the newer state.
	v, err = e.Get(ctx, DataCF, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestMemoryEngine_Journal(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	ctx := context.Background()

	b := NewBatch()
	b.SetLogData(RecordBloomChain, "createBloomChain")
	b.Put(MetadataCF, []byte("m"), []byte("v"))
	require.NoError(t, e.Commit(ctx, b))

	b2 := NewBatch()
	b2.SetLogData(RecordBloomChain, "insert")
	require.NoError(t, e.Commit(ctx, b2))

	journal := e.Journal()
	require.Len(t, journal, 2)
	assert.Equal(t, "createBloomChain", journal[0].Op)
	assert.Equal(t, "insert", journal[1].Op)
	assert.Equal(t, RecordBloomChain, journal[0].Type)
}

func TestMemoryEngine_ContextCancelled(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Get(ctx, MetadataCF, []byte("k"))
	require.ErrorIs(t, err, context.Canceled)

	_, err = e.Snapshot(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.ErrorIs(t, e.Commit(ctx, NewBatch()), context.Canceled)
}
