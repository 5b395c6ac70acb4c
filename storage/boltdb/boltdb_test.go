package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomchain/storage"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := Open(filepath.Join(t.TempDir(), "chains.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_CommitAndGet(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.Get(ctx, storage.MetadataCF, []byte("missing"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	b := storage.NewBatch()
	b.SetLogData(storage.RecordBloomChain, "createBloomChain")
	b.Put(storage.MetadataCF, []byte("meta"), []byte{1, 2})
	b.Put(storage.DataCF, []byte("filter"), []byte{3, 4})
	require.NoError(t, e.Commit(ctx, b))

	v, err := e.Get(ctx, storage.MetadataCF, []byte("meta"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, v)

	// Buckets are disjoint key spaces.
	_, err = e.Get(ctx, storage.DataCF, []byte("meta"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	b := storage.NewBatch()
	b.Put(storage.DataCF, []byte("k"), []byte("old"))
	require.NoError(t, e.Commit(ctx, b))

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)

	b2 := storage.NewBatch()
	b2.Put(storage.DataCF, []byte("k"), []byte("new"))
	require.NoError(t, e.Commit(ctx, b2))

	v, err := snap.Get(storage.DataCF, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), v)
	snap.Release()

	v, err = e.Get(ctx, storage.DataCF, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestEngine_Journal(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	b := storage.NewBatch()
	b.SetLogData(storage.RecordBloomChain, "createBloomChain")
	require.NoError(t, e.Commit(ctx, b))

	b2 := storage.NewBatch()
	b2.SetLogData(storage.RecordBloomChain, "insert")
	require.NoError(t, e.Commit(ctx, b2))

	journal, err := e.Journal()
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, "createBloomChain", journal[0].Op)
	assert.Equal(t, "insert", journal[1].Op)
}

func TestEngine_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.db")
	ctx := context.Background()

	e, err := Open(path, 0o600, nil)
	require.NoError(t, err)

	b := storage.NewBatch()
	b.Put(storage.MetadataCF, []byte("meta"), []byte("persisted"))
	require.NoError(t, e.Commit(ctx, b))
	require.NoError(t, e.Close())

	e2, err := Open(path, 0o600, nil)
	require.NoError(t, err)
	defer e2.Close()

	v, err := e2.Get(ctx, storage.MetadataCF, []byte("meta"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), v)
}
