package storage

import (
	"context"
	"maps"
	"sync"
)

// MemoryEngine is an in-memory Engine implementation.
//
// Snapshots clone the column family maps under the read lock; values are
// never mutated in place after commit, so the clone is shallow and cheap for
// test-sized data sets. Committed log entries accumulate in an in-memory
// journal standing in for a downstream replication consumer.
type MemoryEngine struct {
	mu      sync.RWMutex
	cfs     [2]map[string][]byte
	journal []LogData
	closed  bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		cfs: [2]map[string][]byte{
			make(map[string][]byte),
			make(map[string][]byte),
		},
	}
}

// Get reads the latest committed value for key.
func (m *MemoryEngine) Get(ctx context.Context, cf ColumnFamily, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.cfs[cf][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Snapshot returns a view of the engine at the current commit point.
func (m *MemoryEngine) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return &memorySnapshot{
		cfs: [2]map[string][]byte{
			maps.Clone(m.cfs[0]),
			maps.Clone(m.cfs[1]),
		},
	}, nil
}

// Commit applies all staged writes under one lock acquisition; concurrent
// readers observe either none or all of the batch.
func (m *MemoryEngine) Commit(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range batch.Ops() {
		m.cfs[op.CF][string(op.Key)] = op.Value
	}
	if ld, ok := batch.LogData(); ok {
		m.journal = append(m.journal, ld)
	}
	return nil
}

// Journal returns a copy of the committed log entries in commit order.
func (m *MemoryEngine) Journal() []LogData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]LogData(nil), m.journal...)
}

// Close releases the engine's maps.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cfs[0] = nil
	m.cfs[1] = nil
	return nil
}

type memorySnapshot struct {
	cfs [2]map[string][]byte
}

func (s *memorySnapshot) Get(cf ColumnFamily, key []byte) ([]byte, error) {
	v, ok := s.cfs[cf][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *memorySnapshot) Release() {
	s.cfs[0] = nil
	s.cfs[1] = nil
}
