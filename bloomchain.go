package bloomchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/bloomchain/bloom"
	"github.com/hupe1980/bloomchain/storage"
)

// AddResult is the per-item outcome of Add/MAdd.
type AddResult int

const (
	// AddOk means the item was newly inserted.
	AddOk AddResult = iota

	// AddExists means the item was found in an existing sub-filter and not
	// re-inserted.
	AddExists

	// AddFull means the chain is non-scaling and at capacity; the item was
	// dropped. This is a per-item result, not an error.
	AddFull
)

// String implements fmt.Stringer.
func (r AddResult) String() string {
	switch r {
	case AddOk:
		return "ok"
	case AddExists:
		return "exists"
	case AddFull:
		return "full"
	default:
		return fmt.Sprintf("AddResult(%d)", int(r))
	}
}

// ChainInfo is the introspection result of Info.
type ChainInfo struct {
	// Capacity is the total item capacity across the current sub-filters.
	Capacity uint64

	// BloomBytes is the byte total across all sub-filters.
	BloomBytes uint64

	// NFilters is the number of sub-filters.
	NFilters uint16

	// Size is the count of distinct items inserted.
	Size uint64

	// Expansion is the growth multiplier; zero for non-scaling chains.
	Expansion uint16
}

// BloomChain implements the scaling Bloom filter data type on top of an
// injected storage engine.
//
// Each namespace key owns one chain: a metadata record plus an ordered list
// of fixed-size sub-filters. Mutations hold an exclusive per-key lock and
// commit all staged writes in one atomic batch; queries read from a single
// engine snapshot and take no lock.
type BloomChain struct {
	engine  storage.Engine
	locks   *storage.LockManager
	logger  *Logger
	metrics MetricsCollector

	namespace    []byte
	scanOrder    ScanOrder
	errorRate    float64
	initCapacity uint32
	expansion    uint16
}

// New creates a BloomChain over the given engine. The engine reference is
// non-owning: Close does not close the engine.
func New(engine storage.Engine, optFns ...Option) (*BloomChain, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", ErrInvalidArgument)
	}

	o := applyOptions(optFns)

	return &BloomChain{
		engine:       engine,
		locks:        storage.NewLockManager(),
		logger:       o.logger,
		metrics:      o.metrics,
		namespace:    o.namespace,
		scanOrder:    o.scanOrder,
		errorRate:    o.errorRate,
		initCapacity: o.initCapacity,
		expansion:    o.expansion,
	}, nil
}

// Close releases chain-level resources. The injected engine stays open.
func (bc *BloomChain) Close() error {
	return nil
}

// Reserve creates a new chain under key with the given first-filter capacity,
// target false-positive rate and expansion multiplier. It fails with
// ErrChainExists if the key already holds a chain.
func (bc *BloomChain) Reserve(ctx context.Context, key []byte, capacity uint32, errorRate float64, expansion uint16) error {
	start := time.Now()
	err := bc.reserve(ctx, key, capacity, errorRate, expansion)
	bc.metrics.RecordReserve(time.Since(start), err)
	bc.logger.LogReserve(ctx, key, capacity, errorRate, expansion, err)
	return err
}

func (bc *BloomChain) reserve(ctx context.Context, key []byte, capacity uint32, errorRate float64, expansion uint16) error {
	if errorRate <= 0 || errorRate >= 1 {
		return &ErrInvalidErrorRate{Rate: errorRate}
	}
	if capacity == 0 {
		return &ErrInvalidCapacity{Capacity: capacity}
	}

	nsKey := storage.NamespacedKey(bc.namespace, key)

	unlock := bc.locks.Lock(nsKey)
	defer unlock()

	_, err := bc.loadMetadata(ctx, nsKey)
	switch {
	case err == nil:
		return ErrChainExists
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	_, err = bc.createChain(ctx, nsKey, errorRate, capacity, expansion)
	return err
}

// Add inserts a single item. It is MAdd with one item.
func (bc *BloomChain) Add(ctx context.Context, key, item []byte) (AddResult, error) {
	rets, err := bc.MAdd(ctx, key, item)
	if err != nil {
		return AddOk, err
	}
	return rets[0], nil
}

// MAdd inserts items into the chain under key, returning one result per item
// in input order. A missing chain is created on the fly with the configured
// defaults. The whole call runs under the key's exclusive lock and commits
// at most one insert batch.
func (bc *BloomChain) MAdd(ctx context.Context, key []byte, items ...[]byte) ([]AddResult, error) {
	start := time.Now()
	rets, err := bc.mAdd(ctx, key, items)

	full := 0
	for _, r := range rets {
		if r == AddFull {
			full++
		}
	}
	bc.metrics.RecordAdd(len(items), full, time.Since(start), err)
	bc.logger.LogAdd(ctx, key, len(items), err)
	return rets, err
}

func (bc *BloomChain) mAdd(ctx context.Context, key []byte, items [][]byte) ([]AddResult, error) {
	nsKey := storage.NamespacedKey(bc.namespace, key)

	unlock := bc.locks.Lock(nsKey)
	defer unlock()

	metadata, err := bc.loadMetadata(ctx, nsKey)
	if errors.Is(err, storage.ErrNotFound) {
		metadata, err = bc.createChain(ctx, nsKey, bc.errorRate, bc.initCapacity, bc.expansion)
	}
	if err != nil {
		return nil, err
	}

	filterKeys := storage.SubFilterKeys(nsKey, metadata.Version, metadata.NFilters)
	filterData, err := bc.loadFilters(ctx, filterKeys)
	if err != nil {
		return nil, err
	}

	hashes := hashItems(items)

	originSize := metadata.Size
	batch := storage.NewBatch()
	batch.SetLogData(storage.RecordBloomChain, "insert")

	rets := make([]AddResult, len(items))
	for i, h := range hashes {
		found, err := bc.checkExists(filterData, h)
		if err != nil {
			return nil, err
		}
		if found {
			rets[i] = AddExists
			continue
		}

		if metadata.Size+1 > metadata.Capacity() {
			if !metadata.IsScaling() {
				rets[i] = AddFull
				continue
			}

			// Growth changes which filter is "last": persist the current
			// last filter's final bytes before appending a new one.
			batch.Put(storage.DataCF, filterKeys[len(filterKeys)-1], filterData[len(filterData)-1])

			newFilter, err := bc.growChain(ctx, nsKey, metadata, batch)
			if err != nil {
				return nil, err
			}
			filterData = append(filterData, newFilter)
			filterKeys = append(filterKeys, storage.SubFilterKey(nsKey, metadata.Version, metadata.NFilters-1))
		}

		last, err := bloom.FromBytes(filterData[len(filterData)-1])
		if err != nil {
			return nil, err
		}
		last.InsertHash(h)
		rets[i] = AddOk
		metadata.Size++
	}

	if metadata.Size != originSize {
		encoded, err := metadata.MarshalBinary()
		if err != nil {
			return nil, err
		}
		batch.Put(storage.MetadataCF, nsKey, encoded)
		batch.Put(storage.DataCF, filterKeys[len(filterKeys)-1], filterData[len(filterData)-1])
	}

	if err := bc.engine.Commit(ctx, batch); err != nil {
		return nil, err
	}
	return rets, nil
}

// Exists reports whether item may be a member of the chain under key.
func (bc *BloomChain) Exists(ctx context.Context, key, item []byte) (bool, error) {
	exists, err := bc.MExists(ctx, key, item)
	if err != nil {
		return false, err
	}
	return exists[0], nil
}

// MExists reports membership for each item in input order. A missing chain
// has no members: the call returns all-false without error. No lock is
// taken; consistency comes from a single engine snapshot.
func (bc *BloomChain) MExists(ctx context.Context, key []byte, items ...[]byte) ([]bool, error) {
	start := time.Now()
	exists, err := bc.mExists(ctx, key, items)
	bc.metrics.RecordExists(len(items), time.Since(start), err)
	bc.logger.LogExists(ctx, key, len(items), err)
	return exists, err
}

func (bc *BloomChain) mExists(ctx context.Context, key []byte, items [][]byte) ([]bool, error) {
	nsKey := storage.NamespacedKey(bc.namespace, key)

	metadata, err := bc.loadMetadata(ctx, nsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return make([]bool, len(items)), nil
	}
	if err != nil {
		return nil, err
	}

	filterKeys := storage.SubFilterKeys(nsKey, metadata.Version, metadata.NFilters)
	filterData, err := bc.loadFilters(ctx, filterKeys)
	if err != nil {
		return nil, err
	}

	exists := make([]bool, len(items))
	for i, h := range hashItems(items) {
		exists[i], err = bc.checkExists(filterData, h)
		if err != nil {
			return nil, err
		}
	}
	return exists, nil
}

// Info returns chain introspection data. Unlike MExists, a missing chain is
// a hard error: the caller explicitly asked about an existing chain.
func (bc *BloomChain) Info(ctx context.Context, key []byte) (ChainInfo, error) {
	start := time.Now()
	info, err := bc.info(ctx, key)
	bc.metrics.RecordInfo(time.Since(start), err)
	return info, err
}

func (bc *BloomChain) info(ctx context.Context, key []byte) (ChainInfo, error) {
	nsKey := storage.NamespacedKey(bc.namespace, key)

	metadata, err := bc.loadMetadata(ctx, nsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ChainInfo{}, ErrNotFound
	}
	if err != nil {
		return ChainInfo{}, err
	}

	return ChainInfo{
		Capacity:   metadata.Capacity(),
		BloomBytes: metadata.BloomBytes,
		NFilters:   metadata.NFilters,
		Size:       metadata.Size,
		Expansion:  metadata.Expansion,
	}, nil
}

// loadMetadata fetches and decodes the chain metadata record for nsKey.
func (bc *BloomChain) loadMetadata(ctx context.Context, nsKey []byte) (*ChainMetadata, error) {
	raw, err := bc.engine.Get(ctx, storage.MetadataCF, nsKey)
	if err != nil {
		return nil, err
	}

	metadata := &ChainMetadata{}
	if err := metadata.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return metadata, nil
}

// loadFilters reads every sub-filter under one snapshot, preserving index
// order. The first read error aborts the call; no partial result escapes.
func (bc *BloomChain) loadFilters(ctx context.Context, filterKeys [][]byte) ([][]byte, error) {
	snapshot, err := bc.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snapshot.Release()

	return readFilters(snapshot, filterKeys)
}

func readFilters(snapshot storage.Snapshot, filterKeys [][]byte) ([][]byte, error) {
	filterData := make([][]byte, 0, len(filterKeys))
	for i, fk := range filterKeys {
		data, err := snapshot.Get(storage.DataCF, fk)
		if err != nil {
			return nil, fmt.Errorf("load sub-filter %d: %w", i, err)
		}
		filterData = append(filterData, data)
	}
	return filterData, nil
}

// checkExists probes every sub-filter for the hash, honoring the configured
// scan order, and stops at the first hit.
func (bc *BloomChain) checkExists(filterData [][]byte, h uint64) (bool, error) {
	n := len(filterData)
	for i := 0; i < n; i++ {
		idx := n - 1 - i // newest first
		if bc.scanOrder == OldestFirst {
			idx = i
		}

		f, err := bloom.FromBytes(filterData[idx])
		if err != nil {
			return false, fmt.Errorf("sub-filter %d: %w", idx, err)
		}
		if f.FindHash(h) {
			return true, nil
		}
	}
	return false, nil
}

// createChain builds metadata for a fresh chain (one sub-filter, size zero),
// allocates the first sub-filter, and commits both in a batch tagged
// createBloomChain. Creation is atomic on its own, independent of any insert
// batch the caller may assemble afterwards.
func (bc *BloomChain) createChain(ctx context.Context, nsKey []byte, errorRate float64, capacity uint32, expansion uint16) (*ChainMetadata, error) {
	metadata := &ChainMetadata{
		Version:      newChainVersion(),
		NFilters:     1,
		Expansion:    expansion,
		BaseCapacity: capacity,
		ErrorRate:    errorRate,
		BloomBytes:   uint64(bloom.OptimalBytes(capacity, errorRate)),
	}

	filter, err := bloom.New(uint32(metadata.BloomBytes))
	if err != nil {
		return nil, err
	}

	encoded, err := metadata.MarshalBinary()
	if err != nil {
		return nil, err
	}

	batch := storage.NewBatch()
	batch.SetLogData(storage.RecordBloomChain, "createBloomChain")
	batch.Put(storage.MetadataCF, nsKey, encoded)
	batch.Put(storage.DataCF, storage.SubFilterKey(nsKey, metadata.Version, 0), filter.Bytes())

	if err := bc.engine.Commit(ctx, batch); err != nil {
		return nil, err
	}
	return metadata, nil
}

// growChain appends one sub-filter to a scaling chain: sizes it for
// baseCapacity * expansion^nFilters, bumps the filter count and byte total,
// stages the updated metadata into the caller's batch, and returns the new
// empty filter bytes. The caller stages the previous last filter before
// calling and commits the batch.
func (bc *BloomChain) growChain(ctx context.Context, nsKey []byte, metadata *ChainMetadata, batch *storage.Batch) ([]byte, error) {
	filterBytes := bloom.OptimalBytes(metadata.nextFilterCapacity(), metadata.ErrorRate)

	filter, err := bloom.New(filterBytes)
	if err != nil {
		return nil, err
	}

	metadata.NFilters++
	metadata.BloomBytes += uint64(filterBytes)

	encoded, err := metadata.MarshalBinary()
	if err != nil {
		return nil, err
	}
	batch.Put(storage.MetadataCF, nsKey, encoded)

	bc.logger.LogGrow(ctx, nsKey, metadata.NFilters, filterBytes)
	return filter.Bytes(), nil
}

// hashItems hashes every input once, independent of chain state.
func hashItems(items [][]byte) []uint64 {
	hashes := make([]uint64, len(items))
	for i, item := range items {
		hashes[i] = bloom.Hash(item)
	}
	return hashes
}
