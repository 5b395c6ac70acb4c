// Package storage defines the engine collaborators the bloomchain core is
// built against: a key-value engine with snapshot reads and atomic batched
// writes, a batch builder, and a per-key lock manager.
//
// The chain layer holds a non-owning reference to an Engine; implementations
// can be in-memory (MemoryEngine) or persistent (storage/boltdb).
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)` for missing keys.
var ErrNotFound = errors.New("storage: not found")

// ColumnFamily separates record classes within an engine.
type ColumnFamily uint8

const (
	// MetadataCF holds one metadata record per namespace key.
	MetadataCF ColumnFamily = iota

	// DataCF holds sub-filter byte buffers.
	DataCF
)

// RecordType tags batches for downstream log consumers.
type RecordType uint8

// RecordBloomChain tags all bloom chain mutations.
const RecordBloomChain RecordType = 0xB1

// LogData describes one committed mutating batch. Engines hand it to
// whatever replication or audit machinery sits downstream; the chain core
// only emits it.
type LogData struct {
	Type RecordType
	Op   string
}

// Encode returns a compact binary form of the log entry.
func (l LogData) Encode() []byte {
	buf := make([]byte, 0, 2+len(l.Op))
	buf = append(buf, byte(l.Type))
	buf = binary.AppendUvarint(buf, uint64(len(l.Op)))
	buf = append(buf, l.Op...)
	return buf
}

// DecodeLogData parses a buffer produced by Encode.
func DecodeLogData(data []byte) (LogData, error) {
	if len(data) < 2 {
		return LogData{}, fmt.Errorf("storage: short log data (%d bytes)", len(data))
	}
	l := LogData{Type: RecordType(data[0])}
	n, read := binary.Uvarint(data[1:])
	if read <= 0 || uint64(len(data[1+read:])) < n {
		return LogData{}, errors.New("storage: malformed log data")
	}
	l.Op = string(data[1+read : 1+read+int(n)])
	return l, nil
}

// Op is one staged write.
type Op struct {
	CF    ColumnFamily
	Key   []byte
	Value []byte
}

// Batch accumulates the writes of one mutation call for a single atomic
// commit. It is a plain builder: ownership of committing it belongs to the
// outermost caller, while inner helpers only stage into it.
type Batch struct {
	ops []Op
	log *LogData
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// SetLogData attaches the batch's single log entry. Every mutating batch
// carries exactly one.
func (b *Batch) SetLogData(rt RecordType, op string) {
	b.log = &LogData{Type: rt, Op: op}
}

// LogData returns the attached log entry, if any.
func (b *Batch) LogData() (LogData, bool) {
	if b.log == nil {
		return LogData{}, false
	}
	return *b.log, true
}

// Put stages a write. Key and value are copied; callers may keep mutating
// their buffers after staging.
func (b *Batch) Put(cf ColumnFamily, key, value []byte) {
	b.ops = append(b.ops, Op{
		CF:    cf,
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	})
}

// Ops returns the staged writes in staging order. Later writes to the same
// key supersede earlier ones when applied in order.
func (b *Batch) Ops() []Op { return b.ops }

// Len returns the number of staged writes.
func (b *Batch) Len() int { return len(b.ops) }

// Snapshot is a consistent point-in-time read view spanning multiple reads.
type Snapshot interface {
	// Get returns the value for key, or ErrNotFound. The returned slice is
	// owned by the caller.
	Get(cf ColumnFamily, key []byte) ([]byte, error)

	// Release frees the snapshot. It must be called exactly once.
	Release()
}

// Engine is the storage collaborator consumed by the chain core.
type Engine interface {
	// Get reads the latest committed value for key, or ErrNotFound. The
	// returned slice is owned by the caller.
	Get(ctx context.Context, cf ColumnFamily, key []byte) ([]byte, error)

	// Snapshot returns a consistent read view.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Commit applies the whole batch atomically, or none of it.
	Commit(ctx context.Context, batch *Batch) error

	// Close releases engine resources.
	Close() error
}
