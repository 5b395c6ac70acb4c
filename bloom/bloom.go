// Package bloom implements the block-split Bloom filter used by bloomchain
// sub-filters.
//
// The filter operates directly on a flat byte buffer so that persisted
// records can be probed and mutated without decoding: FromBytes returns a
// zero-copy view over the buffer it is given. Each filter is an array of
// 256-bit blocks; an item sets (or tests) exactly one bit in each of the
// eight 32-bit lanes of a single block. Items are hashed once with XXH64 and
// the 64-bit hash is the only thing the filter ever sees.
package bloom

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	// BytesPerBlock is the size of one 256-bit filter block.
	BytesPerBlock = 32

	// MinFilterBytes is the smallest filter ever allocated (one block).
	MinFilterBytes = 32

	// MaxFilterBytes caps a single sub-filter allocation.
	MaxFilterBytes = 128 << 20

	wordsPerBlock = 8
)

// salt rotates the lower hash bits into eight independent lane bits.
// These are the standard split-block constants (Apache Parquet).
var salt = [wordsPerBlock]uint32{
	0x47b6137b, 0x44974d91, 0x8824ad5b, 0xa2b7289d,
	0x705495c7, 0x2df1424b, 0x9efc4947, 0x5c6bfb31,
}

var (
	// ErrFilterSize is returned when a buffer length cannot hold a valid filter.
	ErrFilterSize = errors.New("bloom: filter size must be a non-zero multiple of the block size")

	// ErrFilterTooLarge is returned when a requested allocation exceeds MaxFilterBytes.
	ErrFilterTooLarge = errors.New("bloom: filter size exceeds maximum")
)

// Hash returns the 64-bit XXH64 digest of b with seed zero.
//
// The chain layer hashes every item exactly once and probes all sub-filters
// with the same digest.
func Hash(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// OptimalBytes returns the filter size in bytes for the target capacity and
// false-positive rate.
//
// The bit count follows the split-block estimate
//
//	numBits = -8 * n / ln(1 - fpp^(1/8))
//
// rounded up to the next power of two and clamped to
// [MinFilterBytes, MaxFilterBytes]. Power-of-two sizes keep block addressing
// a pure multiply-shift.
func OptimalBytes(capacity uint32, errorRate float64) uint32 {
	if capacity == 0 {
		return MinFilterBytes
	}
	if errorRate <= 0 || errorRate >= 1 {
		errorRate = 0.01
	}

	numBits := -8.0 * float64(capacity) / math.Log(1.0-math.Pow(errorRate, 1.0/8.0))
	numBytes := uint64(math.Ceil(numBits / 8.0))

	if numBytes < MinFilterBytes {
		return MinFilterBytes
	}
	if numBytes > MaxFilterBytes {
		return MaxFilterBytes
	}

	// Round up to the next power of two.
	v := numBytes - 1
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	if v > MaxFilterBytes {
		return MaxFilterBytes
	}
	return uint32(v)
}

// Filter is a block-split Bloom filter over a byte buffer.
//
// A Filter never grows or shrinks its buffer; only bit content changes.
// Filters are not safe for concurrent mutation; the chain layer serializes
// writers with a per-key lock.
type Filter struct {
	data    []byte
	nblocks uint32
}

// New allocates a zeroed filter of numBytes.
func New(numBytes uint32) (*Filter, error) {
	if numBytes > MaxFilterBytes {
		return nil, ErrFilterTooLarge
	}
	if numBytes < MinFilterBytes || numBytes%BytesPerBlock != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrFilterSize, numBytes)
	}
	return &Filter{
		data:    make([]byte, numBytes),
		nblocks: numBytes / BytesPerBlock,
	}, nil
}

// FromBytes wraps an existing buffer as a filter without copying.
//
// Mutations through the returned filter write into data. The buffer must be
// a valid filter length (non-zero multiple of BytesPerBlock).
func FromBytes(data []byte) (*Filter, error) {
	if len(data) == 0 || len(data)%BytesPerBlock != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrFilterSize, len(data))
	}
	return &Filter{
		data:    data,
		nblocks: uint32(len(data) / BytesPerBlock),
	}, nil
}

// Bytes returns the backing buffer. The slice aliases the filter's storage.
func (f *Filter) Bytes() []byte { return f.data }

// Size returns the filter length in bytes.
func (f *Filter) Size() uint32 { return uint32(len(f.data)) }

// blockOffset maps the upper 32 hash bits onto a block using a
// multiply-shift (avoids a modulo; uniform for any block count).
func (f *Filter) blockOffset(h uint64) uint32 {
	idx := uint32(((h >> 32) * uint64(f.nblocks)) >> 32)
	return idx * BytesPerBlock
}

// InsertHash sets the item's bit in every lane of its block.
func (f *Filter) InsertHash(h uint64) {
	off := f.blockOffset(h)
	key := uint32(h)
	for i := 0; i < wordsPerBlock; i++ {
		bit := (key * salt[i]) >> 27
		w := off + uint32(i)*4
		f.data[w+bit>>3] |= 1 << (bit & 7)
	}
}

// FindHash reports whether the item's bit is set in every lane of its block.
// A false result is definitive; a true result may be a false positive.
func (f *Filter) FindHash(h uint64) bool {
	off := f.blockOffset(h)
	key := uint32(h)
	for i := 0; i < wordsPerBlock; i++ {
		bit := (key * salt[i]) >> 27
		w := off + uint32(i)*4
		if f.data[w+bit>>3]&(1<<(bit&7)) == 0 {
			return false
		}
	}
	return true
}
