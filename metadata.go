package bloomchain

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// metadataFormatVersion is the on-disk format version of the chain metadata
// record. Bump it when the field layout changes.
const metadataFormatVersion = 1

// metadataEncodedSize is the fixed record length:
// format(1) + version(8) + nFilters(2) + expansion(2) + baseCapacity(4) +
// errorRate(8) + bloomBytes(8) + size(8).
const metadataEncodedSize = 41

// ChainMetadata is the persisted header of one chain: its growth parameters
// and current state. One record exists per namespace key.
type ChainMetadata struct {
	// Version is the chain's creation epoch. Sub-filter keys embed it, so a
	// chain re-created after deletion never aliases stale records.
	Version uint64

	// NFilters is the number of sub-filters; >= 1 once created, never
	// decreases while the chain lives.
	NFilters uint16

	// Expansion is the growth multiplier. Zero means the chain is fixed at
	// BaseCapacity; non-zero enables geometric growth.
	Expansion uint16

	// BaseCapacity is the capacity of the first sub-filter.
	BaseCapacity uint32

	// ErrorRate is the target false-positive probability shared by every
	// sub-filter in the chain.
	ErrorRate float64

	// BloomBytes is the running byte total across all sub-filters.
	BloomBytes uint64

	// Size is the count of distinct items successfully inserted.
	Size uint64
}

// IsScaling reports whether the chain appends new sub-filters when full.
func (m *ChainMetadata) IsScaling() bool {
	return m.Expansion != 0
}

// Capacity returns the total item capacity across the current sub-filters:
// the geometric series baseCapacity * expansion^i for i in [0, nFilters).
func (m *ChainMetadata) Capacity() uint64 {
	if !m.IsScaling() {
		return uint64(m.BaseCapacity)
	}

	var total, tier uint64 = 0, uint64(m.BaseCapacity)
	for i := uint16(0); i < m.NFilters; i++ {
		if tier > math.MaxUint64-total {
			return math.MaxUint64
		}
		total += tier
		if i+1 < m.NFilters {
			if tier > math.MaxUint64/uint64(m.Expansion) {
				return math.MaxUint64
			}
			tier *= uint64(m.Expansion)
		}
	}
	return total
}

// nextFilterCapacity returns the target capacity of the sub-filter that a
// grow operation would append: baseCapacity * expansion^nFilters, saturating
// at the uint32 range the sizing formula accepts.
func (m *ChainMetadata) nextFilterCapacity() uint32 {
	capacity := uint64(m.BaseCapacity)
	for i := uint16(0); i < m.NFilters; i++ {
		capacity *= uint64(m.Expansion)
		if capacity > math.MaxUint32 {
			return math.MaxUint32
		}
	}
	return uint32(capacity)
}

// MarshalBinary encodes the record: a format version byte followed by
// fixed-width little-endian fields.
func (m *ChainMetadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, metadataEncodedSize)
	buf = append(buf, metadataFormatVersion)
	buf = binary.LittleEndian.AppendUint64(buf, m.Version)
	buf = binary.LittleEndian.AppendUint16(buf, m.NFilters)
	buf = binary.LittleEndian.AppendUint16(buf, m.Expansion)
	buf = binary.LittleEndian.AppendUint32(buf, m.BaseCapacity)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m.ErrorRate))
	buf = binary.LittleEndian.AppendUint64(buf, m.BloomBytes)
	buf = binary.LittleEndian.AppendUint64(buf, m.Size)
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (m *ChainMetadata) UnmarshalBinary(data []byte) error {
	if len(data) != metadataEncodedSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptMetadata, len(data))
	}
	if data[0] != metadataFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrCorruptMetadata, data[0])
	}

	m.Version = binary.LittleEndian.Uint64(data[1:])
	m.NFilters = binary.LittleEndian.Uint16(data[9:])
	m.Expansion = binary.LittleEndian.Uint16(data[11:])
	m.BaseCapacity = binary.LittleEndian.Uint32(data[13:])
	m.ErrorRate = math.Float64frombits(binary.LittleEndian.Uint64(data[17:]))
	m.BloomBytes = binary.LittleEndian.Uint64(data[25:])
	m.Size = binary.LittleEndian.Uint64(data[33:])
	return nil
}

var versionCounter atomic.Uint64

// newChainVersion returns a fresh creation epoch: microsecond wall clock in
// the high bits, a wrapping counter in the low 11 bits. Two chains created
// for the same key at different times always get different epochs.
func newChainVersion() uint64 {
	counter := versionCounter.Add(1) & 0x7ff
	return uint64(time.Now().UnixMicro())<<11 | counter
}
