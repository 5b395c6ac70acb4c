package bloom

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	h1 := Hash([]byte("item-1"))
	h2 := Hash([]byte("item-1"))
	require.Equal(t, h1, h2)

	require.NotEqual(t, Hash([]byte("item-1")), Hash([]byte("item-2")))
}

func TestOptimalBytes(t *testing.T) {
	tests := []struct {
		name      string
		capacity  uint32
		errorRate float64
	}{
		{name: "tiny", capacity: 1, errorRate: 0.01},
		{name: "small", capacity: 100, errorRate: 0.01},
		{name: "medium", capacity: 10_000, errorRate: 0.01},
		{name: "large", capacity: 1_000_000, errorRate: 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := OptimalBytes(tt.capacity, tt.errorRate)
			assert.GreaterOrEqual(t, n, uint32(MinFilterBytes))
			assert.LessOrEqual(t, n, uint32(MaxFilterBytes))
			assert.Equal(t, 1, bits.OnesCount32(n), "size must be a power of two")
		})
	}
}

func TestOptimalBytes_Monotonic(t *testing.T) {
	prev := uint32(0)
	for _, capacity := range []uint32{1, 10, 100, 1000, 10_000, 100_000} {
		n := OptimalBytes(capacity, 0.01)
		require.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestOptimalBytes_TighterRateNeedsMoreBytes(t *testing.T) {
	loose := OptimalBytes(100_000, 0.1)
	tight := OptimalBytes(100_000, 0.001)
	require.Greater(t, tight, loose)
}

func TestOptimalBytes_Clamps(t *testing.T) {
	assert.Equal(t, uint32(MinFilterBytes), OptimalBytes(0, 0.01))
	assert.Equal(t, uint32(MinFilterBytes), OptimalBytes(1, 0.5))
	assert.Equal(t, uint32(MaxFilterBytes), OptimalBytes(^uint32(0), 0.0001))
}

func TestNew_RejectsBadSizes(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrFilterSize)

	_, err = New(33)
	require.ErrorIs(t, err, ErrFilterSize)

	_, err = New(MaxFilterBytes + BytesPerBlock)
	require.ErrorIs(t, err, ErrFilterTooLarge)
}

func TestFromBytes_RejectsBadSizes(t *testing.T) {
	_, err := FromBytes(nil)
	require.ErrorIs(t, err, ErrFilterSize)

	_, err = FromBytes(make([]byte, 31))
	require.ErrorIs(t, err, ErrFilterSize)
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	const n = 1000

	f, err := New(OptimalBytes(n, 0.01))
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		f.InsertHash(Hash(fmt.Appendf(nil, "member-%d", i)))
	}
	for i := 0; i < n; i++ {
		require.True(t, f.FindHash(Hash(fmt.Appendf(nil, "member-%d", i))), "member-%d must be found", i)
	}
}

func TestFilter_FalsePositiveRate(t *testing.T) {
	const n = 1000

	f, err := New(OptimalBytes(n, 0.01))
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		f.InsertHash(Hash(fmt.Appendf(nil, "member-%d", i)))
	}

	falsePositives := 0
	const probes = 10_000
	for i := 0; i < probes; i++ {
		if f.FindHash(Hash(fmt.Appendf(nil, "stranger-%d", i))) {
			falsePositives++
		}
	}

	// Target is 1%; allow generous slack since the probe set is small.
	assert.Less(t, float64(falsePositives)/probes, 0.05)
}

func TestFromBytes_ZeroCopy(t *testing.T) {
	f, err := New(64)
	require.NoError(t, err)

	h := Hash([]byte("shared"))
	view, err := FromBytes(f.Bytes())
	require.NoError(t, err)

	view.InsertHash(h)

	// The mutation went through the shared buffer.
	require.True(t, f.FindHash(h))
	require.Equal(t, f.Bytes(), view.Bytes())
}

func TestFilter_EmptyFindsNothing(t *testing.T) {
	f, err := New(64)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.False(t, f.FindHash(Hash(fmt.Appendf(nil, "probe-%d", i))))
	}
}
