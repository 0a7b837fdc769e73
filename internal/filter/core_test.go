package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// presencePayload is a minimal payload used to exercise the substrate on
// its own, independent of either policy package.
type presencePayload struct {
	touched bool
}

var presenceCodec = PayloadCodec[presencePayload]{
	Size: 1,
	Encode: func(dst []byte, p presencePayload) {
		if p.touched {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	},
	Decode: func(src []byte) presencePayload {
		return presencePayload{touched: src[0] != 0}
	},
}

func alwaysHandled(existing *presencePayload, incoming presencePayload) (int, bool) {
	existing.touched = incoming.touched
	return 0, true
}

func TestNewCoreRejectsSmallCapacity(t *testing.T) {
	_, err := NewCore(4, presenceCodec, alwaysHandled, nil, nil)
	require.ErrorIs(t, err, ErrItemsTooSmall)
}

func TestNewCoreCapacitySizing(t *testing.T) {
	c, err := NewCore[presencePayload](5, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(2), c.NumBuckets())
	require.Equal(t, uint64(8), c.Items())
	require.Equal(t, uint32(31), c.nlz)
}

func TestInsertQueryDeleteRoundTrip(t *testing.T) {
	c, err := NewCore[presencePayload](256, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)

	keys := make([][]byte, 0, 100)
	for i := 0; i < 100; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%d", i)))
	}

	inserted := 0
	for _, k := range keys {
		out := c.Insert(k, presencePayload{touched: true})
		if out.Inserted {
			inserted++
		}
	}
	require.Equal(t, uint64(inserted), c.Count())

	for _, k := range keys {
		require.True(t, c.Query(k))
	}

	for _, k := range keys {
		c.Delete(k)
	}
	require.Equal(t, uint64(0), c.Count())
}

func TestClearResetsFilter(t *testing.T) {
	c, err := NewCore[presencePayload](64, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)
	c.Insert([]byte("a"), presencePayload{touched: true})
	c.Insert([]byte("b"), presencePayload{touched: true})
	c.Clear()
	require.Equal(t, uint64(0), c.Count())
	require.False(t, c.Query([]byte("a")))
	require.False(t, c.Query([]byte("b")))
}

func TestSerializeFromStringRoundTrip(t *testing.T) {
	c, err := NewCore[presencePayload](64, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		c.Insert([]byte(fmt.Sprintf("key-%d", i)), presencePayload{touched: true})
	}

	blob := c.Serialize()
	require.Len(t, blob, int(c.Bytes()))

	c2, err := NewCore[presencePayload](64, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)
	require.NoError(t, c2.FromString(c.Count(), blob))
	require.Equal(t, c.Count(), c2.Count())
	for i := 0; i < 50; i++ {
		require.Equal(t, c.Query([]byte(fmt.Sprintf("key-%d", i))), c2.Query([]byte(fmt.Sprintf("key-%d", i))))
	}
}

func TestFromStringRejectsLengthMismatch(t *testing.T) {
	c, err := NewCore[presencePayload](64, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)
	err = c.FromString(0, []byte("short"))
	require.ErrorIs(t, err, ErrLengthMismatch)
	require.Equal(t, uint64(0), c.Count())
}

func TestNoFingerprintDuplicatedAcrossCandidateBuckets(t *testing.T) {
	c, err := NewCore[presencePayload](256, presenceCodec, alwaysHandled, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		c.Insert([]byte(fmt.Sprintf("item-%d", i)), presencePayload{touched: true})
	}

	for i := range c.buckets {
		seen := map[uint16]bool{}
		b := &c.buckets[i]
		for j := 0; j < BucketSize; j++ {
			if b.entries[j] == 0 {
				continue
			}
			require.False(t, seen[b.entries[j]], "duplicate fingerprint within one bucket")
			seen[b.entries[j]] = true
			if alt := c.altIndex(uint64(i), b.entries[j]); alt != uint64(i) {
				require.False(t, c.bucketQuery(alt, b.entries[j]), "fingerprint present in both candidate buckets")
			}
		}
	}
}
