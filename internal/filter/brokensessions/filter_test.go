package brokensessions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fxfilter/internal/filter"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(64)
	require.NoError(t, err)
	return f
}

// B1: 1,2,3,4 for the same key returns codes 0,1,1,1.
func TestSequentialSessionsCollapseCleanly(t *testing.T) {
	f := newTestFilter(t)
	codes := []int{}
	for _, s := range []int{1, 2, 3, 4} {
		c, err := f.Add("client-a", s)
		require.NoError(t, err)
		codes = append(codes, c)
	}
	require.Equal(t, []int{CodeInserted, CodeFoundCorrect, CodeFoundCorrect, CodeFoundCorrect}, codes)
}

// B2: 1,3 -> 0,2; then 2 -> 1 and collapses to last_consecutive=3, missing=0.
func TestOutOfOrderThenCollapse(t *testing.T) {
	f := newTestFilter(t)
	c1, _ := f.Add("client-b", 1)
	c2, _ := f.Add("client-b", 3)
	require.Equal(t, CodeInserted, c1)
	require.Equal(t, CodeOutOfOrder, c2)

	c3, _ := f.Add("client-b", 2)
	require.Equal(t, CodeFoundCorrect, c3)
}

// B3: 1 then 1 -> 0,4 (duplicate).
func TestDuplicateSubmission(t *testing.T) {
	f := newTestFilter(t)
	c1, _ := f.Add("client-c", 1)
	c2, _ := f.Add("client-c", 1)
	require.Equal(t, CodeInserted, c1)
	require.Equal(t, CodeDuplicate, c2)
}

// B4: 1 then 20 -> 0,5 and resets the window.
func TestGapResetsWindow(t *testing.T) {
	f := newTestFilter(t)
	c1, _ := f.Add("client-d", 1)
	c2, _ := f.Add("client-d", 20)
	require.Equal(t, CodeInserted, c1)
	require.Equal(t, CodeTooManyMissing, c2)
}

// B5: 1,4 -> 0,2; then 5 -> 2; then 2 -> 1 with 3 still missing; then 3 -> 1
// and collapses to last_consecutive=5.
func TestWindowCollapseAcrossMultipleBits(t *testing.T) {
	f := newTestFilter(t)
	c1, _ := f.Add("client-e", 1)
	c2, _ := f.Add("client-e", 4)
	c3, _ := f.Add("client-e", 5)
	c4, _ := f.Add("client-e", 2)
	require.Equal(t, CodeInserted, c1)
	require.Equal(t, CodeOutOfOrder, c2)
	require.Equal(t, CodeOutOfOrder, c3)
	require.Equal(t, CodeFoundCorrect, c4)

	// 3 is still missing from the window; submitting it should now
	// complete the collapse through to last_consecutive=5.
	c5, _ := f.Add("client-e", 3)
	require.Equal(t, CodeFoundCorrect, c5)
}

// B6: add(key, 300) returns code 3 without modifying the filter.
func TestSessionCountOverflowRejectedBeforeFilterTouched(t *testing.T) {
	f := newTestFilter(t)
	code, err := f.Add("client-f", 300)
	require.NoError(t, err)
	require.Equal(t, CodeTooManySessions, code)
	require.Equal(t, uint64(0), f.Count())
	require.False(t, f.Query("client-f"))
}

func TestNegativeSessionCountIsArgumentError(t *testing.T) {
	f := newTestFilter(t)
	_, err := f.Add("client-g", -1)
	require.ErrorIs(t, err, filter.ErrArgument)
}

// C1: new(5) produces num_buckets=2, items=8.
func TestCapacitySizing(t *testing.T) {
	f, err := New(5)
	require.NoError(t, err)
	require.Equal(t, uint64(8), f.Items())
}

// C2: new(4) fails argument validation.
func TestConstructorRejectsSmallCapacity(t *testing.T) {
	_, err := New(4)
	require.ErrorIs(t, err, filter.ErrItemsTooSmall)
}

func TestQueryAndDeleteLifecycle(t *testing.T) {
	f := newTestFilter(t)
	require.False(t, f.Query("client-h"))

	_, err := f.Add("client-h", 1)
	require.NoError(t, err)
	require.True(t, f.Query("client-h"))
	require.Equal(t, uint64(1), f.Count())

	require.True(t, f.Delete("client-h"))
	require.Equal(t, uint64(0), f.Count())
	require.False(t, f.Delete("client-h"))
}

func TestClearEmptiesFilter(t *testing.T) {
	f := newTestFilter(t)
	f.Add("a", 1)
	f.Add("b", 1)
	f.Clear()
	require.Equal(t, uint64(0), f.Count())
	require.False(t, f.Query("a"))
	require.False(t, f.Query("b"))
}

func TestSerializeFromStringRoundTrip(t *testing.T) {
	f := newTestFilter(t)
	for i := 0; i < 30; i++ {
		_, err := f.Add(string(rune('a'+i%26))+string(rune(i)), 1)
		require.NoError(t, err)
	}

	blob := f.Serialize()
	restored, err := New(64)
	require.NoError(t, err)
	require.NoError(t, restored.FromString(f.Count(), blob))
	require.Equal(t, f.Count(), restored.Count())
}

func TestFromStringRejectsWrongLength(t *testing.T) {
	f := newTestFilter(t)
	err := f.FromString(0, []byte{1, 2, 3})
	require.ErrorIs(t, err, filter.ErrLengthMismatch)
}
