package mergeable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mergestream/errors"
)

func TestHistogramFill(t *testing.T) {
	h, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)

	h.Fill(0.5)  // bin 1
	h.Fill(2.0)  // bin 3
	h.Fill(-1.0) // underflow
	h.Fill(10.0) // overflow (domain is [0,10))
	h.Fill(9.99) // last in-range bin

	assert.Equal(t, 1.0, h.Counts[0], "underflow slot")
	assert.Equal(t, 1.0, h.Counts[1], "first bin")
	assert.Equal(t, 1.0, h.Counts[3], "third bin")
	assert.Equal(t, 1.0, h.Counts[10], "last bin")
	assert.Equal(t, 1.0, h.Counts[11], "overflow slot")
	assert.Equal(t, 5.0, h.Entries)
	assert.Equal(t, 5.0, h.TotalEntries())
}

func TestHistogramSetContents(t *testing.T) {
	h, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)

	// Underflow + 10 bins + overflow: 12 values for a 10-bin histogram.
	contents := []float64{0, 0, 1, 1, 0, 0, 2, 0, 0, 0, 0, 0}
	require.NoError(t, h.SetContents(contents))
	assert.Equal(t, 4.0, h.Entries)
	assert.Equal(t, contents, h.Counts)

	// Wrong-length contents are rejected, never truncated.
	err = h.SetContents([]float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
}

func TestHistogramMerge(t *testing.T) {
	a, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)
	b, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)

	a.Fill(1.5)
	a.Fill(6.5)
	b.Fill(1.5)
	b.Fill(3.5)

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 2.0, a.Counts[2])
	assert.Equal(t, 1.0, a.Counts[4])
	assert.Equal(t, 1.0, a.Counts[7])
	assert.Equal(t, 4.0, a.Entries)

	// b is untouched.
	assert.Equal(t, 2.0, b.Entries)
}

func TestHistogramMergeRejectsDifferentBinning(t *testing.T) {
	a, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)
	b, err := NewHistogram("test", 20, 0, 10)
	require.NoError(t, err)

	err = a.Merge(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrKindMismatch)
	assert.True(t, cerrors.IsFatal(err))
}

func TestHistogramMergeRejectsOtherKind(t *testing.T) {
	h, err := NewHistogram("test", 10, 0, 10)
	require.NoError(t, err)

	err = h.Merge(NewCounts())
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrKindMismatch)
}

func TestHistogramClone(t *testing.T) {
	h, err := NewHistogram("test", 4, 0, 4)
	require.NoError(t, err)
	h.Fill(1.5)

	clone := h.Clone().(*Histogram)
	clone.Fill(2.5)

	assert.Equal(t, 1.0, h.Entries, "original unchanged by clone mutation")
	assert.Equal(t, 2.0, clone.Entries)
}

func TestHistogramCodecRoundTrip(t *testing.T) {
	h, err := NewHistogram("codec", 4, -2, 2)
	require.NoError(t, err)
	h.Fill(-0.5)
	h.Fill(1.5)
	h.Fill(5.0)

	data, err := json.Marshal(h)
	require.NoError(t, err)

	decoded := &Histogram{}
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, h, decoded)

	// Deterministic serialization: same state, same bytes.
	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestHistogramValidate(t *testing.T) {
	tests := []struct {
		name string
		h    Histogram
	}{
		{"zero bins", Histogram{Bins: 0, Min: 0, Max: 1, Counts: []float64{0, 0}}},
		{"inverted domain", Histogram{Bins: 2, Min: 5, Max: 1, Counts: []float64{0, 0, 0, 0}}},
		{"short counts", Histogram{Bins: 10, Min: 0, Max: 10, Counts: []float64{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate()
			require.Error(t, err)
			assert.True(t, cerrors.IsInvalid(err))
		})
	}
}
