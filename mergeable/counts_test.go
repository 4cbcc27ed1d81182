package mergeable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mergestream/errors"
)

func TestCountsMerge(t *testing.T) {
	a := NewCounts()
	a.Add("chan-1", 3)
	a.Add("chan-2", 1)

	b := NewCounts()
	b.Add("chan-2", 2)
	b.Add("chan-3", 5)

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 3.0, a.Values["chan-1"])
	assert.Equal(t, 3.0, a.Values["chan-2"])
	assert.Equal(t, 5.0, a.Values["chan-3"])
	assert.Equal(t, 11.0, a.TotalEntries())

	// b is untouched.
	assert.Equal(t, 7.0, b.TotalEntries())
}

func TestCountsMergeRejectsOtherKind(t *testing.T) {
	c := NewCounts()
	h, err := NewHistogram("test", 2, 0, 2)
	require.NoError(t, err)

	err = c.Merge(h)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrKindMismatch)
}

func TestCountsCloneIsolation(t *testing.T) {
	c := NewCounts()
	c.Add("key", 1)

	clone := c.Clone().(*Counts)
	clone.Add("key", 1)

	assert.Equal(t, 1.0, c.Values["key"])
	assert.Equal(t, 2.0, clone.Values["key"])
}

func TestCountsCodecDeterminism(t *testing.T) {
	c := NewCounts()
	c.Add("zeta", 1)
	c.Add("alpha", 2)
	c.Add("mid", 3)

	first, err := json.Marshal(c)
	require.NoError(t, err)
	second, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, first, second, "map serialization must be deterministic")

	decoded := &Counts{}
	require.NoError(t, decoded.UnmarshalJSON(first))
	assert.Equal(t, c.Values, decoded.Values)
}

func TestCountsValidate(t *testing.T) {
	c := &Counts{Values: map[string]float64{"": 1}}
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
}
