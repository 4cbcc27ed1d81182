package mergeable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mergestream/errors"
)

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(KindCounts, func() Object { return NewCounts() }))

	obj, err := r.New(KindCounts)
	require.NoError(t, err)
	assert.Equal(t, KindCounts, obj.Kind())

	assert.True(t, r.Has(KindCounts))
	assert.False(t, r.Has(KindHistogram))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", func() Object { return NewCounts() }))

	err := r.Register("x", func() Object { return NewCounts() })
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
}

func TestRegistryRejectsEmptyKindAndNilFactory(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("", func() Object { return NewCounts() }))
	require.Error(t, r.Register("y", nil))
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrUnknownKind)
}

func TestRegistryDecode(t *testing.T) {
	r := NewDefaultRegistry()

	h, err := NewHistogram("test", 4, 0, 4)
	require.NoError(t, err)
	h.Fill(1.5)
	data, err := h.MarshalJSON()
	require.NoError(t, err)

	obj, err := r.Decode(KindHistogram, data)
	require.NoError(t, err)
	decoded := obj.(*Histogram)
	assert.Equal(t, 1.0, decoded.Entries)
}

func TestRegistryDecodeRejectsGarbage(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.Decode(KindHistogram, []byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrDeserialization)

	// Structurally inconsistent payloads fail validation.
	_, err = r.Decode(KindHistogram, []byte(`{"bins":10,"min":0,"max":10,"counts":[1,2]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrDeserialization)
}

func TestNewDefaultRegistryKinds(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{KindCounts, KindHistogram}, r.Kinds())
}
