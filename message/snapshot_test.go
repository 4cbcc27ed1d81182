package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mergestream/errors"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewSnapshot("merger-l1-0", "histogram", []byte(`{"bins":4}`), 3)
	s.ContributingSources = 2
	s.FirstTimestamp = 1700000000000
	s.LastTimestamp = 1700000001000

	data, err := s.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s.SnapshotID, decoded.SnapshotID)
	assert.Equal(t, s.NodeID, decoded.NodeID)
	assert.Equal(t, uint32(2), decoded.ContributingSources)
	assert.Equal(t, uint64(3), decoded.Sequence)
	assert.Zero(t, decoded.WindowStart, "window bounds absent outside moving-window policy")
}

func TestSnapshotUniqueIDs(t *testing.T) {
	a := NewSnapshot("n", "counts", []byte(`{}`), 1)
	b := NewSnapshot("n", "counts", []byte(`{}`), 2)
	assert.NotEqual(t, a.SnapshotID, b.SnapshotID)
}

func TestSnapshotValidateWindow(t *testing.T) {
	s := NewSnapshot("n", "counts", []byte(`{}`), 1)
	s.WindowStart = 2000
	s.WindowEnd = 1000

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
}

func TestSnapshotAsUpdate(t *testing.T) {
	s := NewSnapshot("merger-l1-1", "histogram", []byte(`{"bins":2}`), 9)
	s.LastTimestamp = 1700000002000

	u := s.AsUpdate()
	assert.Equal(t, "merger-l1-1", u.SourceID)
	assert.Equal(t, uint64(9), u.Sequence)
	assert.Equal(t, "histogram", u.Kind)
	assert.Equal(t, int64(1700000002000), u.Timestamp)
	assert.JSONEq(t, string(s.Payload), string(u.Payload))
}

func TestParseInbound(t *testing.T) {
	t.Run("update envelope", func(t *testing.T) {
		u := NewUpdate("producer-2", 4, "counts", []byte(`{"values":{}}`), 1700000000000)
		data, err := u.Encode()
		require.NoError(t, err)

		parsed, err := ParseInbound(data)
		require.NoError(t, err)
		assert.Equal(t, "producer-2", parsed.SourceID)
		assert.Equal(t, uint64(4), parsed.Sequence)
	})

	t.Run("snapshot envelope re-wrapped", func(t *testing.T) {
		s := NewSnapshot("merger-l1-0", "counts", []byte(`{"values":{}}`), 11)
		s.LastTimestamp = 1700000000500
		data, err := s.Encode()
		require.NoError(t, err)

		parsed, err := ParseInbound(data)
		require.NoError(t, err)
		assert.Equal(t, "merger-l1-0", parsed.SourceID, "snapshot publisher becomes the source")
		assert.Equal(t, uint64(11), parsed.Sequence)
		assert.Equal(t, int64(1700000000500), parsed.Timestamp)
	})

	t.Run("unidentifiable envelope", func(t *testing.T) {
		_, err := ParseInbound([]byte(`{"foo":1}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrDeserialization)
	})
}
