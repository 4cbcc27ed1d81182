package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mergestream/errors"
)

func TestUpdateRoundTrip(t *testing.T) {
	u := NewUpdate("producer-0", 7, "histogram", []byte(`{"bins":2}`), 1700000000000)

	data, err := u.Encode()
	require.NoError(t, err)

	decoded, err := DecodeUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, u.SourceID, decoded.SourceID)
	assert.Equal(t, u.Sequence, decoded.Sequence)
	assert.Equal(t, u.Kind, decoded.Kind)
	assert.JSONEq(t, string(u.Payload), string(decoded.Payload))
	assert.Equal(t, u.Timestamp, decoded.Timestamp)
}

func TestNewUpdateStampsTime(t *testing.T) {
	u := NewUpdate("producer-0", 1, "counts", []byte(`{}`), 0)
	assert.NotZero(t, u.Timestamp, "zero ts defaults to now")
}

func TestDecodeUpdateRejectsGarbage(t *testing.T) {
	_, err := DecodeUpdate([]byte("{broken"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrDeserialization)
}

func TestUpdateValidate(t *testing.T) {
	tests := []struct {
		name string
		u    Update
	}{
		{"missing source", Update{Kind: "histogram", Payload: []byte(`{}`), Timestamp: 1}},
		{"missing kind", Update{SourceID: "p0", Payload: []byte(`{}`), Timestamp: 1}},
		{"empty payload", Update{SourceID: "p0", Kind: "histogram", Timestamp: 1}},
		{"negative timestamp", Update{SourceID: "p0", Kind: "histogram", Payload: []byte(`{}`), Timestamp: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.u.Validate()
			require.Error(t, err)
			assert.True(t, cerrors.IsInvalid(err))
		})
	}
}
