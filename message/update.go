package message

import (
	"encoding/json"
	"fmt"

	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/pkg/timestamp"
)

// Update is the producer → merger wire envelope carrying one partial
// contribution. Payload is the JSON form of a mergeable.Object of the
// declared kind.
type Update struct {
	SourceID  string          `json:"source_id"`
	Sequence  uint64          `json:"sequence"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // event time, Unix ms
}

// NewUpdate creates an update envelope stamped with the current time when
// ts is zero.
func NewUpdate(sourceID string, sequence uint64, kind string, payload []byte, ts int64) Update {
	if ts == 0 {
		ts = timestamp.Now()
	}
	return Update{
		SourceID:  sourceID,
		Sequence:  sequence,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Timestamp: ts,
	}
}

// Validate checks the envelope fields. Payload contents are validated later
// by the kind registry, not here.
func (u *Update) Validate() error {
	if u.SourceID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing source_id"),
			"Update", "Validate", "envelope validation")
	}
	if u.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing kind"),
			"Update", "Validate", "envelope validation")
	}
	if len(u.Payload) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("empty payload"),
			"Update", "Validate", "envelope validation")
	}
	if err := timestamp.Validate(u.Timestamp); err != nil {
		return errors.WrapInvalid(err, "Update", "Validate", "timestamp validation")
	}
	return nil
}

// Encode serializes the envelope for bus transport.
func (u *Update) Encode() ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Update", "Encode", "envelope marshal")
	}
	return data, nil
}

// DecodeUpdate parses and validates an Update envelope. Failures are
// classified under errors.ErrDeserialization: the node drops the update and
// keeps running.
func DecodeUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Update", "DecodeUpdate", "envelope unmarshal")
	}
	if err := u.Validate(); err != nil {
		return Update{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Update", "DecodeUpdate", "envelope validation")
	}
	return u, nil
}
