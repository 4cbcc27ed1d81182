package message

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/pkg/timestamp"
)

// Snapshot is the merger node → downstream wire envelope carrying one
// published merge result. Sequence is the node's publish counter; together
// with NodeID it lets the next layer treat the snapshot stream as just
// another update source.
//
// WindowStart/WindowEnd are set only under the moving-window policy; zero
// means absent.
type Snapshot struct {
	SnapshotID          string          `json:"snapshot_id"`
	NodeID              string          `json:"node_id"`
	Kind                string          `json:"kind"`
	Payload             json.RawMessage `json:"payload"`
	ContributingSources uint32          `json:"contributing_sources"`
	Sequence            uint64          `json:"sequence"`
	FirstTimestamp      int64           `json:"first_timestamp"` // earliest contributing event time, Unix ms
	LastTimestamp       int64           `json:"last_timestamp"`  // latest contributing event time, Unix ms
	WindowStart         int64           `json:"window_start,omitempty"`
	WindowEnd           int64           `json:"window_end,omitempty"`
}

// NewSnapshot creates a snapshot envelope with a fresh unique id.
func NewSnapshot(nodeID, kind string, payload []byte, sequence uint64) Snapshot {
	return Snapshot{
		SnapshotID: uuid.NewString(),
		NodeID:     nodeID,
		Kind:       kind,
		Payload:    json.RawMessage(payload),
		Sequence:   sequence,
	}
}

// Validate checks the envelope fields.
func (s *Snapshot) Validate() error {
	if s.NodeID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing node_id"),
			"Snapshot", "Validate", "envelope validation")
	}
	if s.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing kind"),
			"Snapshot", "Validate", "envelope validation")
	}
	if len(s.Payload) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("empty payload"),
			"Snapshot", "Validate", "envelope validation")
	}
	if s.WindowStart != 0 && s.WindowEnd != 0 && s.WindowEnd < s.WindowStart {
		return errors.WrapInvalid(
			fmt.Errorf("window_end %d before window_start %d", s.WindowEnd, s.WindowStart),
			"Snapshot", "Validate", "window validation")
	}
	return nil
}

// Encode serializes the envelope for bus transport.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Snapshot", "Encode", "envelope marshal")
	}
	return data, nil
}

// AsUpdate re-wraps the snapshot as an Update for the next merger layer:
// the publishing node becomes the source, the publish counter becomes the
// sequence number, and the latest contributing event time becomes the event
// time (falling back to now for snapshots without event-time provenance).
func (s *Snapshot) AsUpdate() Update {
	ts := s.LastTimestamp
	if ts == 0 {
		ts = timestamp.Now()
	}
	return Update{
		SourceID:  s.NodeID,
		Sequence:  s.Sequence,
		Kind:      s.Kind,
		Payload:   s.Payload,
		Timestamp: ts,
	}
}

// DecodeSnapshot parses and validates a Snapshot envelope.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Snapshot", "DecodeSnapshot", "envelope unmarshal")
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Snapshot", "DecodeSnapshot", "envelope validation")
	}
	return s, nil
}

// ParseInbound decodes either envelope type into the Update form a merger
// node processes. Producer edges carry Updates; edges from a lower merger
// layer carry Snapshots, which are re-wrapped via AsUpdate. The two are
// distinguished by their identifying field (source_id vs node_id).
func ParseInbound(data []byte) (Update, error) {
	var probe struct {
		SourceID string `json:"source_id"`
		NodeID   string `json:"node_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Update{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Snapshot", "ParseInbound", "envelope probe")
	}

	switch {
	case probe.SourceID != "":
		return DecodeUpdate(data)
	case probe.NodeID != "":
		snap, err := DecodeSnapshot(data)
		if err != nil {
			return Update{}, err
		}
		return snap.AsUpdate(), nil
	default:
		return Update{}, errors.WrapInvalid(
			fmt.Errorf("%w: neither source_id nor node_id present", errors.ErrDeserialization),
			"Snapshot", "ParseInbound", "envelope probe")
	}
}
