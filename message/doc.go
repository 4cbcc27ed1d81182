// Package message defines the wire envelopes of the merge pipeline.
//
// Two envelope types travel over the bus:
//
//   - Update: producer → merger node. One partial contribution from one
//     source. Updates are deltas: each is merged exactly once and producers
//     never re-send previously sent content. The sequence number is
//     monotonically increasing per source and exists for diagnostics only;
//     merge semantics tolerate reordering.
//
//   - Snapshot: merger node → downstream. A published merge result with
//     provenance (contributing source count, event-time bounds) and, under
//     the moving-window policy, the window bounds.
//
// A merger node above layer 1 consumes the Snapshots of the layer below.
// ParseInbound re-wraps such a Snapshot as an Update (source_id = the
// publishing node's id), so every inbound edge of a node speaks one envelope
// type internally.
//
// All timestamps are int64 Unix milliseconds (see pkg/timestamp). Payloads
// are the JSON serialization of a mergeable.Object; the kind field names the
// registry entry that decodes them.
package message
