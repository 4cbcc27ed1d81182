// Package mergeable defines the capability contract for objects that can be
// aggregated by merger nodes, together with the shipped object kinds and the
// kind registry.
//
// # The Object contract
//
// An Object is a partial aggregate: two objects of the same kind can always
// be folded into one, regardless of how many updates each already absorbed
// and in which order they arrived. Merge must therefore be associative and
// commutative, and must never require the full update history.
//
// Objects declare a kind string. Merging objects of different kinds is a
// configuration error, not a data error: merge implementations reject it
// with errors.ErrKindMismatch and the owning node terminates.
//
// # Shipped kinds
//
//   - Histogram: fixed uniform binning with underflow/overflow slots.
//   - Counts: a string-keyed additive table.
//
// # Registry
//
// The Registry maps kind strings to factories. It is populated explicitly at
// bootstrap and passed by reference to every component that needs to decode
// payloads; there is no process-global registry. A kind missing from the
// registry is a construction-time error, surfaced before any node runs.
package mergeable
