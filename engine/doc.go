// Package engine supervises a merger topology at runtime.
//
// The Engine materializes every node of a built topology into an arena it
// exclusively owns, wires them to one bus, and sequences their lifecycle:
// layers start bottom-up so a node listens before its upstreams emit, and
// stop top-down so every node drains into a still-listening downstream.
// The first fatal node error is funneled to Wait; data-level errors stay
// inside the nodes. An optional checker validates the root output stream.
package engine
