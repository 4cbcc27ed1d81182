// Package merger implements the stateful aggregation unit of the pipeline:
// a Node that receives partial updates from a fixed upstream set, folds them
// under a timespan policy, and publishes merged snapshots on a cadence.
//
// # Policies
//
// FullHistory accumulates every update ever received. Each publish is a
// monotonically growing merge; a tick with no new updates re-emits the
// previous object byte-identically. In layered topologies the intermediate
// nodes run with delta scope: they publish what accumulated since the last
// tick and reset, so the next layer can integrate without double-counting.
// Only the root publishes the cumulative object.
//
// MovingWindow(W) retains decoded updates and recomputes each publish from
// scratch over the updates whose event time lies within [now-W, now].
// Entries age out between ticks, so the published object may shrink with no
// new input.
//
// # Actor model
//
// Each node is a single logical actor. Bus subscription handlers only copy
// the raw bytes into a bounded inbound queue (drop-oldest under overload)
// and return, so producers are never blocked. One goroutine owns all merge
// state and interleaves queue draining with publish ticks; a tick never
// preempts an in-flight merge. Outbound snapshots pass through a single-slot
// coalescing mailbox drained by a dedicated publisher goroutine: when the
// bus is slow, a newer snapshot replaces an unsent older one instead of
// stalling the actor.
//
// # Lifecycle
//
// Idle → Accumulating → Publishing → Accumulating … → Draining → Terminated.
// Shutdown is cooperative: the node stops consuming new arrivals, processes
// everything already queued, publishes one final flush, then terminates.
// Data-level problems (undecodable payloads, silent sources) are recovered
// locally; a kind mismatch is a configuration error that terminates the node
// and is reported through the OnFatal callback with node and kind context.
package merger
