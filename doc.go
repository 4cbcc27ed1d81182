// Package mergestream provides a distributed merge pipeline: partial updates
// from many producers are folded through a layered tree of merger nodes into
// one continuously published snapshot.
//
// # Model
//
// Producers publish Updates (an envelope carrying a serialized mergeable
// object) on per-source subjects. Merger nodes subscribe to a bounded set of
// upstream subjects, fold the decoded objects under a timespan policy, and
// publish Snapshots on their own subject. Snapshots re-enter downstream
// nodes as updates, so trees compose: fan-in F over N producers yields
// ceil(log_F N) layers with a single root.
//
//	producer-1 ─┐
//	producer-2 ─┼─► merger-l1-0 ─┐
//	producer-3 ─┘                ├─► merger-l2-0 (root) ─► snapshot stream
//	producer-4 ─┬─► merger-l1-1 ─┘
//	producer-5 ─┘
//
// Two policies govern what a snapshot covers. FullHistory accumulates
// everything ever received; intermediate layers emit deltas and the root
// emits the cumulative total, so no contribution is counted twice.
// MovingWindow retains individual updates and recomputes the merge over a
// sliding event-time window, evicting what has aged out.
//
// # Packages
//
// Domain:
//   - mergeable: the Object capability (Merge, Clone, Validate) and the
//     built-in Histogram and Counts kinds
//   - message: Update and Snapshot envelopes and their wire codecs
//   - merger: the node actor - bounded inbound queue, single-goroutine merge
//     state, coalescing publisher
//   - topology: deterministic tree construction and structural validation
//   - engine: arena ownership, layered startup, reverse shutdown, fatal
//     error supervision
//   - producer: interval-driven update sources
//   - checker: root stream validation against an expected total
//
// Infrastructure:
//   - natsclient: NATS connection management with circuit breaker
//   - component: Discoverable and LifecycleComponent contracts, the Bus
//     abstraction components communicate through
//   - config: configuration loading and validation
//   - metric: Prometheus metrics registry and HTTP endpoint
//   - health: health status aggregation
//   - errors: classified error handling
//   - output/websocket: WebSocket live view of the snapshot stream
//   - pkg/buffer, pkg/retry, pkg/timestamp: bounded queues, retry policies,
//     event-time utilities
//
// # Binary
//
// The mergestream binary loads a JSON or YAML config, builds the topology
// from the configured producer set, and runs the engine until a signal or
// the first fatal node error:
//
//	./bin/mergestream --config configs/example.yaml
//
// Producers typically run in other processes; they only need the natsclient
// and producer packages and the subject naming scheme from topology.
package mergestream
