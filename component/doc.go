// Package component defines the contracts shared by every runtime piece of
// the merge pipeline: producers, merger nodes, the checker and the live view.
//
// # Lifecycle
//
// Components follow one lifecycle pattern:
//
//   - Initialize() error                  // setup and validation only, no context
//   - Start(ctx context.Context) error    // begin work, context passed through
//   - Stop(timeout time.Duration) error   // graceful shutdown with deadline
//
// The orchestrating engine starts components in topology order and stops
// them in reverse, so downstream consumers drain before their upstreams
// terminate.
//
// # Discovery
//
// Discoverable exposes metadata, ports, health and flow metrics so the
// engine and the operational HTTP surface can inspect a running pipeline
// without knowing concrete types.
//
// # Dependencies
//
// Dependencies is the explicit context object constructed once in main and
// passed by reference into every component constructor. It replaces any
// process-global state: the message bus, metrics registry, logger and
// platform identity all arrive through it.
package component
