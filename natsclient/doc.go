// Package natsclient manages a core-NATS connection for the pipeline.
//
// Client wraps a single nats.Conn with a circuit breaker around connection
// attempts: repeated failures open the circuit and reject attempts until an
// exponentially growing backoff elapses, so a flapping broker is not hammered.
// The client implements component.Bus (Publish/Subscribe with per-message
// handler contexts), which means every pipeline component runs identically
// over a real broker and over the in-memory test bus.
//
// TestClient starts a disposable NATS server in a container (testcontainers)
// and hands back a connected Client; integration tests use it to exercise the
// pipeline against real broker semantics.
package natsclient
