// Package testutil provides testing utilities shared across packages.
//
// MockBus is an in-memory implementation of component.Bus: publishes are
// recorded and delivered synchronously to subscribed handlers, with optional
// publish-failure injection for retry paths. The Wait* helpers poll the bus
// with a timeout so tests can assert on asynchronously published messages
// without sleeping fixed durations.
package testutil
