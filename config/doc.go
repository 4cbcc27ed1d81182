// Package config loads and validates the application configuration.
//
// One file describes the whole deployment: platform identity, broker
// connection, the merger topology (producers, fan-in, kind, policy), and the
// optional checker, live view and metrics surfaces. Load decodes JSON or
// YAML by file extension on top of DefaultConfig, and Validate applies the
// same structural rules the topology builder enforces so misconfiguration
// fails before any component starts.
package config
