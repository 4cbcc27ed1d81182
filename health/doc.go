// Package health provides health status tracking and aggregation for
// pipeline components.
//
// # Health States
//
// Three states: healthy, degraded (operating with reduced capacity, e.g. a
// merger node whose sources have gone stale), and unhealthy. Aggregation is
// conservative: any unhealthy sub-component makes the aggregate unhealthy,
// any degraded one (with none unhealthy) makes it degraded.
//
// # Usage
//
// Components expose component.HealthStatus; FromComponentHealth converts it
// to a Status with the error message sanitized (URLs, file paths, IP
// addresses, ports and credential-looking substrings are redacted so health
// endpoints never leak connection details). The engine aggregates node and
// checker statuses into one tree:
//
//	status := health.Aggregate("engine", []health.Status{
//	    health.FromComponentHealth("merger-l1-0", node.Health()),
//	    health.FromComponentHealth("checker", chk.Health()),
//	})
//
// Monitor retains the most recent status per component; the engine refreshes
// it on every Health call so point-in-time reads need no re-poll.
//
// Status is a value type; WithMetrics and WithSubStatus return copies, so a
// status handed to an HTTP handler cannot be mutated behind its back.
package health
