// Package component defines the Discoverable interface and related types
package component

import (
	"time"
)

// Discoverable defines the interface for components that can be discovered
// and inspected by the management layer.
//
// Components implementing this interface can be:
// - Producer components: inject partial updates into the pipeline
// - Merger components: aggregate updates under a timespan policy
// - Observer components: consume merged snapshots (checker, live view)
type Discoverable interface {
	// Meta returns basic component information
	Meta() Metadata

	// InputPorts returns the ports this component consumes data on
	InputPorts() []Port

	// OutputPorts returns the ports this component produces data on
	OutputPorts() []Port

	// Health returns current health status
	Health() HealthStatus

	// DataFlow returns current data flow metrics
	DataFlow() FlowMetrics
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "producer", "merger", "observer"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// PortDirection distinguishes input ports from output ports.
type PortDirection string

const (
	// DirectionInput marks a port the component consumes from.
	DirectionInput PortDirection = "input"
	// DirectionOutput marks a port the component publishes to.
	DirectionOutput PortDirection = "output"
)

// Port describes one bus edge of a component. Subject is the bus subject the
// port is bound to; for network-facing ports it is the listen address.
type Port struct {
	Name        string        `json:"name"`
	Direction   PortDirection `json:"direction"`
	Subject     string        `json:"subject"`
	Required    bool          `json:"required"`
	Description string        `json:"description"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	Degraded   bool          `json:"degraded,omitempty"` // healthy but impaired (e.g. stale sources)
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
