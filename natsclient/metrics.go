package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/metric"
)

// clientMetrics tracks connection-level behavior.
type clientMetrics struct {
	connected  prometheus.Gauge
	published  prometheus.Counter
	failures   prometheus.Counter
	reconnects prometheus.Counter
}

func newClientMetrics(registry *metric.MetricsRegistry) *clientMetrics {
	m := &clientMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mergestream",
			Subsystem: "nats",
			Name:      "connected",
			Help:      "Whether the NATS connection is currently established",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergestream",
			Subsystem: "nats",
			Name:      "messages_published_total",
			Help:      "Messages published over the connection",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergestream",
			Subsystem: "nats",
			Name:      "connection_failures_total",
			Help:      "Connection attempts that failed",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergestream",
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Automatic reconnections performed",
		}),
	}

	registry.RegisterGauge("natsclient", "connected", m.connected)
	registry.RegisterCounter("natsclient", "messages_published", m.published)
	registry.RegisterCounter("natsclient", "connection_failures", m.failures)
	registry.RegisterCounter("natsclient", "reconnects", m.reconnects)

	return m
}

func (m *clientMetrics) setConnected(up bool) {
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// WithMetrics enables connection metrics using the provided registry.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry == nil {
			return nil
		}
		c.metrics = newClientMetrics(registry)
		return nil
	}
}
