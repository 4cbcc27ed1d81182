package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/metric"
)

// liveViewMetrics holds the Prometheus collectors for one LiveView instance.
type liveViewMetrics struct {
	snapshotsReceived prometheus.Counter
	decodeFailures    prometheus.Counter
	framesBroadcast   prometheus.Counter
	framesDropped     prometheus.Counter
	clientsConnected  prometheus.Gauge
	connectionsTotal  prometheus.Counter
	frameSizeBytes    prometheus.Histogram
}

// newLiveViewMetrics creates and registers the collectors. Nil registry means
// no metrics: every call site nil-checks before recording.
func newLiveViewMetrics(registry *metric.MetricsRegistry, name string) *liveViewMetrics {
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"liveview": name}
	m := &liveViewMetrics{
		snapshotsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "snapshots_received_total",
			Help:        "Merged snapshots received from the bus",
			ConstLabels: labels,
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "decode_failures_total",
			Help:        "Snapshots that could not be decoded or summarized",
			ConstLabels: labels,
		}),
		framesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "frames_broadcast_total",
			Help:        "Summary frames accepted for broadcast",
			ConstLabels: labels,
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "frames_dropped_total",
			Help:        "Frames discarded because a client or the hub queue was full",
			ConstLabels: labels,
		}),
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "clients_connected",
			Help:        "Currently connected WebSocket clients",
			ConstLabels: labels,
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "client_connections_total",
			Help:        "Client connections accepted since start",
			ConstLabels: labels,
		}),
		frameSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mergestream",
			Subsystem:   "liveview",
			Name:        "frame_size_bytes",
			Help:        "Size distribution of broadcast frames",
			Buckets:     []float64{100, 250, 500, 1000, 2500, 5000, 10000},
			ConstLabels: labels,
		}),
	}

	_ = registry.RegisterCounter(name, "snapshots_received", m.snapshotsReceived)
	_ = registry.RegisterCounter(name, "decode_failures", m.decodeFailures)
	_ = registry.RegisterCounter(name, "frames_broadcast", m.framesBroadcast)
	_ = registry.RegisterCounter(name, "frames_dropped", m.framesDropped)
	_ = registry.RegisterGauge(name, "clients_connected", m.clientsConnected)
	_ = registry.RegisterCounter(name, "client_connections", m.connectionsTotal)
	_ = registry.RegisterHistogram(name, "frame_size_bytes", m.frameSizeBytes)

	return m
}
