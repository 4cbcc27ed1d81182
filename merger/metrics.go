package merger

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/metric"
)

// Metrics holds Prometheus metrics for one merger node. All collectors carry
// the node id as a const label so every node in a topology can register
// against the same registry.
type Metrics struct {
	updatesReceived     prometheus.Counter
	updatesDropped      prometheus.Counter
	decodeFailures      prometheus.Counter
	unknownSources      prometheus.Counter
	snapshotsPublished  prometheus.Counter
	snapshotsCoalesced  prometheus.Counter
	sourceTimeouts      prometheus.Counter
	mergeDuration       prometheus.Histogram
	publishDuration     prometheus.Histogram
	retainedEntries     prometheus.Gauge
	contributingSources prometheus.Gauge
	phase               prometheus.Gauge
}

// newMetrics creates and registers merger node metrics.
func newMetrics(registry *metric.MetricsRegistry, nodeID string) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"node": nodeID}

	metrics := &Metrics{
		updatesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "updates_received_total",
			Help:        "Updates merged into node state",
			ConstLabels: labels,
		}),
		updatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "updates_dropped_total",
			Help:        "Updates dropped by the inbound queue overflow policy",
			ConstLabels: labels,
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "decode_failures_total",
			Help:        "Updates discarded because envelope or payload was unreadable",
			ConstLabels: labels,
		}),
		unknownSources: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "unknown_source_updates_total",
			Help:        "Updates discarded because the source is outside the upstream set",
			ConstLabels: labels,
		}),
		snapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "snapshots_published_total",
			Help:        "Merged snapshots delivered to the output subject",
			ConstLabels: labels,
		}),
		snapshotsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "snapshots_coalesced_total",
			Help:        "Unsent snapshots superseded by newer ones in the outbound mailbox",
			ConstLabels: labels,
		}),
		sourceTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "source_timeouts_total",
			Help:        "Source timeout warnings raised for silent upstream sources",
			ConstLabels: labels,
		}),
		mergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "merge_duration_seconds",
			Help:        "Time to decode and merge one update",
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			ConstLabels: labels,
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "publish_duration_seconds",
			Help:        "Time to compute and enqueue one snapshot",
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			ConstLabels: labels,
		}),
		retainedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "retained_entries",
			Help:        "Updates currently retained for the moving window",
			ConstLabels: labels,
		}),
		contributingSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "contributing_sources",
			Help:        "Distinct sources contributing to the last published snapshot",
			ConstLabels: labels,
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mergestream",
			Subsystem:   "merger",
			Name:        "phase",
			Help:        "Node phase (0=idle, 1=accumulating, 2=publishing, 3=draining, 4=terminated)",
			ConstLabels: labels,
		}),
	}

	registry.RegisterCounter(nodeID, "updates_received", metrics.updatesReceived)
	registry.RegisterCounter(nodeID, "updates_dropped", metrics.updatesDropped)
	registry.RegisterCounter(nodeID, "decode_failures", metrics.decodeFailures)
	registry.RegisterCounter(nodeID, "unknown_sources", metrics.unknownSources)
	registry.RegisterCounter(nodeID, "snapshots_published", metrics.snapshotsPublished)
	registry.RegisterCounter(nodeID, "snapshots_coalesced", metrics.snapshotsCoalesced)
	registry.RegisterCounter(nodeID, "source_timeouts", metrics.sourceTimeouts)
	registry.RegisterHistogram(nodeID, "merge_duration", metrics.mergeDuration)
	registry.RegisterHistogram(nodeID, "publish_duration", metrics.publishDuration)
	registry.RegisterGauge(nodeID, "retained_entries", metrics.retainedEntries)
	registry.RegisterGauge(nodeID, "contributing_sources", metrics.contributingSources)
	registry.RegisterGauge(nodeID, "phase", metrics.phase)

	return metrics
}
