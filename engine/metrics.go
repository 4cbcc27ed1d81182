package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/metric"
)

// engineMetrics tracks arena lifecycle operations.
type engineMetrics struct {
	startDuration prometheus.Histogram
	stopDuration  prometheus.Histogram
	nodesRunning  prometheus.Gauge
	fatalNodes    prometheus.Counter
}

// newEngineMetrics creates and registers engine metrics.
func newEngineMetrics(registry *metric.MetricsRegistry) *engineMetrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	m := &engineMetrics{
		startDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mergestream",
			Subsystem: "engine",
			Name:      "start_duration_seconds",
			Help:      "Time to start the full node arena",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		stopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mergestream",
			Subsystem: "engine",
			Name:      "stop_duration_seconds",
			Help:      "Time to stop the full node arena",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
		nodesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mergestream",
			Subsystem: "engine",
			Name:      "nodes_running",
			Help:      "Merger nodes currently running",
		}),
		fatalNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergestream",
			Subsystem: "engine",
			Name:      "fatal_nodes_total",
			Help:      "Nodes terminated by fatal errors",
		}),
	}

	registry.RegisterHistogram("engine", "start_duration", m.startDuration)
	registry.RegisterHistogram("engine", "stop_duration", m.stopDuration)
	registry.RegisterGauge("engine", "nodes_running", m.nodesRunning)
	registry.RegisterCounter("engine", "fatal_nodes", m.fatalNodes)

	return m
}
