// Package metric provides Prometheus-based metrics collection and the
// operational HTTP server for the merge pipeline.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (component lifecycle, update/snapshot counters, NATS
// health) and component-specific metrics registered by merger nodes,
// producers and checkers. An HTTP server exposes everything in Prometheus
// format together with an aggregated health endpoint.
//
// # Architecture
//
//  1. Core Metrics: platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: extensible registration for component-specific metrics
//     (MetricsRegistrar interface)
//  3. HTTP Server: /metrics and /health endpoints (Server type)
//
// Component-specific metrics live next to their component; the registry only
// enforces unique "component.metric" keys and owns the Prometheus registry
// they all land in.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordComponentStatus("merger-l1-0", 2)
//	core.RecordUpdateReceived("merger-l1-0", "histogram")
//
// A merger node registers its own counters on construction:
//
//	dropped := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "mergestream",
//	    Subsystem: "merger",
//	    Name:      "updates_dropped_total",
//	    Help:      "Updates dropped by the inbound queue",
//	})
//	if err := registry.RegisterCounter(nodeID, "updates_dropped_total", dropped); err != nil {
//	    return err
//	}
//
// # Health Endpoint
//
// /health answers 200 OK by default. The engine installs an aggregated
// health handler with SetHealthHandler so operators see per-component status
// at the same port as the metrics.
package metric
