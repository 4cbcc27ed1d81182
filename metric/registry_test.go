package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("merger-l1-0", "test_counter", counter)
	require.NoError(t, err)

	counter.Inc()

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "Counter should be registered in Prometheus registry")
}

func TestMetricsRegistry_RegisterGauge(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	err := registry.RegisterGauge("merger-l1-0", "test_gauge", gauge)
	require.NoError(t, err)

	gauge.Set(42.0)

	m := &dto.Metric{}
	require.NoError(t, gauge.Write(m))
	assert.Equal(t, 42.0, m.GetGauge().GetValue())
}

func TestMetricsRegistry_RegisterHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "A test histogram",
		Buckets: prometheus.DefBuckets,
	})

	err := registry.RegisterHistogram("merger-l1-0", "test_histogram", histogram)
	require.NoError(t, err)

	histogram.Observe(1.5)

	m := &dto.Metric{}
	require.NoError(t, histogram.Write(m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("node", "dup_counter", counter))

	other := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter_other",
		Help: "Another counter",
	})
	err := registry.RegisterCounter("node", "dup_counter", other)
	assert.Error(t, err, "same component.metric key must be rejected")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transient_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("node", "transient_counter", counter))
	assert.True(t, registry.Unregister("node", "transient_counter"))
	assert.False(t, registry.Unregister("node", "transient_counter"), "already removed")

	// Key is free again after unregistration.
	require.NoError(t, registry.RegisterCounter("node", "transient_counter", counter))
}

func TestMetricsRegistry_RegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vec_counter",
		Help: "A test counter vec",
	}, []string{"kind"})
	require.NoError(t, registry.RegisterCounterVec("node", "vec_counter", counterVec))

	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vec_gauge",
		Help: "A test gauge vec",
	}, []string{"kind"})
	require.NoError(t, registry.RegisterGaugeVec("node", "vec_gauge", gaugeVec))

	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "vec_histogram",
		Help: "A test histogram vec",
	}, []string{"kind"})
	require.NoError(t, registry.RegisterHistogramVec("node", "vec_histogram", histogramVec))

	counterVec.WithLabelValues("histogram").Inc()
	gaugeVec.WithLabelValues("histogram").Set(3)
	histogramVec.WithLabelValues("histogram").Observe(0.1)
}

func TestCoreMetrics_Recorders(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordComponentStatus("merger-l1-0", 2)
	core.RecordUpdateReceived("merger-l1-0", "histogram")
	core.RecordSnapshotPublished("merger-l1-0", "mergestream.merged.merger-l1-0")
	core.RecordProcessingDuration("merger-l1-0", "merge", 5*time.Millisecond)
	core.RecordError("merger-l1-0", "invalid")
	core.RecordHealthStatus("merger-l1-0", true)
	core.RecordNATSStatus(true)
	core.RecordNATSRTT(2 * time.Millisecond)
	core.RecordNATSReconnect()
	core.RecordCircuitBreakerState(0)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"mergestream_component_status",
		"mergestream_updates_received_total",
		"mergestream_snapshots_published_total",
		"mergestream_processing_duration_seconds",
		"mergestream_errors_total",
		"mergestream_health_status",
		"mergestream_nats_connected",
	} {
		assert.True(t, names[want], "expected metric family %s", want)
	}
}

// mergerNodeMetrics mimics how a node registers its own metrics on top of
// the core set.
type mergerNodeMetrics struct {
	updatesDropped prometheus.Counter
	retained       prometheus.Gauge
}

func TestMetricsRegistry_ComponentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	m := &mergerNodeMetrics{
		updatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergestream",
			Subsystem: "merger",
			Name:      "updates_dropped_total",
			Help:      "Updates dropped by the inbound queue",
		}),
		retained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mergestream",
			Subsystem: "merger",
			Name:      "retained_updates",
			Help:      "Updates currently retained for the moving window",
		}),
	}

	var registrar MetricsRegistrar = registry
	require.NoError(t, registrar.RegisterCounter("merger-l1-0", "updates_dropped_total", m.updatesDropped))
	require.NoError(t, registrar.RegisterGauge("merger-l1-0", "retained_updates", m.retained))

	m.updatesDropped.Inc()
	m.retained.Set(7)

	mm := &dto.Metric{}
	require.NoError(t, m.retained.Write(mm))
	assert.Equal(t, 7.0, mm.GetGauge().GetValue())
}
