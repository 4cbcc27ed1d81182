package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/message"
	"github.com/c360/mergestream/metric"
	"github.com/c360/mergestream/pkg/timestamp"
)

// Generator yields the next object to publish. Returning false stops the
// producer after the current object stream is exhausted.
type Generator func() (mergeable.Object, bool)

// Config configures a producer.
type Config struct {
	// SourceID is the identity stamped on every published update.
	SourceID string
	// Subject is the bus subject updates are published on.
	Subject string
	// Interval is the publish cadence.
	Interval time.Duration
	// Count limits how many updates are published; 0 means unlimited.
	Count int
}

// Validate rejects structurally broken producer configurations.
func (c *Config) Validate() error {
	if c.SourceID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing source id"),
			"Producer", "Validate", "source id validation")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing subject"),
			"Producer", "Validate", "subject validation")
	}
	if c.Interval <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("interval must be positive, got %v", c.Interval),
			"Producer", "Validate", "interval validation")
	}
	return nil
}

// Producer publishes Updates for one source on an interval, drawing objects
// from a generator and numbering them with a monotonic sequence.
type Producer struct {
	cfg    Config
	bus    component.Bus
	next   Generator
	logger *slog.Logger
	now    func() int64

	sequence  atomic.Uint64
	published atomic.Int64
	errCount  atomic.Int64

	running   atomic.Bool
	shutdown  chan struct{}
	once      sync.Once
	wg        sync.WaitGroup
	startTime time.Time

	publishedMetric prometheus.Counter
	failedMetric    prometheus.Counter
}

// Deps holds runtime dependencies for a producer.
type Deps struct {
	Config          Config
	Bus             component.Bus
	Next            Generator
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	// Now overrides event-time stamping; defaults to timestamp.Now.
	Now func() int64
}

// New creates a producer.
func New(deps Deps) (*Producer, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil bus"),
			deps.Config.SourceID, "New", "dependency validation")
	}
	if deps.Next == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil generator"),
			deps.Config.SourceID, "New", "dependency validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", deps.Config.SourceID)
	}
	now := deps.Now
	if now == nil {
		now = timestamp.Now
	}

	p := &Producer{
		cfg:    deps.Config,
		bus:    deps.Bus,
		next:   deps.Next,
		logger: logger,
		now:    now,
	}

	if deps.MetricsRegistry != nil {
		labels := prometheus.Labels{"source": deps.Config.SourceID}
		p.publishedMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "producer",
			Name:        "updates_published_total",
			Help:        "Updates published to the bus",
			ConstLabels: labels,
		})
		p.failedMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "producer",
			Name:        "publish_failures_total",
			Help:        "Updates that failed to publish",
			ConstLabels: labels,
		})
		deps.MetricsRegistry.RegisterCounter(deps.Config.SourceID, "updates_published", p.publishedMetric)
		deps.MetricsRegistry.RegisterCounter(deps.Config.SourceID, "publish_failures", p.failedMetric)
	}

	return p, nil
}

// SourceID returns the producer's source identity.
func (p *Producer) SourceID() string { return p.cfg.SourceID }

// Published returns how many updates have been published so far.
func (p *Producer) Published() int { return int(p.published.Load()) }

// Meta returns the component metadata.
func (p *Producer) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.cfg.SourceID,
		Type:        "producer",
		Description: fmt.Sprintf("update producer publishing to %s every %v", p.cfg.Subject, p.cfg.Interval),
		Version:     "1.0.0",
	}
}

// InputPorts returns no ports; producers originate data.
func (p *Producer) InputPorts() []component.Port { return nil }

// OutputPorts returns the output ports for this component.
func (p *Producer) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "updates",
			Direction:   component.DirectionOutput,
			Subject:     p.cfg.Subject,
			Required:    true,
			Description: "Partial update stream for one source",
		},
	}
}

// Health returns the current health status.
func (p *Producer) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(p.errCount.Load()),
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns the current data flow metrics.
func (p *Producer) DataFlow() component.FlowMetrics {
	published := p.published.Load()
	var rate, errorRate float64
	if uptime := time.Since(p.startTime).Seconds(); uptime > 0 {
		rate = float64(published) / uptime
	}
	if published > 0 {
		errorRate = float64(p.errCount.Load()) / float64(published)
	}
	return component.FlowMetrics{
		MessagesPerSecond: rate,
		ErrorRate:         errorRate,
	}
}

// Initialize validates the producer's wiring.
func (p *Producer) Initialize() error {
	return p.cfg.Validate()
}

// Start launches the publishing loop. Idempotent while running.
func (p *Producer) Start(ctx context.Context) error {
	if p.running.Load() {
		return nil
	}

	p.shutdown = make(chan struct{})
	p.running.Store(true)
	p.startTime = time.Now()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	return nil
}

// Stop halts the publishing loop.
func (p *Producer) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)
	p.once.Do(func() { close(p.shutdown) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout),
			p.cfg.SourceID, "Stop", "graceful shutdown")
	}
}

func (p *Producer) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			if !p.publishNext(ctx) {
				p.running.Store(false)
				return
			}
		}
	}
}

// publishNext draws one object and publishes it. Returns false when the
// generator is exhausted or the count limit was reached.
func (p *Producer) publishNext(ctx context.Context) bool {
	if p.cfg.Count > 0 && p.published.Load() >= int64(p.cfg.Count) {
		p.logger.Info("Producer reached publish limit", "count", p.cfg.Count)
		return false
	}

	obj, ok := p.next()
	if !ok {
		p.logger.Info("Producer generator exhausted", "published", p.published.Load())
		return false
	}

	payload, err := obj.MarshalJSON()
	if err != nil {
		p.errCount.Add(1)
		p.logger.Error("Object serialization failed", "error", err)
		return true
	}

	seq := p.sequence.Add(1)
	upd := message.NewUpdate(p.cfg.SourceID, seq, obj.Kind(), payload, p.now())
	data, err := upd.Encode()
	if err != nil {
		p.errCount.Add(1)
		p.logger.Error("Update encoding failed", "error", err)
		return true
	}

	if err := p.bus.Publish(ctx, p.cfg.Subject, data); err != nil {
		p.errCount.Add(1)
		if p.failedMetric != nil {
			p.failedMetric.Inc()
		}
		p.logger.Warn("Update publish failed", "subject", p.cfg.Subject, "error", err)
		return true
	}

	p.published.Add(1)
	if p.publishedMetric != nil {
		p.publishedMetric.Inc()
	}
	return true
}

// FromSlice returns a generator that yields the given objects in order, then
// reports exhaustion.
func FromSlice(objs []mergeable.Object) Generator {
	i := 0
	return func() (mergeable.Object, bool) {
		if i >= len(objs) {
			return nil, false
		}
		obj := objs[i]
		i++
		return obj, true
	}
}

// Repeat returns a generator that yields a clone of obj forever.
func Repeat(obj mergeable.Object) Generator {
	return func() (mergeable.Object, bool) {
		return obj.Clone(), true
	}
}
