package checker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/message"
	"github.com/c360/mergestream/metric"
)

// Predicate evaluates one decoded merged object. A nil return is a pass.
type Predicate func(mergeable.Object) error

// Result records the outcome of one validation run.
type Result struct {
	SnapshotID string
	NodeID     string
	Sequence   uint64
	Passed     bool
	Err        error
	CheckedAt  time.Time
}

// Config configures a checker.
type Config struct {
	// Name identifies the checker in logs and metrics.
	Name string
	// Subject is the merged-snapshot subject to validate, typically the
	// root node's output.
	Subject string
	// Kind is the expected mergeable kind.
	Kind string
	// ExpectedTotal is the expected total entry count for the default
	// predicate.
	ExpectedTotal float64
	// Tolerance is the absolute tolerance for the default predicate.
	Tolerance float64
}

// Validate rejects structurally broken checker configurations.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing checker name"),
			"Checker", "Validate", "name validation")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing subject"),
			"Checker", "Validate", "subject validation")
	}
	if c.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing expected kind"),
			"Checker", "Validate", "kind validation")
	}
	if c.Tolerance < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative tolerance %v", c.Tolerance),
			"Checker", "Validate", "tolerance validation")
	}
	return nil
}

// Deps holds runtime dependencies for a checker.
type Deps struct {
	Config          Config
	Bus             component.Bus
	Registry        *mergeable.Registry
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	// Predicate overrides the default total-entries check. May be nil.
	Predicate Predicate
	// Results, when non-nil, receives every Result. Sends never block;
	// a full channel drops the result (LastResult still reflects it).
	Results chan<- Result
}

// Checker is a read-only consumer of a merged snapshot stream. It decodes
// each snapshot through the registry and evaluates a predicate against it,
// recording pass/fail. It carries no merge state and never feeds back into
// the tree.
type Checker struct {
	cfg       Config
	bus       component.Bus
	registry  *mergeable.Registry
	logger    *slog.Logger
	predicate Predicate
	results   chan<- Result

	mu   sync.RWMutex
	last *Result

	runs     atomic.Int64
	failures atomic.Int64
	running  atomic.Bool

	startTime time.Time

	runsMetric     prometheus.Counter
	failuresMetric prometheus.Counter
}

// New creates a checker. A nil predicate selects the default total-entries
// check, which requires the kind to implement mergeable.Countable.
func New(deps Deps) (*Checker, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil bus"),
			deps.Config.Name, "New", "dependency validation")
	}
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil mergeable registry"),
			deps.Config.Name, "New", "dependency validation")
	}
	if !deps.Registry.Has(deps.Config.Kind) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownKind, deps.Config.Kind),
			deps.Config.Name, "New", "kind registration check")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", deps.Config.Name)
	}

	c := &Checker{
		cfg:       deps.Config,
		bus:       deps.Bus,
		registry:  deps.Registry,
		logger:    logger,
		predicate: deps.Predicate,
		results:   deps.Results,
	}
	if c.predicate == nil {
		c.predicate = TotalEntriesWithin(deps.Config.ExpectedTotal, deps.Config.Tolerance)
	}

	if deps.MetricsRegistry != nil {
		labels := prometheus.Labels{"checker": deps.Config.Name}
		c.runsMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "checker",
			Name:        "runs_total",
			Help:        "Validation runs executed",
			ConstLabels: labels,
		})
		c.failuresMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mergestream",
			Subsystem:   "checker",
			Name:        "failures_total",
			Help:        "Validation runs that failed",
			ConstLabels: labels,
		})
		deps.MetricsRegistry.RegisterCounter(deps.Config.Name, "runs", c.runsMetric)
		deps.MetricsRegistry.RegisterCounter(deps.Config.Name, "failures", c.failuresMetric)
	}

	return c, nil
}

// TotalEntriesWithin returns the default predicate: the object's total entry
// count must lie within tolerance of expected. The object must implement
// mergeable.Countable.
func TotalEntriesWithin(expected, tolerance float64) Predicate {
	return func(obj mergeable.Object) error {
		countable, ok := obj.(mergeable.Countable)
		if !ok {
			return fmt.Errorf("kind %q does not expose a total entry count", obj.Kind())
		}
		got := countable.TotalEntries()
		if math.Abs(got-expected) > tolerance {
			return fmt.Errorf("total entries %v outside %v±%v", got, expected, tolerance)
		}
		return nil
	}
}

// Meta returns the component metadata.
func (c *Checker) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.cfg.Name,
		Type:        "checker",
		Description: fmt.Sprintf("snapshot validator on %s", c.cfg.Subject),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component.
func (c *Checker) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "snapshots",
			Direction:   component.DirectionInput,
			Subject:     c.cfg.Subject,
			Required:    true,
			Description: "Merged snapshot stream to validate",
		},
	}
}

// OutputPorts returns no ports; the checker is a pure observer.
func (c *Checker) OutputPorts() []component.Port { return nil }

// Health reports unhealthy once any validation run has failed.
func (c *Checker) Health() component.HealthStatus {
	failures := c.failures.Load()
	lastErr := ""
	if last := c.LastResult(); last != nil && last.Err != nil {
		lastErr = last.Err.Error()
	}
	return component.HealthStatus{
		Healthy:    c.running.Load() && failures == 0,
		LastCheck:  time.Now(),
		ErrorCount: int(failures),
		LastError:  lastErr,
		Uptime:     time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics.
func (c *Checker) DataFlow() component.FlowMetrics {
	runs := c.runs.Load()
	var rate, errorRate float64
	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		rate = float64(runs) / uptime
	}
	if runs > 0 {
		errorRate = float64(c.failures.Load()) / float64(runs)
	}
	return component.FlowMetrics{
		MessagesPerSecond: rate,
		ErrorRate:         errorRate,
	}
}

// Initialize validates the checker's wiring.
func (c *Checker) Initialize() error {
	return c.cfg.Validate()
}

// Start subscribes to the snapshot subject.
func (c *Checker) Start(ctx context.Context) error {
	if c.running.Load() {
		return nil
	}
	if err := c.bus.Subscribe(ctx, c.cfg.Subject, c.handleSnapshot); err != nil {
		return errors.WrapTransient(err, c.cfg.Name, "Start",
			fmt.Sprintf("subscription to %s", c.cfg.Subject))
	}
	c.running.Store(true)
	c.startTime = time.Now()
	return nil
}

// Stop halts validation. The bus subscription is released with the bus.
func (c *Checker) Stop(time.Duration) error {
	c.running.Store(false)
	return nil
}

// LastResult returns the most recent validation result, or nil before the
// first snapshot arrives.
func (c *Checker) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	cp := *c.last
	return &cp
}

// Runs returns how many validation runs have executed.
func (c *Checker) Runs() int { return int(c.runs.Load()) }

// Failures returns how many validation runs have failed.
func (c *Checker) Failures() int { return int(c.failures.Load()) }

func (c *Checker) handleSnapshot(_ context.Context, data []byte) {
	if !c.running.Load() {
		return
	}

	snap, err := message.DecodeSnapshot(data)
	if err != nil {
		c.record(Result{Passed: false, Err: err})
		c.logger.Warn("Undecodable snapshot", "error", err)
		return
	}

	result := Result{
		SnapshotID: snap.SnapshotID,
		NodeID:     snap.NodeID,
		Sequence:   snap.Sequence,
		CheckedAt:  time.Now(),
	}

	if snap.Kind != c.cfg.Kind {
		result.Err = fmt.Errorf("%w: expected %q, got %q",
			errors.ErrKindMismatch, c.cfg.Kind, snap.Kind)
		c.record(result)
		return
	}

	obj, err := c.registry.Decode(snap.Kind, snap.Payload)
	if err != nil {
		result.Err = err
		c.record(result)
		return
	}

	if err := c.predicate(obj); err != nil {
		result.Err = err
		c.record(result)
		return
	}

	result.Passed = true
	c.record(result)
}

func (c *Checker) record(r Result) {
	c.runs.Add(1)
	if c.runsMetric != nil {
		c.runsMetric.Inc()
	}
	if !r.Passed {
		c.failures.Add(1)
		if c.failuresMetric != nil {
			c.failuresMetric.Inc()
		}
		c.logger.Warn("Snapshot validation failed",
			"snapshot", r.SnapshotID, "node", r.NodeID, "error", r.Err)
	} else {
		c.logger.Debug("Snapshot validation passed",
			"snapshot", r.SnapshotID, "node", r.NodeID, "sequence", r.Sequence)
	}

	c.mu.Lock()
	c.last = &r
	c.mu.Unlock()

	if c.results != nil {
		select {
		case c.results <- r:
		default:
		}
	}
}
