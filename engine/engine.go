package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/mergestream/checker"
	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/health"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/merger"
	"github.com/c360/mergestream/topology"
)

// Options configures engine construction beyond the topology itself.
type Options struct {
	// Checker, when non-nil, attaches a validator to the root node's
	// output subject.
	Checker *checker.Config
	// CheckerPredicate overrides the checker's default predicate.
	CheckerPredicate checker.Predicate
	// CheckerResults, when non-nil, receives every checker result.
	CheckerResults chan<- checker.Result
	// StopTimeout bounds each component's shutdown. Zero means 10s.
	StopTimeout time.Duration
}

// Engine owns the arena of merger nodes built from one topology. Node state
// lives exclusively inside the nodes; the engine only sequences their
// lifecycle: layer 1 starts first so every node listens before its upstreams
// emit, and stops first so final flushes land in still-running downstream
// nodes.
type Engine struct {
	topo     *topology.Topology
	nodes    map[string]*merger.Node
	layers   [][]*merger.Node
	checker  *checker.Checker
	monitor  *health.Monitor
	logger   *slog.Logger
	stopWait time.Duration

	fatalOnce sync.Once
	fatalCh   chan error

	mu      sync.Mutex
	started bool
	stopped bool

	metrics *engineMetrics
}

// New constructs every node in the topology (plus the optional checker)
// without starting anything. All structural errors surface here, before any
// goroutine runs.
func New(deps component.Dependencies, topo *topology.Topology, registry *mergeable.Registry, opts Options) (*Engine, error) {
	if topo == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil topology"),
			"engine", "New", "dependency validation")
	}
	if registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil mergeable registry"),
			"engine", "New", "dependency validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "engine")
	}

	stopWait := opts.StopTimeout
	if stopWait <= 0 {
		stopWait = 10 * time.Second
	}

	e := &Engine{
		topo:     topo,
		nodes:    make(map[string]*merger.Node, topo.NodeCount()),
		monitor:  health.NewMonitor(),
		logger:   logger,
		stopWait: stopWait,
		fatalCh:  make(chan error, 1),
		metrics:  newEngineMetrics(deps.MetricsRegistry),
	}

	for _, layer := range topo.Layers {
		nodes := make([]*merger.Node, 0, len(layer))
		for _, spec := range layer {
			node, err := merger.NewNode(merger.Deps{
				Config:          topo.NodeConfig(spec),
				Bus:             deps.Bus,
				Registry:        registry,
				MetricsRegistry: deps.MetricsRegistry,
				Logger:          logger.With("node", spec.ID),
				OnFatal:         e.onNodeFatal,
			})
			if err != nil {
				return nil, errors.WrapInvalid(err, "engine", "New",
					fmt.Sprintf("construction of node %s", spec.ID))
			}
			e.nodes[spec.ID] = node
			nodes = append(nodes, node)
		}
		e.layers = append(e.layers, nodes)
	}

	if opts.Checker != nil {
		cfg := *opts.Checker
		if cfg.Subject == "" {
			cfg.Subject = topo.Root().OutputSubject
		}
		chk, err := checker.New(checker.Deps{
			Config:          cfg,
			Bus:             deps.Bus,
			Registry:        registry,
			MetricsRegistry: deps.MetricsRegistry,
			Logger:          logger.With("checker", cfg.Name),
			Predicate:       opts.CheckerPredicate,
			Results:         opts.CheckerResults,
		})
		if err != nil {
			return nil, errors.WrapInvalid(err, "engine", "New", "checker construction")
		}
		e.checker = chk
	}

	return e, nil
}

// Node returns the node with the given id, or nil.
func (e *Engine) Node(id string) *merger.Node { return e.nodes[id] }

// Root returns the root node of the tree.
func (e *Engine) Root() *merger.Node { return e.nodes[e.topo.Root().ID] }

// Checker returns the attached checker, or nil.
func (e *Engine) Checker() *checker.Checker { return e.checker }

// NodeCount returns the number of merger nodes in the arena.
func (e *Engine) NodeCount() int { return len(e.nodes) }

// Start initializes and starts every component: layer 1 upward so a node is
// listening before its upstreams emit, nodes within a layer in parallel, the
// checker after the root. A failure aborts the start and stops what already
// started.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	begin := time.Now()

	for li, layer := range e.layers {
		// The group only collects parallel start errors; the nodes run on
		// the caller's context, which outlives the group.
		var g errgroup.Group
		for _, node := range layer {
			g.Go(func() error {
				if err := node.Initialize(); err != nil {
					return err
				}
				return node.Start(ctx)
			})
		}
		if err := g.Wait(); err != nil {
			e.stopStarted()
			return errors.WrapTransient(err, "engine", "Start",
				fmt.Sprintf("start of layer %d", li+1))
		}
		e.logger.Info("Layer started", "layer", li+1, "nodes", len(layer))
	}

	if e.checker != nil {
		if err := e.checker.Start(ctx); err != nil {
			e.stopStarted()
			return errors.WrapTransient(err, "engine", "Start", "checker start")
		}
	}

	if e.metrics != nil {
		e.metrics.startDuration.Observe(time.Since(begin).Seconds())
		e.metrics.nodesRunning.Set(float64(len(e.nodes)))
	}
	e.logger.Info("Engine started",
		"nodes", len(e.nodes),
		"layers", len(e.layers),
		"root", e.topo.Root().ID,
		"duration", time.Since(begin))
	return nil
}

// Wait blocks until the context is done or the first node reports a fatal
// error. The fatal error, if any, is returned.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-e.fatalCh:
		return err
	}
}

// Stop shuts components down upstream-first: layer 1 drains and flushes its
// final deltas into the still-running layer above, the root flushes last, and
// the checker stops after the root so it observes the final snapshot. All
// stop errors are collected; the first is returned.
func (e *Engine) Stop(timeout time.Duration) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	if timeout <= 0 {
		timeout = e.stopWait
	}

	begin := time.Now()
	var firstErr error

	for _, layer := range e.layers {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, node := range layer {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := node.Stop(timeout); err != nil {
					e.logger.Warn("Node stop failed", "node", node.NodeID(), "error", err)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	if e.checker != nil {
		if err := e.checker.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.metrics != nil {
		e.metrics.stopDuration.Observe(time.Since(begin).Seconds())
		e.metrics.nodesRunning.Set(0)
	}
	e.logger.Info("Engine stopped", "duration", time.Since(begin))
	return firstErr
}

// Health refreshes the monitor with every component's current status and
// returns the aggregate: unhealthy dominates degraded dominates healthy.
func (e *Engine) Health() health.Status {
	for id, node := range e.nodes {
		e.monitor.Update(id, health.FromComponentHealth(id, node.Health()))
	}
	if e.checker != nil {
		name := e.checker.Meta().Name
		e.monitor.Update(name, health.FromComponentHealth(name, e.checker.Health()))
	}
	return e.monitor.AggregateHealth("engine")
}

// ComponentHealth returns the status recorded for one component at the last
// Health refresh.
func (e *Engine) ComponentHealth(name string) (health.Status, bool) {
	return e.monitor.Get(name)
}

// onNodeFatal funnels the first fatal node error to Wait. Later fatals are
// logged by the nodes themselves.
func (e *Engine) onNodeFatal(nodeID string, err error) {
	if e.metrics != nil {
		e.metrics.fatalNodes.Inc()
	}
	e.fatalOnce.Do(func() {
		e.fatalCh <- errors.WrapFatal(err, "engine", "onNodeFatal",
			fmt.Sprintf("fatal error in node %s", nodeID))
	})
}

// stopStarted rolls back a partially started engine, upstream-first like Stop.
func (e *Engine) stopStarted() {
	for _, layer := range e.layers {
		for _, node := range layer {
			_ = node.Stop(e.stopWait)
		}
	}
}
