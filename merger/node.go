package merger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/message"
	"github.com/c360/mergestream/metric"
	"github.com/c360/mergestream/pkg/buffer"
	"github.com/c360/mergestream/pkg/retry"
	"github.com/c360/mergestream/pkg/timestamp"
)

// Phase is the lifecycle phase of a merger node.
type Phase int32

const (
	// PhaseIdle means constructed, no updates received yet.
	PhaseIdle Phase = iota
	// PhaseAccumulating means at least one update has been merged.
	PhaseAccumulating
	// PhasePublishing means a snapshot is being computed.
	PhasePublishing
	// PhaseDraining means shutdown was requested and queued updates are
	// being flushed.
	PhaseDraining
	// PhaseTerminated means the node has stopped, orderly or fatally.
	PhaseTerminated
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccumulating:
		return "accumulating"
	case PhasePublishing:
		return "publishing"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// processBatchSize bounds how many queued updates are drained per pass so a
// publish tick is never starved by a continuous arrival stream.
const processBatchSize = 64

// Deps holds runtime dependencies for a merger node.
type Deps struct {
	Config          Config
	Bus             component.Bus
	Registry        *mergeable.Registry
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	// OnFatal is invoked once when the node terminates on a fatal error
	// (kind mismatch). May be nil.
	OnFatal func(nodeID string, err error)
	// Now overrides the wall clock for window arithmetic; tests inject a
	// fake clock here. Defaults to timestamp.Now.
	Now func() int64
}

// retainedUpdate is one decoded in-window contribution under MovingWindow.
type retainedUpdate struct {
	timestamp int64
	sourceID  string
	obj       mergeable.Object
}

// sourceState tracks per-source delivery for diagnostics and timeout scans.
type sourceState struct {
	lastSequence uint64
	lastSeenMs   int64
	updates      int64
}

// Node is the stateful aggregation actor. All merge state (accumulator,
// retention list, per-source bookkeeping) is owned by the run goroutine and
// never shared.
type Node struct {
	cfg      Config
	bus      component.Bus
	registry *mergeable.Registry
	logger   *slog.Logger
	onFatal  func(string, error)
	now      func() int64

	upstream    map[string]bool
	inbound     buffer.Buffer[[]byte]
	notify      chan struct{}
	mailbox     chan message.Snapshot
	retryConfig retry.Config

	// Merge state, owned by the run goroutine.
	accumulator  mergeable.Object
	retained     []retainedUpdate
	lastSeen     map[string]*sourceState
	dirty        bool
	firstEventMs int64
	lastEventMs  int64
	publishSeq   uint64

	// Lifecycle management.
	phase        atomic.Int32
	running      atomic.Bool
	shutdown     chan struct{}
	shutdownOnce sync.Once
	fatalOnce    sync.Once
	wg           sync.WaitGroup
	startTime    time.Time
	startMs      int64
	mu           sync.RWMutex // protects lastErr

	lastErr error

	// Flow metrics (atomic for thread safety).
	updatesReceived atomic.Int64
	bytesReceived   atomic.Int64
	errorCount      atomic.Int64
	staleSources    atomic.Int64
	lastActivity    atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Node implements the component contracts.
var _ component.Discoverable = (*Node)(nil)
var _ component.LifecycleComponent = (*Node)(nil)

// NewNode creates a merger node. Returns an error for structurally invalid
// configurations, before any goroutine runs.
func NewNode(deps Deps) (*Node, error) {
	cfg := deps.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil bus"),
			cfg.NodeID, "NewNode", "dependency validation")
	}
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil mergeable registry"),
			cfg.NodeID, "NewNode", "dependency validation")
	}
	if !deps.Registry.Has(cfg.Kind) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownKind, cfg.Kind),
			cfg.NodeID, "NewNode", "kind registration check")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", cfg.NodeID)
	}
	now := deps.Now
	if now == nil {
		now = timestamp.Now
	}

	metrics := newMetrics(deps.MetricsRegistry, cfg.NodeID)

	bufferOpts := []buffer.Option[[]byte]{
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
	}
	if metrics != nil {
		bufferOpts = append(bufferOpts, buffer.WithDropCallback[[]byte](func([]byte) {
			metrics.updatesDropped.Inc()
		}))
	}
	inbound, err := buffer.NewCircularBuffer(cfg.QueueCapacity, bufferOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, cfg.NodeID, "NewNode", "inbound queue creation")
	}

	upstream := make(map[string]bool, len(cfg.UpstreamIDs))
	for _, id := range cfg.UpstreamIDs {
		upstream[id] = true
	}

	n := &Node{
		cfg:         cfg,
		bus:         deps.Bus,
		registry:    deps.Registry,
		logger:      logger,
		onFatal:     deps.OnFatal,
		now:         now,
		upstream:    upstream,
		inbound:     inbound,
		notify:      make(chan struct{}, 1),
		retryConfig: retry.DefaultConfig(),
		lastSeen:    make(map[string]*sourceState, len(cfg.UpstreamIDs)),
		startTime:   time.Now(),
		metrics:     metrics,
	}
	n.lastActivity.Store(time.Time{})
	n.setPhase(PhaseIdle)
	return n, nil
}

// NodeID returns the node's identity within the topology.
func (n *Node) NodeID() string { return n.cfg.NodeID }

// Phase returns the current lifecycle phase.
func (n *Node) Phase() Phase { return Phase(n.phase.Load()) }

func (n *Node) setPhase(p Phase) {
	n.phase.Store(int32(p))
	if n.metrics != nil {
		n.metrics.phase.Set(float64(p))
	}
}

// LastError returns the error that terminated the node, if any.
func (n *Node) LastError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastErr
}

// StaleSourceCount returns how many upstream sources missed their expected
// delivery interval at the last publish tick.
func (n *Node) StaleSourceCount() int {
	return int(n.staleSources.Load())
}

// Meta returns the component metadata.
func (n *Node) Meta() component.Metadata {
	return component.Metadata{
		Name: n.cfg.NodeID,
		Type: "merger",
		Description: fmt.Sprintf("%s merger over %d sources publishing to %s",
			n.cfg.Policy, len(n.cfg.UpstreamIDs), n.cfg.OutputSubject),
		Version: "1.0.0",
	}
}

// InputPorts returns the input ports for this component.
func (n *Node) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(n.cfg.InputSubjects))
	for _, subject := range n.cfg.InputSubjects {
		ports = append(ports, component.Port{
			Name:        "updates",
			Direction:   component.DirectionInput,
			Subject:     subject,
			Required:    true,
			Description: "Partial update stream from one upstream source",
		})
	}
	return ports
}

// OutputPorts returns the output ports for this component.
func (n *Node) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "snapshots",
			Direction:   component.DirectionOutput,
			Subject:     n.cfg.OutputSubject,
			Required:    true,
			Description: "Merged snapshot stream",
		},
	}
}

// Health returns the current health status of the node. A node with stale
// sources is degraded but still healthy: it keeps publishing best-effort
// merges over the data it has.
func (n *Node) Health() component.HealthStatus {
	lastErr := ""
	if err := n.LastError(); err != nil {
		lastErr = err.Error()
	}

	phase := n.Phase()
	healthy := n.running.Load() && phase != PhaseTerminated && lastErr == ""

	return component.HealthStatus{
		Healthy:    healthy,
		Degraded:   healthy && n.staleSources.Load() > 0,
		LastCheck:  time.Now(),
		ErrorCount: int(n.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(n.startTime),
	}
}

// DataFlow returns the current data flow metrics.
func (n *Node) DataFlow() component.FlowMetrics {
	messages := n.updatesReceived.Load()
	bytes := n.bytesReceived.Load()
	errCount := n.errorCount.Load()
	lastActivity, _ := n.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(n.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(messages) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if messages > 0 {
		errorRate = float64(errCount) / float64(messages)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the node's wiring. Setup only; nothing runs yet.
func (n *Node) Initialize() error {
	if err := n.cfg.Validate(); err != nil {
		return err
	}
	if n.Phase() == PhaseTerminated {
		return errors.WrapInvalid(errors.ErrAlreadyStopped,
			n.cfg.NodeID, "Initialize", "lifecycle check")
	}
	return nil
}

// Start subscribes to the input subjects and launches the actor and
// publisher goroutines. Idempotent while running.
func (n *Node) Start(ctx context.Context) error {
	if n.running.Load() {
		return nil
	}
	if n.Phase() == PhaseTerminated {
		return errors.WrapInvalid(errors.ErrAlreadyStopped,
			n.cfg.NodeID, "Start", "lifecycle check")
	}

	n.shutdown = make(chan struct{})
	n.mailbox = make(chan message.Snapshot, 1)

	for _, subject := range n.cfg.InputSubjects {
		if err := n.bus.Subscribe(ctx, subject, n.handleInbound); err != nil {
			return errors.WrapTransient(err, n.cfg.NodeID, "Start",
				fmt.Sprintf("subscription to %s", subject))
		}
	}

	n.running.Store(true)
	n.startTime = time.Now()
	n.startMs = n.now()

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		n.publisherLoop(ctx)
	}()
	go func() {
		defer n.wg.Done()
		n.run(ctx)
	}()

	return nil
}

// Stop requests a cooperative shutdown: the node stops consuming new
// arrivals, drains its queue, publishes a final flush and terminates. No
// queued update is silently discarded.
func (n *Node) Stop(timeout time.Duration) error {
	if !n.running.Load() {
		return nil
	}
	n.running.Store(false)
	n.shutdownOnce.Do(func() { close(n.shutdown) })

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout),
			n.cfg.NodeID, "Stop", "graceful shutdown")
	}

	_ = n.inbound.Close()
	return nil
}

// handleInbound runs on the bus delivery path. It only copies the raw bytes
// into the bounded inbound queue and wakes the actor; the caller is never
// blocked by merge work.
func (n *Node) handleInbound(_ context.Context, data []byte) {
	if !n.running.Load() {
		return
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	if err := n.inbound.Write(cp); err != nil {
		n.errorCount.Add(1)
		return
	}
	n.bytesReceived.Add(int64(len(data)))

	select {
	case n.notify <- struct{}{}:
	default:
	}
}

// run is the actor loop: it owns all merge state and interleaves queue
// draining with publish ticks, so the two never overlap.
func (n *Node) run(ctx context.Context) {
	defer close(n.mailbox)

	ticker := time.NewTicker(n.cfg.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.drain()
			return
		case <-n.shutdown:
			n.drain()
			return
		case <-n.notify:
			if err := n.processQueued(); err != nil {
				n.terminate(err)
				return
			}
		case <-ticker.C:
			// Drain first so the publish sees every update that
			// arrived before the tick, in arrival order.
			if err := n.processQueued(); err != nil {
				n.terminate(err)
				return
			}
			n.scanStaleSources()
			if err := n.publish(false); err != nil {
				n.terminate(err)
				return
			}
		}
	}
}

// drain processes every already-queued update, publishes one final flush and
// terminates.
func (n *Node) drain() {
	n.setPhase(PhaseDraining)
	if err := n.processQueued(); err != nil {
		n.terminate(err)
		return
	}
	if err := n.publish(true); err != nil {
		n.terminate(err)
		return
	}
	n.setPhase(PhaseTerminated)
	n.logger.Info("Merger node drained",
		"updates", n.updatesReceived.Load(),
		"published", n.publishSeq)
}

// terminate records a fatal error and transitions the node to Terminated.
// Only structural misconfiguration reaches here; data-level errors are
// recovered in applyUpdate.
func (n *Node) terminate(err error) {
	n.mu.Lock()
	n.lastErr = err
	n.mu.Unlock()

	n.errorCount.Add(1)
	n.setPhase(PhaseTerminated)
	n.running.Store(false)
	n.logger.Error("Merger node terminated", "error", err)

	if n.onFatal != nil {
		n.fatalOnce.Do(func() { n.onFatal(n.cfg.NodeID, err) })
	}
}

// processQueued drains the inbound queue in arrival order. Returns a non-nil
// error only for fatal conditions.
func (n *Node) processQueued() error {
	for {
		batch := n.inbound.ReadBatch(processBatchSize)
		if len(batch) == 0 {
			return nil
		}
		for _, raw := range batch {
			if err := n.applyUpdate(raw); err != nil {
				return err
			}
		}
	}
}

// applyUpdate decodes and merges one raw update. Data-level failures are
// logged and dropped; a kind mismatch is returned as fatal.
func (n *Node) applyUpdate(raw []byte) error {
	start := time.Now()

	upd, err := message.ParseInbound(raw)
	if err != nil {
		n.errorCount.Add(1)
		if n.metrics != nil {
			n.metrics.decodeFailures.Inc()
		}
		n.logger.Warn("Dropping unreadable update", "error", err)
		return nil
	}

	if !n.upstream[upd.SourceID] {
		n.errorCount.Add(1)
		if n.metrics != nil {
			n.metrics.unknownSources.Inc()
		}
		n.logger.Warn("Dropping update from source outside upstream set",
			"source", upd.SourceID)
		return nil
	}

	if upd.Kind != n.cfg.Kind {
		return errors.WrapFatal(
			fmt.Errorf("%w: node bound to %q, received %q from %s",
				errors.ErrKindMismatch, n.cfg.Kind, upd.Kind, upd.SourceID),
			n.cfg.NodeID, "applyUpdate", "kind check")
	}

	obj, err := n.registry.Decode(upd.Kind, upd.Payload)
	if err != nil {
		n.errorCount.Add(1)
		if n.metrics != nil {
			n.metrics.decodeFailures.Inc()
		}
		n.logger.Warn("Dropping undecodable payload",
			"source", upd.SourceID, "sequence", upd.Sequence, "error", err)
		return nil
	}

	switch n.cfg.Policy {
	case FullHistory:
		if n.accumulator == nil {
			// The first decoded object seeds the accumulator; it is
			// owned by this node from here on.
			n.accumulator = obj
		} else if err := n.accumulator.Merge(obj); err != nil {
			return errors.WrapFatal(
				fmt.Errorf("merge from %s: %w", upd.SourceID, err),
				n.cfg.NodeID, "applyUpdate", "merge")
		}
	case MovingWindow:
		n.evictExpired(n.now())
		n.retained = append(n.retained, retainedUpdate{
			timestamp: upd.Timestamp,
			sourceID:  upd.SourceID,
			obj:       obj,
		})
		if n.metrics != nil {
			n.metrics.retainedEntries.Set(float64(len(n.retained)))
		}
	}

	state, ok := n.lastSeen[upd.SourceID]
	if !ok {
		state = &sourceState{}
		n.lastSeen[upd.SourceID] = state
	}
	if upd.Sequence < state.lastSequence {
		// Reordering is tolerated; the sequence exists for diagnostics.
		n.logger.Debug("Out-of-order update",
			"source", upd.SourceID, "sequence", upd.Sequence, "last", state.lastSequence)
	} else {
		state.lastSequence = upd.Sequence
	}
	state.lastSeenMs = n.now()
	state.updates++

	n.dirty = true
	n.firstEventMs = timestamp.Min(n.firstEventMs, upd.Timestamp)
	n.lastEventMs = timestamp.Max(n.lastEventMs, upd.Timestamp)
	n.updatesReceived.Add(1)
	n.lastActivity.Store(time.Now())
	if n.Phase() == PhaseIdle {
		n.setPhase(PhaseAccumulating)
	}
	if n.metrics != nil {
		n.metrics.updatesReceived.Inc()
		n.metrics.mergeDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

// evictExpired drops retained updates older than the window.
func (n *Node) evictExpired(nowMs int64) {
	cutoff := timestamp.Sub(nowMs, n.cfg.Window)
	kept := n.retained[:0]
	for _, e := range n.retained {
		if e.timestamp >= cutoff {
			kept = append(kept, e)
		}
	}
	// Release evicted objects for collection.
	for i := len(kept); i < len(n.retained); i++ {
		n.retained[i] = retainedUpdate{}
	}
	n.retained = kept
}

// scanStaleSources raises SourceTimeoutWarning for upstream sources that
// missed their expected delivery interval. Non-fatal: publishing proceeds
// best-effort over the data received so far.
func (n *Node) scanStaleSources() {
	nowMs := n.now()
	timeoutMs := n.cfg.SourceTimeout.Milliseconds()

	var stale int64
	for _, id := range n.cfg.UpstreamIDs {
		base := n.startMs
		if state, ok := n.lastSeen[id]; ok {
			base = state.lastSeenMs
		}
		if nowMs-base > timeoutMs {
			stale++
			if n.metrics != nil {
				n.metrics.sourceTimeouts.Inc()
			}
			n.logger.Warn("Source exceeded expected update interval",
				"source", id,
				"silent_for", timestamp.Between(base, nowMs),
				"warning", errors.ErrSourceTimeout.Error())
		}
	}
	n.staleSources.Store(stale)
}

// publish computes the outgoing object under the node's policy and offers it
// to the outbound mailbox. final marks the flush performed during drain. A
// non-nil error is fatal to the node.
func (n *Node) publish(final bool) error {
	start := time.Now()

	if !final {
		if n.Phase() == PhaseIdle {
			return nil
		}
		n.setPhase(PhasePublishing)
		defer n.setPhase(PhaseAccumulating)
	}

	var snap message.Snapshot
	var ok bool
	var err error
	switch n.cfg.Policy {
	case FullHistory:
		snap, ok = n.buildFullHistorySnapshot(final)
	case MovingWindow:
		snap, ok, err = n.buildWindowSnapshot()
	}
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	n.publishSeq++
	snap.Sequence = n.publishSeq
	n.offer(snap)

	if n.metrics != nil {
		n.metrics.contributingSources.Set(float64(snap.ContributingSources))
		n.metrics.publishDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

// buildFullHistorySnapshot serializes the accumulator. Cumulative scope
// re-emits the unchanged object on quiet ticks (byte-identical, idempotent);
// delta scope publishes only what accumulated since the last publish and
// resets.
func (n *Node) buildFullHistorySnapshot(final bool) (message.Snapshot, bool) {
	if n.accumulator == nil {
		return message.Snapshot{}, false
	}
	if !n.dirty && !final {
		if n.cfg.Scope == ScopeDelta || n.cfg.PublishOnUpdateOnly {
			return message.Snapshot{}, false
		}
	}
	if n.cfg.Scope == ScopeDelta && !n.dirty {
		// Nothing accumulated since the last delta, even on drain.
		return message.Snapshot{}, false
	}

	payload, err := n.accumulator.MarshalJSON()
	if err != nil {
		n.errorCount.Add(1)
		n.logger.Error("Snapshot serialization failed", "error", err)
		return message.Snapshot{}, false
	}

	snap := message.NewSnapshot(n.cfg.NodeID, n.cfg.Kind, payload, 0)
	snap.ContributingSources = n.contributorCount()
	snap.FirstTimestamp = n.firstEventMs
	snap.LastTimestamp = n.lastEventMs

	if n.cfg.Scope == ScopeDelta {
		n.accumulator = nil
		n.firstEventMs = 0
		n.lastEventMs = 0
	}
	n.dirty = false
	return snap, true
}

// buildWindowSnapshot recomputes the merge from scratch over the retained
// in-window updates. The composition may shrink between ticks with no new
// input as entries age out; once the retention set is empty there is nothing
// to publish. A non-nil error is fatal to the node.
func (n *Node) buildWindowSnapshot() (message.Snapshot, bool, error) {
	nowMs := n.now()
	n.evictExpired(nowMs)
	if n.metrics != nil {
		n.metrics.retainedEntries.Set(float64(len(n.retained)))
	}
	if len(n.retained) == 0 {
		return message.Snapshot{}, false, nil
	}

	merged := n.retained[0].obj.Clone()
	contributors := map[string]bool{n.retained[0].sourceID: true}
	first := n.retained[0].timestamp
	last := n.retained[0].timestamp
	for _, e := range n.retained[1:] {
		if err := merged.Merge(e.obj); err != nil {
			// Retained objects passed the kind check on arrival, so a
			// failure here means incompatible structure within one
			// kind (e.g. rebinned histograms). Same classification.
			return message.Snapshot{}, false, errors.WrapFatal(
				fmt.Errorf("window remerge from %s: %w", e.sourceID, err),
				n.cfg.NodeID, "buildWindowSnapshot", "merge")
		}
		contributors[e.sourceID] = true
		first = timestamp.Min(first, e.timestamp)
		last = timestamp.Max(last, e.timestamp)
	}

	payload, err := merged.MarshalJSON()
	if err != nil {
		n.errorCount.Add(1)
		n.logger.Error("Snapshot serialization failed", "error", err)
		return message.Snapshot{}, false, nil
	}

	snap := message.NewSnapshot(n.cfg.NodeID, n.cfg.Kind, payload, 0)
	snap.ContributingSources = uint32(len(contributors))
	snap.FirstTimestamp = first
	snap.LastTimestamp = last
	snap.WindowStart = timestamp.Sub(nowMs, n.cfg.Window)
	snap.WindowEnd = nowMs
	return snap, true, nil
}

// contributorCount counts upstream sources that delivered at least once.
func (n *Node) contributorCount() uint32 {
	var count uint32
	for _, state := range n.lastSeen {
		if state.updates > 0 {
			count++
		}
	}
	return count
}

// offer places a snapshot in the single-slot outbound mailbox without ever
// blocking the actor. When the publisher has not yet sent the previous
// snapshot, the newer one supersedes it: cumulative and window snapshots are
// self-contained so the older one is simply dropped, while a delta snapshot
// carries contributions that exist nowhere else, so it is folded into the
// newer one before the drop. Only the run goroutine sends to or closes the
// mailbox.
func (n *Node) offer(snap message.Snapshot) {
	for {
		select {
		case n.mailbox <- snap:
			return
		default:
			select {
			case old := <-n.mailbox:
				if n.metrics != nil {
					n.metrics.snapshotsCoalesced.Inc()
				}
				if n.cfg.Policy == FullHistory && n.cfg.Scope == ScopeDelta {
					snap = n.foldDelta(old, snap)
				}
			default:
			}
		}
	}
}

// foldDelta merges an unsent delta snapshot into its successor so no
// accumulated contribution is lost to coalescing.
func (n *Node) foldDelta(old, cur message.Snapshot) message.Snapshot {
	prev, err := n.registry.Decode(old.Kind, old.Payload)
	if err != nil {
		n.logger.Error("Unsent delta could not be folded", "error", err)
		return cur
	}
	next, err := n.registry.Decode(cur.Kind, cur.Payload)
	if err != nil {
		n.logger.Error("Unsent delta could not be folded", "error", err)
		return cur
	}
	if err := prev.Merge(next); err != nil {
		n.logger.Error("Unsent delta could not be folded", "error", err)
		return cur
	}
	payload, err := prev.MarshalJSON()
	if err != nil {
		n.logger.Error("Unsent delta could not be folded", "error", err)
		return cur
	}

	cur.Payload = payload
	cur.FirstTimestamp = timestamp.Min(old.FirstTimestamp, cur.FirstTimestamp)
	cur.LastTimestamp = timestamp.Max(old.LastTimestamp, cur.LastTimestamp)
	if old.ContributingSources > cur.ContributingSources {
		cur.ContributingSources = old.ContributingSources
	}
	return cur
}

// publisherLoop drains the mailbox and delivers snapshots to the bus,
// isolating bus latency from the actor. Exits when the run goroutine closes
// the mailbox after the final flush.
func (n *Node) publisherLoop(ctx context.Context) {
	for snap := range n.mailbox {
		data, err := snap.Encode()
		if err != nil {
			n.errorCount.Add(1)
			n.logger.Error("Snapshot encoding failed", "error", err)
			continue
		}

		publishOp := func() error {
			return n.bus.Publish(ctx, n.cfg.OutputSubject, data)
		}
		if err := retry.Do(ctx, n.retryConfig, publishOp); err != nil {
			n.errorCount.Add(1)
			n.logger.Warn("Snapshot publish failed",
				"subject", n.cfg.OutputSubject, "error", err)
			continue
		}

		if n.metrics != nil {
			n.metrics.snapshotsPublished.Inc()
		}
	}
}
