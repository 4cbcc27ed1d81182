package topology

import (
	"fmt"
	"time"

	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/merger"
)

// DefaultSubjectPrefix namespaces all bus subjects unless Options overrides it.
const DefaultSubjectPrefix = "mergestream"

// UpdateSubject returns the bus subject a producer publishes updates on,
// under the default prefix.
func UpdateSubject(producerID string) string {
	return DefaultSubjectPrefix + ".updates." + producerID
}

// MergedSubject returns the bus subject a merger node publishes snapshots on,
// under the default prefix.
func MergedSubject(nodeID string) string {
	return DefaultSubjectPrefix + ".merged." + nodeID
}

// Options configures topology construction.
type Options struct {
	// FanIn is the maximum number of upstream sources per node. Must be
	// at least 2.
	FanIn int
	// Kind is the mergeable kind every node in the tree is bound to.
	Kind string
	// Policy is the timespan policy applied at every node.
	Policy merger.Policy
	// Window is the trailing window length; MovingWindow only.
	Window time.Duration
	// PublishInterval is each node's publish cadence. Zero selects the
	// node default.
	PublishInterval time.Duration
	// LayerIntervals overrides PublishInterval per layer; index 0 is
	// layer 1. Zero entries fall back to PublishInterval.
	LayerIntervals []time.Duration
	// SubjectPrefix namespaces the generated subjects. Empty selects
	// DefaultSubjectPrefix.
	SubjectPrefix string
	// PublishOnUpdateOnly suppresses quiet-tick republishing at the root.
	PublishOnUpdateOnly bool
	// QueueCapacity bounds each node's inbound queue. Zero selects the
	// node default.
	QueueCapacity int
	// SourceTimeout overrides the silent-source warning interval. Zero
	// selects the node default.
	SourceTimeout time.Duration
}

// NodeSpec describes one merger node's position and wiring in the tree.
type NodeSpec struct {
	// ID is the deterministic node identity: merger-l<layer>-<index>.
	ID string
	// Layer is the 1-based distance from the producers.
	Layer int
	// Index is the node's position within its layer.
	Index int
	// UpstreamIDs are the source identities feeding this node: producer
	// ids at layer 1, lower-layer node ids above.
	UpstreamIDs []string
	// InputSubjects are the bus subjects the node subscribes to, aligned
	// with UpstreamIDs.
	InputSubjects []string
	// OutputSubject is where the node publishes merged snapshots.
	OutputSubject string
	// PublishInterval is this node's publish cadence, already resolved
	// against any per-layer override. Zero selects the node default.
	PublishInterval time.Duration
	// Scope is delta for intermediate layers and cumulative at the root,
	// so each contribution is integrated exactly once on the way up.
	Scope merger.Scope
}

// Topology is a fan-in reduction tree over a fixed producer set. Layer 1
// consumes producer updates; each subsequent layer consumes the snapshots of
// the one below; the final layer holds the single root.
type Topology struct {
	FanIn     int
	Kind      string
	Policy    merger.Policy
	Producers []string
	Layers    [][]NodeSpec

	opts Options
}

// Build constructs the reduction tree for the given producers. Construction
// is deterministic: the same producers and options always yield the same node
// ids and wiring.
func Build(producers []string, opts Options) (*Topology, error) {
	if opts.FanIn < 2 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: fan-in must be at least 2, got %d", errors.ErrTopologyConfig, opts.FanIn),
			"Topology", "Build", "fan-in validation")
	}
	if len(producers) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no producers", errors.ErrTopologyConfig),
			"Topology", "Build", "producer validation")
	}
	seen := make(map[string]bool, len(producers))
	for _, id := range producers {
		if id == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty producer id", errors.ErrTopologyConfig),
				"Topology", "Build", "producer validation")
		}
		if seen[id] {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate producer id %q", errors.ErrTopologyConfig, id),
				"Topology", "Build", "producer validation")
		}
		seen[id] = true
	}
	if opts.Kind == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: missing mergeable kind", errors.ErrTopologyConfig),
			"Topology", "Build", "kind validation")
	}
	if opts.Policy == merger.MovingWindow && opts.Window <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: moving window policy requires a positive window", errors.ErrTopologyConfig),
			"Topology", "Build", "window validation")
	}
	for li, interval := range opts.LayerIntervals {
		if interval < 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: negative publish interval %v for layer %d", errors.ErrTopologyConfig, interval, li+1),
				"Topology", "Build", "interval validation")
		}
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = DefaultSubjectPrefix
	}

	t := &Topology{
		FanIn:     opts.FanIn,
		Kind:      opts.Kind,
		Policy:    opts.Policy,
		Producers: append([]string(nil), producers...),
		opts:      opts,
	}

	upstreamIDs := t.Producers
	upstreamSubjects := make([]string, len(producers))
	for i, id := range producers {
		upstreamSubjects[i] = opts.SubjectPrefix + ".updates." + id
	}

	for layer := 1; ; layer++ {
		specs := groupLayer(layer, opts, upstreamIDs, upstreamSubjects)
		t.Layers = append(t.Layers, specs)
		if len(specs) == 1 {
			break
		}
		upstreamIDs = make([]string, len(specs))
		upstreamSubjects = make([]string, len(specs))
		for i, s := range specs {
			upstreamIDs[i] = s.ID
			upstreamSubjects[i] = s.OutputSubject
		}
	}

	// Intermediate layers publish deltas so the layer above integrates
	// each contribution exactly once; the root keeps the cumulative
	// object. Window recomputation does not compose the same way across
	// layers, so MovingWindow is restricted to single-node trees.
	if opts.Policy == merger.MovingWindow && len(t.Layers) > 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: moving window requires %d producers to fit a single node at fan-in %d",
				errors.ErrTopologyConfig, len(producers), opts.FanIn),
			"Topology", "Build", "policy validation")
	}
	if opts.Policy == merger.FullHistory {
		for li := range t.Layers[:len(t.Layers)-1] {
			for i := range t.Layers[li] {
				t.Layers[li][i].Scope = merger.ScopeDelta
			}
		}
	}

	if err := t.selfCheck(); err != nil {
		return nil, err
	}
	return t, nil
}

// selfCheck verifies structural soundness of the built tree: unique node ids,
// every upstream reference resolvable, edges strictly layered, one root.
func (t *Topology) selfCheck() error {
	fail := func(format string, args ...any) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrTopologyConfig, fmt.Sprintf(format, args...)),
			"Topology", "Build", "structural self-check")
	}

	sources := make(map[string]int, len(t.Producers)) // id -> layer it feeds from
	for _, id := range t.Producers {
		sources[id] = 0
	}
	ids := make(map[string]bool)
	for li, layer := range t.Layers {
		if len(layer) == 0 {
			return fail("layer %d is empty", li+1)
		}
		for _, spec := range layer {
			if ids[spec.ID] {
				return fail("duplicate node id %s", spec.ID)
			}
			ids[spec.ID] = true
			for _, up := range spec.UpstreamIDs {
				fromLayer, ok := sources[up]
				if !ok {
					return fail("node %s references unknown upstream %s", spec.ID, up)
				}
				if fromLayer != li {
					return fail("node %s skips layers to upstream %s", spec.ID, up)
				}
			}
		}
		for _, spec := range layer {
			sources[spec.ID] = li + 1
		}
	}
	if len(t.Layers[len(t.Layers)-1]) != 1 {
		return fail("final layer holds %d nodes, want a single root", len(t.Layers[len(t.Layers)-1]))
	}
	return nil
}

// groupLayer chunks the upstream list into fan-in sized groups, one node per
// group.
func groupLayer(layer int, opts Options, upstreamIDs, upstreamSubjects []string) []NodeSpec {
	interval := opts.PublishInterval
	if layer-1 < len(opts.LayerIntervals) && opts.LayerIntervals[layer-1] > 0 {
		interval = opts.LayerIntervals[layer-1]
	}

	count := (len(upstreamIDs) + opts.FanIn - 1) / opts.FanIn
	specs := make([]NodeSpec, 0, count)
	for i := 0; i < count; i++ {
		lo := i * opts.FanIn
		hi := lo + opts.FanIn
		if hi > len(upstreamIDs) {
			hi = len(upstreamIDs)
		}
		id := fmt.Sprintf("merger-l%d-%d", layer, i)
		specs = append(specs, NodeSpec{
			ID:              id,
			Layer:           layer,
			Index:           i,
			UpstreamIDs:     append([]string(nil), upstreamIDs[lo:hi]...),
			InputSubjects:   append([]string(nil), upstreamSubjects[lo:hi]...),
			OutputSubject:   opts.SubjectPrefix + ".merged." + id,
			PublishInterval: interval,
			Scope:           merger.ScopeCumulative,
		})
	}
	return specs
}

// Root returns the single node in the final layer.
func (t *Topology) Root() NodeSpec {
	last := t.Layers[len(t.Layers)-1]
	return last[0]
}

// Depth returns the number of layers between producers and the root.
func (t *Topology) Depth() int { return len(t.Layers) }

// NodeCount returns the total number of merger nodes in the tree.
func (t *Topology) NodeCount() int {
	var n int
	for _, layer := range t.Layers {
		n += len(layer)
	}
	return n
}

// Configs materializes one merger configuration per node, layer by layer.
func (t *Topology) Configs() []merger.Config {
	configs := make([]merger.Config, 0, t.NodeCount())
	for _, layer := range t.Layers {
		for _, spec := range layer {
			configs = append(configs, t.NodeConfig(spec))
		}
	}
	return configs
}

// NodeConfig materializes the merger configuration for one node spec.
func (t *Topology) NodeConfig(spec NodeSpec) merger.Config {
	return merger.Config{
		NodeID:              spec.ID,
		Kind:                t.Kind,
		UpstreamIDs:         spec.UpstreamIDs,
		InputSubjects:       spec.InputSubjects,
		OutputSubject:       spec.OutputSubject,
		Policy:              t.Policy,
		Window:              t.opts.Window,
		Scope:               spec.Scope,
		PublishInterval:     spec.PublishInterval,
		PublishOnUpdateOnly: t.opts.PublishOnUpdateOnly && spec.Scope == merger.ScopeCumulative,
		QueueCapacity:       t.opts.QueueCapacity,
		SourceTimeout:       t.opts.SourceTimeout,
	}
}
