package merger

import (
	"fmt"
	"time"

	"github.com/c360/mergestream/errors"
)

// Policy is the timespan policy governing which updates contribute to a
// published merge.
type Policy int

const (
	// FullHistory merges every update ever received.
	FullHistory Policy = iota
	// MovingWindow merges only updates whose event time lies within a
	// trailing window at publish time.
	MovingWindow
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case FullHistory:
		return "full_history"
	case MovingWindow:
		return "moving_window"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "full_history", "":
		return FullHistory, nil
	case "moving_window":
		return MovingWindow, nil
	default:
		return FullHistory, errors.WrapInvalid(
			fmt.Errorf("unknown policy %q", s),
			"Policy", "ParsePolicy", "policy parsing")
	}
}

// Scope controls what a FullHistory node publishes. Intermediate layers
// publish deltas and reset, so the layer above integrates each contribution
// exactly once; the root publishes the cumulative object. The topology
// builder assigns scopes; it is not a user knob.
type Scope int

const (
	// ScopeCumulative publishes the full accumulated object every tick.
	ScopeCumulative Scope = iota
	// ScopeDelta publishes what accumulated since the last publish, then
	// resets the accumulator.
	ScopeDelta
)

// String returns the configuration name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeCumulative:
		return "cumulative"
	case ScopeDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// Config is the per-node configuration surface.
type Config struct {
	// NodeID is the node's identity within the topology.
	NodeID string
	// Kind is the mergeable kind this node is bound to. Updates of any
	// other kind are a fatal misconfiguration.
	Kind string
	// UpstreamIDs is the fixed set of source ids this node accepts
	// updates from. Fixed at topology construction.
	UpstreamIDs []string
	// InputSubjects are the bus subjects the node subscribes to.
	InputSubjects []string
	// OutputSubject is the bus subject merged snapshots are published to.
	OutputSubject string
	// Policy selects the timespan policy.
	Policy Policy
	// Window is the trailing window length; MovingWindow only.
	Window time.Duration
	// Scope selects delta vs cumulative publishing; FullHistory only.
	Scope Scope
	// PublishInterval is the publish tick cadence.
	PublishInterval time.Duration
	// PublishOnUpdateOnly suppresses the idempotent re-emission of an
	// unchanged cumulative object when no update arrived since the last
	// tick.
	PublishOnUpdateOnly bool
	// QueueCapacity bounds the inbound queue; drop-oldest on overflow.
	QueueCapacity int
	// SourceTimeout is the interval after which a silent upstream source
	// raises a non-fatal warning. Defaults to 3x PublishInterval.
	SourceTimeout time.Duration
}

// withDefaults returns a copy with unset optional fields filled in.
func (c Config) withDefaults() Config {
	if c.PublishInterval <= 0 {
		c.PublishInterval = time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1024
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 3 * c.PublishInterval
	}
	return c
}

// Validate rejects structurally broken node configurations before the node
// runs.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing node id"),
			"Config", "Validate", "node id validation")
	}
	if c.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing mergeable kind"),
			"Config", "Validate", "kind validation")
	}
	if len(c.UpstreamIDs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("empty upstream set"),
			"Config", "Validate", "upstream validation")
	}
	seen := make(map[string]bool, len(c.UpstreamIDs))
	for _, id := range c.UpstreamIDs {
		if id == "" {
			return errors.WrapInvalid(
				fmt.Errorf("empty upstream id"),
				"Config", "Validate", "upstream validation")
		}
		if seen[id] {
			return errors.WrapInvalid(
				fmt.Errorf("duplicate upstream id %q", id),
				"Config", "Validate", "upstream validation")
		}
		seen[id] = true
	}
	if len(c.InputSubjects) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("no input subjects"),
			"Config", "Validate", "subject validation")
	}
	if c.OutputSubject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing output subject"),
			"Config", "Validate", "subject validation")
	}
	if c.Policy == MovingWindow && c.Window <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("moving window policy requires a positive window, got %v", c.Window),
			"Config", "Validate", "window validation")
	}
	if c.Policy == MovingWindow && c.Scope == ScopeDelta {
		return errors.WrapInvalid(
			fmt.Errorf("delta scope applies to full history only"),
			"Config", "Validate", "scope validation")
	}
	return nil
}
