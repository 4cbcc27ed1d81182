package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/merger"
)

// PlatformConfig identifies the running instance.
type PlatformConfig struct {
	Org         string `json:"org" yaml:"org"`
	ID          string `json:"id" yaml:"id"`
	Environment string `json:"environment" yaml:"environment"` // development, staging, production
}

// NATSConfig holds broker connection settings.
type NATSConfig struct {
	URL  string `json:"url" yaml:"url"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// MergeConfig describes the merger topology to run.
type MergeConfig struct {
	Producers           []string      `json:"producers" yaml:"producers"`
	FanIn               int           `json:"fan_in" yaml:"fan_in"`
	Kind                string        `json:"kind" yaml:"kind"`
	Policy              string        `json:"policy,omitempty" yaml:"policy,omitempty"` // full_history (default) or moving_window
	Window              time.Duration `json:"window,omitempty" yaml:"window,omitempty"`
	PublishInterval     time.Duration `json:"publish_interval,omitempty" yaml:"publish_interval,omitempty"`
	// LayerIntervals overrides PublishInterval per layer; index 0 is layer 1.
	LayerIntervals      []time.Duration `json:"layer_intervals,omitempty" yaml:"layer_intervals,omitempty"`
	SubjectPrefix       string          `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
	PublishOnUpdateOnly bool            `json:"publish_on_update_only,omitempty" yaml:"publish_on_update_only,omitempty"`
	QueueCapacity       int             `json:"queue_capacity,omitempty" yaml:"queue_capacity,omitempty"`
	SourceTimeout       time.Duration   `json:"source_timeout,omitempty" yaml:"source_timeout,omitempty"`
}

// CheckerConfig enables validation of the root output stream.
type CheckerConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	ExpectedTotal float64 `json:"expected_total,omitempty" yaml:"expected_total,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// LiveViewConfig enables the WebSocket snapshot broadcast surface.
type LiveViewConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Addr     string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	Subjects []string `json:"subjects,omitempty" yaml:"subjects,omitempty"` // defaults to the root output
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the complete application configuration.
type Config struct {
	Platform PlatformConfig `json:"platform" yaml:"platform"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
	Merge    MergeConfig    `json:"merge" yaml:"merge"`
	Checker  CheckerConfig  `json:"checker,omitempty" yaml:"checker,omitempty"`
	LiveView LiveViewConfig `json:"live_view,omitempty" yaml:"live_view,omitempty"`
	Metrics  MetricsConfig  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// DefaultConfig returns a configuration with sensible development defaults.
// The producer set is deliberately empty: it must come from the operator.
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			Org:         "c360",
			ID:          "mergestream-dev",
			Environment: "development",
		},
		NATS: NATSConfig{
			URL:  "nats://localhost:4222",
			Name: "mergestream",
		},
		Merge: MergeConfig{
			FanIn:           4,
			Kind:            "histogram",
			Policy:          "full_history",
			PublishInterval: time.Second,
			QueueCapacity:   1024,
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}

// Load reads a configuration file, decoding by extension: .json for JSON,
// .yaml/.yml for YAML. The result starts from DefaultConfig so absent fields
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse JSON config")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse YAML config")
		}
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unsupported config extension %q", filepath.Ext(path)),
			"Config", "Load", "detect config format")
	}

	return cfg, nil
}

// Validate enforces the same structural rules the topology builder applies,
// plus value sanity, so a bad file fails before anything runs.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing platform id"),
			"Config", "Validate", "platform validation")
	}
	switch c.Platform.Environment {
	case "development", "staging", "production":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown environment %q", c.Platform.Environment),
			"Config", "Validate", "platform validation")
	}

	if c.NATS.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing NATS url"),
			"Config", "Validate", "nats validation")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return errors.WrapInvalid(
			fmt.Errorf("NATS url %q must use nats:// or tls://", c.NATS.URL),
			"Config", "Validate", "nats validation")
	}

	if len(c.Merge.Producers) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: no producers configured", errors.ErrTopologyConfig),
			"Config", "Validate", "merge validation")
	}
	if c.Merge.FanIn < 2 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: fan-in must be at least 2, got %d", errors.ErrTopologyConfig, c.Merge.FanIn),
			"Config", "Validate", "merge validation")
	}
	if c.Merge.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing mergeable kind"),
			"Config", "Validate", "merge validation")
	}
	policy, err := merger.ParsePolicy(c.Merge.Policy)
	if err != nil {
		return err
	}
	if policy == merger.MovingWindow && c.Merge.Window <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("moving window policy requires a positive window"),
			"Config", "Validate", "merge validation")
	}
	if c.Merge.PublishInterval < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative publish interval %v", c.Merge.PublishInterval),
			"Config", "Validate", "merge validation")
	}
	for li, interval := range c.Merge.LayerIntervals {
		if interval < 0 {
			return errors.WrapInvalid(
				fmt.Errorf("negative publish interval %v for layer %d", interval, li+1),
				"Config", "Validate", "merge validation")
		}
	}

	if c.Checker.Enabled && c.Checker.Tolerance < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative checker tolerance %v", c.Checker.Tolerance),
			"Config", "Validate", "checker validation")
	}

	if c.LiveView.Enabled && c.LiveView.Addr == "" {
		return errors.WrapInvalid(
			fmt.Errorf("live view enabled without an address"),
			"Config", "Validate", "live view validation")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("metrics port %d out of range", c.Metrics.Port),
			"Config", "Validate", "metrics validation")
	}

	return nil
}

// Policy returns the parsed merge policy. Call Validate first.
func (c *Config) Policy() merger.Policy {
	policy, _ := merger.ParsePolicy(c.Merge.Policy)
	return policy
}
