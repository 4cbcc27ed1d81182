package component

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateInitialized, "initialized"},
		{StateStarted, "started"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

// stubComponent implements Discoverable but not LifecycleComponent.
type stubComponent struct{}

func (s *stubComponent) Meta() Metadata        { return Metadata{Name: "stub", Type: "observer"} }
func (s *stubComponent) InputPorts() []Port    { return nil }
func (s *stubComponent) OutputPorts() []Port   { return nil }
func (s *stubComponent) Health() HealthStatus  { return HealthStatus{Healthy: true} }
func (s *stubComponent) DataFlow() FlowMetrics { return FlowMetrics{} }

// stubLifecycle adds lifecycle methods on top of stubComponent.
type stubLifecycle struct{ stubComponent }

func (s *stubLifecycle) Initialize() error             { return nil }
func (s *stubLifecycle) Start(_ context.Context) error { return nil }
func (s *stubLifecycle) Stop(_ time.Duration) error    { return nil }

func TestLifecycleDetection(t *testing.T) {
	assert.False(t, IsLifecycleComponent(&stubComponent{}))
	assert.True(t, IsLifecycleComponent(&stubLifecycle{}))

	lc, ok := AsLifecycleComponent(&stubLifecycle{})
	assert.True(t, ok)
	assert.NotNil(t, lc)

	_, ok = AsLifecycleComponent(&stubComponent{})
	assert.False(t, ok)
}

func TestDependenciesGetLogger(t *testing.T) {
	var d Dependencies
	assert.NotNil(t, d.GetLogger(), "nil logger falls back to slog.Default")

	withName := d.GetLoggerWithComponent("merger-l1-0")
	assert.NotNil(t, withName)
}
