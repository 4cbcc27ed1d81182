package health

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorUpdateNormalizesStatus(t *testing.T) {
	m := NewMonitor()
	m.Update("merger-l1-0", Status{Component: "stale-name", Status: "healthy"})

	got, ok := m.Get("merger-l1-0")
	require.True(t, ok)
	assert.Equal(t, "merger-l1-0", got.Component, "status takes the tracked name")
	assert.False(t, got.Timestamp.IsZero(), "zero timestamp is stamped on update")
	assert.Equal(t, 1, m.Count())
}

func TestMonitorGetMissing(t *testing.T) {
	m := NewMonitor()
	_, ok := m.Get("merger-l9-9")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestMonitorGetAllReturnsCopy(t *testing.T) {
	m := NewMonitor()
	m.Update("merger-l1-0", NewHealthy("merger-l1-0", "accumulating"))
	m.Update("checker", NewHealthy("checker", "validating"))

	all := m.GetAll()
	require.Len(t, all, 2)

	all["merger-l1-0"] = Status{Component: "mutated"}
	got, _ := m.Get("merger-l1-0")
	assert.Equal(t, "merger-l1-0", got.Component, "caller mutations stay outside the monitor")
}

func TestMonitorAggregateHealth(t *testing.T) {
	m := NewMonitor()
	agg := m.AggregateHealth("engine")
	assert.True(t, agg.IsHealthy(), "empty monitor aggregates healthy")
	assert.Equal(t, "engine", agg.Component)

	m.Update("merger-l1-0", NewHealthy("merger-l1-0", "accumulating"))
	m.Update("merger-l1-1", NewHealthy("merger-l1-1", "accumulating"))
	assert.True(t, m.AggregateHealth("engine").IsHealthy())

	m.Update("merger-l1-1", NewDegraded("merger-l1-1", "stale source"))
	assert.True(t, m.AggregateHealth("engine").IsDegraded())

	m.Update("merger-l1-0", NewUnhealthy("merger-l1-0", "terminated"))
	assert.True(t, m.AggregateHealth("engine").IsUnhealthy(),
		"one unhealthy component dominates degraded")
}

func TestMonitorLatestStatusWins(t *testing.T) {
	m := NewMonitor()
	m.Update("checker", NewUnhealthy("checker", "tolerance exceeded"))
	m.Update("checker", NewHealthy("checker", "recovered"))

	got, ok := m.Get("checker")
	require.True(t, ok)
	assert.True(t, got.IsHealthy())
	assert.Equal(t, 1, m.Count())
}

func TestMonitorConcurrentAccess(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("merger-l1-%d", i%4)
			for j := 0; j < 100; j++ {
				switch j % 3 {
				case 0:
					m.Update(name, NewHealthy(name, "accumulating"))
				case 1:
					_, _ = m.Get(name)
				case 2:
					_ = m.AggregateHealth("engine")
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, m.Count())
	assert.True(t, m.AggregateHealth("engine").IsHealthy())
}
