package component

import (
	"context"
	"log/slog"

	"github.com/c360/mergestream/metric"
)

// Bus is the one-directional message channel components communicate through.
// The production implementation is natsclient.Client; tests use the
// in-memory testutil.MockBus. Components depend only on this narrow surface
// so the merger core never touches broker specifics.
//
// Publish must not block on slow consumers; Subscribe handlers must return
// quickly (merger nodes only enqueue in them).
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// PlatformMeta provides platform identity to components.
type PlatformMeta struct {
	Org      string `json:"org"`      // Organization namespace
	Platform string `json:"platform"` // Deployment instance identifier
}

// Dependencies provides all external dependencies needed by components.
// It is constructed once in main and passed by reference; there is no
// process-wide mutable state behind it.
type Dependencies struct {
	Bus             Bus                     // Message bus for inter-component delivery
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Platform        PlatformMeta            // Platform identity (organization and instance)
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
