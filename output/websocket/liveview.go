package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/errors"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/message"
	"github.com/c360/mergestream/metric"
	"github.com/c360/mergestream/pkg/timestamp"
)

// Config configures a LiveView surface.
type Config struct {
	// Name identifies the instance in metadata and metrics.
	Name string
	// Addr is the listen address, e.g. ":8081". Tests may use ":0".
	Addr string
	// Path is the WebSocket endpoint path.
	Path string
	// Subjects are the merged-snapshot subjects to relay.
	Subjects []string
	// SendBuffer is the per-client frame queue depth.
	SendBuffer int
	// PingInterval is the keepalive cadence to idle clients.
	PingInterval time.Duration
	// WriteTimeout bounds a single frame write to one client.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "liveview"
	}
	if c.Path == "" {
		c.Path = "/live"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Validate rejects structurally broken LiveView configurations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing listen address", errors.ErrInvalidConfig),
			"LiveView", "Validate", "address validation")
	}
	if len(c.Subjects) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: no snapshot subjects configured", errors.ErrInvalidConfig),
			"LiveView", "Validate", "subject validation")
	}
	return nil
}

// Deps holds runtime dependencies for a LiveView.
type Deps struct {
	Config          Config
	Bus             component.Bus
	Registry        *mergeable.Registry
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Summary is the JSON frame broadcast to clients for every merged snapshot.
// Total is set only when the decoded object reports a countable total.
type Summary struct {
	SnapshotID          string          `json:"snapshot_id"`
	NodeID              string          `json:"node_id"`
	Kind                string          `json:"kind"`
	Sequence            uint64          `json:"sequence"`
	ContributingSources uint32          `json:"contributing_sources"`
	FirstTimestamp      int64           `json:"first_timestamp,omitempty"`
	LastTimestamp       int64           `json:"last_timestamp,omitempty"`
	WindowStart         int64           `json:"window_start,omitempty"`
	WindowEnd           int64           `json:"window_end,omitempty"`
	Total               *float64        `json:"total,omitempty"`
	Payload             json.RawMessage `json:"payload"`
	ReceivedAt          int64           `json:"received_at"`
}

// LiveView relays merged snapshots from the bus to WebSocket clients as JSON
// summary frames. It is a read-only monitoring surface: it carries no merge
// state and dropping frames for a slow client loses nothing the next
// snapshot does not replace.
type LiveView struct {
	cfg      Config
	bus      component.Bus
	registry *mergeable.Registry
	logger   *slog.Logger

	hub      *hub
	upgrader websocket.Upgrader
	server   *http.Server
	boundMu  sync.Mutex
	bound    net.Addr

	running   atomic.Bool
	shutdown  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	startTime time.Time

	received  atomic.Int64
	broadcast atomic.Int64
	dropped   atomic.Int64
	errCount  atomic.Int64

	metrics *liveViewMetrics
}

var (
	_ component.Discoverable       = (*LiveView)(nil)
	_ component.LifecycleComponent = (*LiveView)(nil)
)

// New creates a LiveView.
func New(deps Deps) (*LiveView, error) {
	cfg := deps.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil bus"),
			cfg.Name, "New", "dependency validation")
	}
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil mergeable registry"),
			cfg.Name, "New", "dependency validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", cfg.Name)
	}

	lv := &LiveView{
		cfg:      cfg,
		bus:      deps.Bus,
		registry: deps.Registry,
		logger:   logger,
		hub:      newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Monitoring endpoint: origin policy is enforced upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: newLiveViewMetrics(deps.MetricsRegistry, cfg.Name),
	}

	lv.hub.onDrop = func() {
		lv.dropped.Add(1)
		if lv.metrics != nil {
			lv.metrics.framesDropped.Inc()
		}
	}
	lv.hub.onCount = func(n int) {
		if lv.metrics != nil {
			lv.metrics.clientsConnected.Set(float64(n))
		}
	}

	return lv, nil
}

// Addr returns the actual bound listen address, useful when the configured
// address carried port 0. Nil until Start succeeds.
func (lv *LiveView) Addr() net.Addr {
	lv.boundMu.Lock()
	defer lv.boundMu.Unlock()
	return lv.bound
}

// Meta returns the component metadata.
func (lv *LiveView) Meta() component.Metadata {
	return component.Metadata{
		Name:        lv.cfg.Name,
		Type:        "observer",
		Description: fmt.Sprintf("WebSocket live view on %s%s relaying %v", lv.cfg.Addr, lv.cfg.Path, lv.cfg.Subjects),
		Version:     "1.0.0",
	}
}

// InputPorts returns the snapshot subjects being relayed.
func (lv *LiveView) InputPorts() []component.Port {
	ports := make([]component.Port, len(lv.cfg.Subjects))
	for i, subject := range lv.cfg.Subjects {
		ports[i] = component.Port{
			Name:        fmt.Sprintf("snapshots_%d", i),
			Direction:   component.DirectionInput,
			Subject:     subject,
			Required:    true,
			Description: "Merged snapshot stream",
		}
	}
	return ports
}

// OutputPorts returns the WebSocket endpoint.
func (lv *LiveView) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "websocket",
			Direction:   component.DirectionOutput,
			Subject:     lv.cfg.Addr + lv.cfg.Path,
			Required:    false,
			Description: "WebSocket endpoint broadcasting snapshot summaries",
		},
	}
}

// Health returns the current health status.
func (lv *LiveView) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    lv.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(lv.errCount.Load()),
		Uptime:     time.Since(lv.startTime),
	}
}

// DataFlow returns the current data flow metrics.
func (lv *LiveView) DataFlow() component.FlowMetrics {
	sent := lv.broadcast.Load()
	var rate, errorRate float64
	if uptime := time.Since(lv.startTime).Seconds(); uptime > 0 {
		rate = float64(sent) / uptime
	}
	if received := lv.received.Load(); received > 0 {
		errorRate = float64(lv.errCount.Load()) / float64(received)
	}
	return component.FlowMetrics{
		MessagesPerSecond: rate,
		ErrorRate:         errorRate,
	}
}

// Initialize validates the configuration.
func (lv *LiveView) Initialize() error {
	return lv.cfg.Validate()
}

// Start binds the listener, subscribes to the snapshot subjects and launches
// the hub and HTTP server. Idempotent while running.
func (lv *LiveView) Start(ctx context.Context) error {
	if lv.running.Load() {
		return nil
	}

	listener, err := net.Listen("tcp", lv.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, lv.cfg.Name, "Start", "bind listen address")
	}
	lv.boundMu.Lock()
	lv.bound = listener.Addr()
	lv.boundMu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(lv.cfg.Path, lv.handleWebSocket)
	lv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	for _, subject := range lv.cfg.Subjects {
		if err := lv.bus.Subscribe(ctx, subject, lv.handleSnapshot); err != nil {
			_ = listener.Close()
			return errors.Wrap(err, lv.cfg.Name, "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	lv.shutdown = make(chan struct{})
	lv.stopOnce = sync.Once{}
	lv.running.Store(true)
	lv.startTime = time.Now()

	lv.wg.Add(2)
	go func() {
		defer lv.wg.Done()
		lv.hub.run(lv.shutdown)
	}()
	go func() {
		defer lv.wg.Done()
		if err := lv.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			lv.errCount.Add(1)
			lv.logger.Error("Live view server stopped", "error", err)
		}
	}()

	lv.logger.Info("Live view started",
		"addr", listener.Addr().String(),
		"path", lv.cfg.Path,
		"subjects", lv.cfg.Subjects)
	return nil
}

// Stop shuts the HTTP server down and closes every client.
func (lv *LiveView) Stop(timeout time.Duration) error {
	if !lv.running.Load() {
		return nil
	}
	lv.running.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := lv.server.Shutdown(shutdownCtx); err != nil {
		lv.logger.Warn("Live view server shutdown incomplete", "error", err)
	}

	lv.stopOnce.Do(func() { close(lv.shutdown) })

	done := make(chan struct{})
	go func() {
		lv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout),
			lv.cfg.Name, "Stop", "graceful shutdown")
	}
}

// handleSnapshot decodes one snapshot off the bus and hands the summary frame
// to the hub. Runs on the bus delivery goroutine, so it never blocks: a
// saturated hub queue drops the frame.
func (lv *LiveView) handleSnapshot(_ context.Context, data []byte) {
	if !lv.running.Load() {
		return
	}
	lv.received.Add(1)
	if lv.metrics != nil {
		lv.metrics.snapshotsReceived.Inc()
	}

	frame, err := lv.summarize(data)
	if err != nil {
		lv.errCount.Add(1)
		if lv.metrics != nil {
			lv.metrics.decodeFailures.Inc()
		}
		lv.logger.Warn("Snapshot summary failed", "error", err)
		return
	}

	if !lv.hub.offer(frame) {
		lv.dropped.Add(1)
		if lv.metrics != nil {
			lv.metrics.framesDropped.Inc()
		}
		return
	}

	lv.broadcast.Add(1)
	if lv.metrics != nil {
		lv.metrics.framesBroadcast.Inc()
		lv.metrics.frameSizeBytes.Observe(float64(len(frame)))
	}
}

// summarize builds the broadcast frame for one encoded snapshot.
func (lv *LiveView) summarize(data []byte) ([]byte, error) {
	snap, err := message.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		SnapshotID:          snap.SnapshotID,
		NodeID:              snap.NodeID,
		Kind:                snap.Kind,
		Sequence:            snap.Sequence,
		ContributingSources: snap.ContributingSources,
		FirstTimestamp:      snap.FirstTimestamp,
		LastTimestamp:       snap.LastTimestamp,
		WindowStart:         snap.WindowStart,
		WindowEnd:           snap.WindowEnd,
		Payload:             snap.Payload,
		ReceivedAt:          timestamp.Now(),
	}

	// Decode through the registry both to validate the payload and to
	// surface a countable total when the kind supports it.
	obj, err := lv.registry.Decode(snap.Kind, snap.Payload)
	if err != nil {
		return nil, err
	}
	if countable, ok := obj.(mergeable.Countable); ok {
		total := countable.TotalEntries()
		summary.Total = &total
	}

	frame, err := json.Marshal(summary)
	if err != nil {
		return nil, errors.WrapInvalid(err, lv.cfg.Name, "summarize", "summary marshal")
	}
	return frame, nil
}

// handleWebSocket upgrades one HTTP request and runs the client pumps.
func (lv *LiveView) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := lv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lv.errCount.Add(1)
		lv.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if lv.metrics != nil {
		lv.metrics.connectionsTotal.Inc()
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, lv.cfg.SendBuffer),
	}

	select {
	case lv.hub.register <- c:
	case <-lv.shutdown:
		_ = conn.Close()
		return
	}

	lv.wg.Add(2)
	go func() {
		defer lv.wg.Done()
		lv.writePump(c)
	}()
	go func() {
		defer lv.wg.Done()
		lv.readPump(c)
	}()
}

// writePump drains the client's send queue onto the connection and keeps the
// connection alive with pings. Exits when the queue closes or a write fails.
func (lv *LiveView) writePump(c *client) {
	ticker := time.NewTicker(lv.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(lv.cfg.WriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(lv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				lv.deregister(c)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(lv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				lv.deregister(c)
				return
			}
		}
	}
}

// readPump consumes control traffic so pong handlers fire and client-initiated
// close frames are observed. Data frames from clients are discarded.
func (lv *LiveView) readPump(c *client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			lv.deregister(c)
			return
		}
	}
}

// deregister hands the client back to the hub unless shutdown already did.
func (lv *LiveView) deregister(c *client) {
	select {
	case lv.hub.unregister <- c:
	case <-lv.shutdown:
	}
}
