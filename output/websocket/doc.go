// Package websocket provides the LiveView monitoring surface: a WebSocket
// server that relays merged snapshots to connected clients as JSON summary
// frames.
//
// The LiveView subscribes to one or more merged-snapshot subjects, decodes
// every snapshot through the mergeable registry, and broadcasts a Summary
// frame (envelope metadata, countable total when available, raw payload) to
// each client. Delivery is best-effort: each client has a bounded send
// queue and frames are dropped for consumers that fall behind, so one slow
// viewer can never back-pressure the hub or the merge pipeline. Snapshots
// are cumulative, so a dropped frame is fully superseded by the next one.
//
// Typical wiring:
//
//	lv, err := websocket.New(websocket.Deps{
//		Config: websocket.Config{
//			Addr:     ":8081",
//			Subjects: []string{top.Root().OutputSubject},
//		},
//		Bus:      client,
//		Registry: mergeable.NewDefaultRegistry(),
//	})
//
// The LiveView implements component.LifecycleComponent and is started and
// stopped by the engine alongside the merger nodes.
package websocket
