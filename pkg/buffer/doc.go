// Package buffer provides generic bounded buffers for the merge pipeline.
//
// # Overview
//
// Every merger node places a circular buffer between its broker subscription
// and its processing loop. The subscription callback writes raw payload bytes
// and returns; the single processing goroutine drains the buffer in arrival
// order. This keeps upstream publishers decoupled from merge latency.
//
// # Overflow Policies
//
//   - DropOldest: evict the stalest buffered item (inbound update queues)
//   - DropNewest: refuse the incoming item (live-view client frame queues)
//
// There is no blocking policy. A full buffer always sheds load immediately,
// which is the backpressure contract of the pipeline: producers are never
// stalled by a slow merger.
//
// # Usage
//
//	buf, err := buffer.NewCircularBuffer[[]byte](1024,
//	    buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//	    buffer.WithDropCallback[[]byte](func([]byte) { dropped.Inc() }),
//	    buffer.WithMetrics[[]byte](registry, "merger-l1-0"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer buf.Close()
//
//	_ = buf.Write(data)          // from subscription callback
//	batch := buf.ReadBatch(64)   // from processing loop
//
// # Observability
//
// Statistics (writes, reads, drops, size high-water mark, throughput) are
// always collected and available via Stats(). When a metrics registry is
// supplied with WithMetrics, the same counters are exported as Prometheus
// metrics labeled with the owning component.
//
// # Thread Safety
//
// All operations are safe for concurrent use by multiple goroutines.
package buffer
