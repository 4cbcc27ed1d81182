// Package producer publishes partial updates for one source on an interval.
//
// A Producer draws objects from a Generator, stamps them with a monotonic
// sequence and event time, and publishes them as Update envelopes on its
// subject. It is the load-generation half of the pipeline: the end-to-end
// tests run two of them against a merger tree, and the binary uses them for
// demo and soak traffic.
package producer
