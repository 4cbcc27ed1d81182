// Package errors provides standardized error handling patterns for mergestream components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the merge pipeline: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification drives the pipeline's failure policy. A malformed update is
// Invalid: the node drops it, logs it, and keeps merging. A broker hiccup is
// Transient: delivery is retried with backoff. A kind mismatch is Fatal to the
// node that sees it: its input stream is structurally wrong, so it terminates
// and reports upward while sibling nodes keep running.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if _, ok := registry.Lookup(kind); !ok {
//	    return errors.ErrUnknownKind
//	}
//
// Wrap errors with context for debugging:
//
//	if err := obj.Merge(other); err != nil {
//	    return errors.WrapFatal(err, "MergerNode", "processUpdate", "object merge")
//	}
//
// Check classification for handling decisions:
//
//	if err := node.processUpdate(raw); err != nil {
//	    switch {
//	    case errors.IsInvalid(err):
//	        // drop the update, count it, continue
//	    case errors.IsFatal(err):
//	        // terminate this node, report upward
//	    default:
//	        // transient: retry with backoff
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and operational monitoring. The
// Wrap family of functions applies the pattern while preserving error
// classification through the chain:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // retryable
//	errors.WrapInvalid(err, "Component", "Method", "action")    // validation
//	errors.WrapFatal(err, "Component", "Method", "action")      // unrecoverable
//
// # Pipeline Error Taxonomy
//
//   - ErrDeserialization: update bytes could not be decoded (Invalid; drop and continue)
//   - ErrKindMismatch: update kind conflicts with the node's bound kind (Fatal to the node)
//   - ErrUnknownKind: kind not present in the mergeable registry (Invalid)
//   - ErrUnknownSource: update from outside the node's fixed upstream set (Invalid; drop)
//   - ErrSourceTimeout: a source missed its expected update interval (warning, not returned)
//   - ErrTopologyConfig: rejected topology parameters (Invalid; surfaces before any node runs)
//
// # Retry Integration
//
// RetryConfig bridges classification to the retry package: ShouldRetry gates
// on IsTransient, and ToRetryConfig converts to a retry.Config for use with
// retry.Do.
package errors
