// Package checker validates merged snapshot streams.
//
// A Checker subscribes to one merged-snapshot subject (typically the root
// node's output), decodes each snapshot through the mergeable registry and
// evaluates a predicate against the decoded object. The default predicate
// compares the object's total entry count to an expected value within an
// absolute tolerance; callers can supply any predicate. Checkers are pure
// observers: they never publish and never mutate merger state.
package checker
