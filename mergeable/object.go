package mergeable

import "encoding/json"

// Object is the capability every mergeable payload type must satisfy.
//
// Merge folds another partial aggregate of the same kind into the receiver.
// It must be associative and commutative: merging the same set of objects in
// any order and grouping yields the same result, byte-identical once
// serialized. Merge operates on two already-partially-merged objects and
// never needs the update history behind them.
//
// Example implementation:
//
//	type Tally struct {
//	    Total float64 `json:"total"`
//	}
//
//	func (t *Tally) Kind() string { return "tally" }
//
//	func (t *Tally) Merge(other Object) error {
//	    o, ok := other.(*Tally)
//	    if !ok {
//	        return errors.WrapFatal(errors.ErrKindMismatch, "Tally", "Merge", "type check")
//	    }
//	    t.Total += o.Total
//	    return nil
//	}
type Object interface {
	// Kind returns the type identity used to reject incompatible merges.
	Kind() string

	// Merge folds other into the receiver. Returns errors.ErrKindMismatch
	// (wrapped) when other is of a different kind or structurally
	// incompatible; the receiver is left unchanged on error.
	Merge(other Object) error

	// Clone returns a deep copy that shares no mutable state with the
	// receiver.
	Clone() Object

	// Validate checks structural consistency, e.g. that a histogram's
	// contents slice matches its declared binning.
	Validate() error

	// Deterministic JSON serialization for wire transport. The same
	// object state must always produce the same bytes.
	json.Marshaler
	json.Unmarshaler
}

// Countable is an optional capability for objects that can report a total
// entry count. The checker's default predicate uses it to compare observed
// totals against expected totals.
type Countable interface {
	TotalEntries() float64
}
