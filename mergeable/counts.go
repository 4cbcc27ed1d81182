package mergeable

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/c360/mergestream/errors"
)

// KindCounts is the registry kind string for Counts.
const KindCounts = "counts"

// Counts is a string-keyed additive table, a stand-in for calibration-style
// tables where each producer contributes partial per-key tallies. Merge is
// key-wise addition, so it is associative and commutative by construction.
//
// Serialization is deterministic: encoding/json emits map keys in sorted
// order, so the same table always produces the same bytes.
type Counts struct {
	Values map[string]float64 `json:"values"`
}

// NewCounts creates an empty table.
func NewCounts() *Counts {
	return &Counts{Values: make(map[string]float64)}
}

// Kind returns the registry kind string.
func (c *Counts) Kind() string { return KindCounts }

// Add adds weight to the tally for key.
func (c *Counts) Add(key string, weight float64) {
	if c.Values == nil {
		c.Values = make(map[string]float64)
	}
	c.Values[key] += weight
}

// Merge adds other's tallies key-wise into the receiver.
func (c *Counts) Merge(other Object) error {
	o, ok := other.(*Counts)
	if !ok {
		return errors.WrapFatal(
			fmt.Errorf("%w: counts vs %s", errors.ErrKindMismatch, other.Kind()),
			"Counts", "Merge", "kind check")
	}
	if c.Values == nil {
		c.Values = make(map[string]float64, len(o.Values))
	}
	for k, v := range o.Values {
		c.Values[k] += v
	}
	return nil
}

// Clone returns a deep copy.
func (c *Counts) Clone() Object {
	values := make(map[string]float64, len(c.Values))
	for k, v := range c.Values {
		values[k] = v
	}
	return &Counts{Values: values}
}

// TotalEntries implements the Countable capability as the sum of all tallies.
func (c *Counts) TotalEntries() float64 {
	var total float64
	for _, v := range c.Values {
		total += v
	}
	return total
}

// Validate rejects empty keys and non-finite tallies.
func (c *Counts) Validate() error {
	for k, v := range c.Values {
		if k == "" {
			return errors.WrapInvalid(
				fmt.Errorf("empty key"),
				"Counts", "Validate", "key validation")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.WrapInvalid(
				fmt.Errorf("non-finite value for key %q", k),
				"Counts", "Validate", "value validation")
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c *Counts) MarshalJSON() ([]byte, error) {
	type alias Counts
	return json.Marshal((*alias)(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Counts) UnmarshalJSON(data []byte) error {
	type alias Counts
	return json.Unmarshal(data, (*alias)(c))
}
