package mergeable

import (
	"encoding/json"
	"fmt"

	"github.com/c360/mergestream/errors"
)

// KindHistogram is the registry kind string for Histogram.
const KindHistogram = "histogram"

// Histogram is a one-dimensional histogram with fixed uniform binning over
// [Min, Max). Counts holds Bins+2 slots: slot 0 collects underflow (x < Min),
// slots 1..Bins are the in-range bins, and slot Bins+1 collects overflow
// (x >= Max). Entries counts every fill, in-range or not.
//
// The underflow/overflow-inclusive layout means a 10-bin histogram carries 12
// count values on the wire; Validate enforces the length instead of silently
// truncating or wrapping.
type Histogram struct {
	Name    string    `json:"name"`
	Bins    int       `json:"bins"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Counts  []float64 `json:"counts"`
	Entries float64   `json:"entries"`
}

// NewHistogram creates an empty histogram with the given binning.
func NewHistogram(name string, bins int, min, max float64) (*Histogram, error) {
	h := &Histogram{
		Name:   name,
		Bins:   bins,
		Min:    min,
		Max:    max,
		Counts: make([]float64, bins+2),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Kind returns the registry kind string.
func (h *Histogram) Kind() string { return KindHistogram }

// Fill adds one entry at x with weight 1.
func (h *Histogram) Fill(x float64) {
	h.FillN(x, 1)
}

// FillN adds an entry at x with the given weight.
func (h *Histogram) FillN(x, weight float64) {
	h.Counts[h.binIndex(x)] += weight
	h.Entries += weight
}

// binIndex maps a value to its Counts slot, including under/overflow slots.
func (h *Histogram) binIndex(x float64) int {
	if x < h.Min {
		return 0
	}
	if x >= h.Max {
		return h.Bins + 1
	}
	idx := 1 + int(float64(h.Bins)*(x-h.Min)/(h.Max-h.Min))
	if idx > h.Bins {
		// Guards the float edge case where x is just below Max but the
		// scaled index rounds to Bins+1.
		idx = h.Bins
	}
	return idx
}

// SetContents replaces the count slots wholesale. The slice must use the
// underflow+bins+overflow layout (length Bins+2). Entries is recomputed as
// the sum of all slots.
func (h *Histogram) SetContents(contents []float64) error {
	if len(contents) != h.Bins+2 {
		return errors.WrapInvalid(
			fmt.Errorf("contents length %d, want %d (underflow + %d bins + overflow)",
				len(contents), h.Bins+2, h.Bins),
			"Histogram", "SetContents", "contents layout validation")
	}
	h.Counts = make([]float64, len(contents))
	copy(h.Counts, contents)
	h.Entries = 0
	for _, c := range contents {
		h.Entries += c
	}
	return nil
}

// Merge adds other's counts and entries elementwise. Rejected unless other is
// a Histogram with identical binning; the receiver is unchanged on error.
func (h *Histogram) Merge(other Object) error {
	o, ok := other.(*Histogram)
	if !ok {
		return errors.WrapFatal(
			fmt.Errorf("%w: histogram vs %s", errors.ErrKindMismatch, other.Kind()),
			"Histogram", "Merge", "kind check")
	}
	if o.Bins != h.Bins || o.Min != h.Min || o.Max != h.Max {
		return errors.WrapFatal(
			fmt.Errorf("%w: binning (%d,[%g,%g)) vs (%d,[%g,%g))",
				errors.ErrKindMismatch, h.Bins, h.Min, h.Max, o.Bins, o.Min, o.Max),
			"Histogram", "Merge", "binning check")
	}
	for i := range h.Counts {
		h.Counts[i] += o.Counts[i]
	}
	h.Entries += o.Entries
	return nil
}

// Clone returns a deep copy.
func (h *Histogram) Clone() Object {
	counts := make([]float64, len(h.Counts))
	copy(counts, h.Counts)
	cp := *h
	cp.Counts = counts
	return &cp
}

// TotalEntries implements the Countable capability.
func (h *Histogram) TotalEntries() float64 { return h.Entries }

// Validate checks structural consistency: sane binning and a counts slice
// matching the declared bin count plus under/overflow slots.
func (h *Histogram) Validate() error {
	if h.Bins < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("bins must be >= 1, got %d", h.Bins),
			"Histogram", "Validate", "binning validation")
	}
	if h.Min >= h.Max {
		return errors.WrapInvalid(
			fmt.Errorf("min %g must be < max %g", h.Min, h.Max),
			"Histogram", "Validate", "domain validation")
	}
	if len(h.Counts) != h.Bins+2 {
		return errors.WrapInvalid(
			fmt.Errorf("counts length %d, want %d", len(h.Counts), h.Bins+2),
			"Histogram", "Validate", "contents layout validation")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h *Histogram) MarshalJSON() ([]byte, error) {
	type alias Histogram
	return json.Marshal((*alias)(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	type alias Histogram
	return json.Unmarshal(data, (*alias)(h))
}
