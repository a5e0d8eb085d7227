package edit

import "fmt"

// Range represents a byte range in a text.
// Start is inclusive, End is exclusive: [Start, End).
type Range struct {
	Start int // Inclusive start offset
	End   int // Exclusive end offset
}

// NewRange creates a new Range from start and end offsets.
func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Len returns the length of the range in bytes.
func (r Range) Len() int {
	return r.End - r.Start
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// IsValid returns true if the range is valid (0 <= Start <= End).
func (r Range) IsValid() bool {
	return r.Start >= 0 && r.Start <= r.End
}

// Contains returns true if the given offset is within the range.
// An empty range contains only its own position.
func (r Range) Contains(offset int) bool {
	if r.IsEmpty() {
		return offset == r.Start
	}
	return offset >= r.Start && offset <= r.End
}

// ContainsStrict returns true if the offset is strictly inside the range.
func (r Range) ContainsStrict(offset int) bool {
	return offset > r.Start && offset < r.End
}

// Overlaps returns true if this range overlaps another range.
// Touching ranges ([0,2) and [2,4)) do not overlap. An empty range
// overlaps a non-empty range only when strictly inside it.
func (r Range) Overlaps(other Range) bool {
	if r.IsEmpty() && other.IsEmpty() {
		return false
	}
	if r.IsEmpty() {
		return other.ContainsStrict(r.Start)
	}
	if other.IsEmpty() {
		return r.ContainsStrict(other.Start)
	}
	return r.Start < other.End && other.Start < r.End
}

// Shift returns a new range shifted by the given delta.
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}
