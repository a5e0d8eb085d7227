package edit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOverlap is returned when replacements are out of order or overlap.
var ErrOverlap = errors.New("replacements must be ordered and non-overlapping")

// ErrOutOfBounds is returned when an edit does not fit the text it is
// applied to.
var ErrOutOfBounds = errors.New("replacement range exceeds text bounds")

// Replacement is a single (range -> text) operation.
type Replacement struct {
	Range Range
	Text  string
}

// NewReplacement creates a replacement of the given range with text.
func NewReplacement(start, end int, text string) Replacement {
	return Replacement{Range: NewRange(start, end), Text: text}
}

// Delta returns the length change this replacement causes.
func (r Replacement) Delta() int {
	return len(r.Text) - r.Range.Len()
}

// IsNoop returns true if the replacement changes nothing structurally.
func (r Replacement) IsNoop() bool {
	return r.Range.IsEmpty() && r.Text == ""
}

// String returns a human-readable representation.
func (r Replacement) String() string {
	return fmt.Sprintf("%s -> %q", r.Range, r.Text)
}

// Edit is an ordered set of non-overlapping replacements, all anchored to
// the same text snapshot. The zero value is the empty edit.
type Edit struct {
	repls []Replacement
}

// Empty returns the empty edit.
func Empty() Edit {
	return Edit{}
}

// Single creates an edit with one replacement.
func Single(start, end int, text string) Edit {
	return Edit{repls: []Replacement{NewReplacement(start, end, text)}}
}

// New creates an edit from replacements, which must be sorted by start
// offset and non-overlapping. No-op replacements are dropped.
func New(repls ...Replacement) (Edit, error) {
	out := make([]Replacement, 0, len(repls))
	prevEnd := 0
	for i, r := range repls {
		if !r.Range.IsValid() {
			return Edit{}, fmt.Errorf("replacement %d: invalid range %s", i, r.Range)
		}
		if i > 0 && r.Range.Start < prevEnd {
			return Edit{}, fmt.Errorf("%w: %s starts before %d", ErrOverlap, r.Range, prevEnd)
		}
		prevEnd = r.Range.End
		if r.IsNoop() {
			continue
		}
		out = append(out, r)
	}
	return Edit{repls: out}, nil
}

// MustNew is New but panics on invalid input. For literals in tests and
// internally constructed edits known to be ordered.
func MustNew(repls ...Replacement) Edit {
	e, err := New(repls...)
	if err != nil {
		panic(err)
	}
	return e
}

// Replacements returns the ordered replacements. The returned slice must
// not be modified.
func (e Edit) Replacements() []Replacement {
	return e.repls
}

// IsEmpty returns true if the edit contains no replacements.
func (e Edit) IsEmpty() bool {
	return len(e.repls) == 0
}

// Len returns the number of replacements.
func (e Edit) Len() int {
	return len(e.repls)
}

// Delta returns the total length change the edit causes.
func (e Edit) Delta() int {
	d := 0
	for _, r := range e.repls {
		d += r.Delta()
	}
	return d
}

// String returns a human-readable representation.
func (e Edit) String() string {
	if e.IsEmpty() {
		return "edit{}"
	}
	parts := make([]string, len(e.repls))
	for i, r := range e.repls {
		parts[i] = r.String()
	}
	return "edit{" + strings.Join(parts, ", ") + "}"
}

// Apply performs the edit on text and returns the result.
func (e Edit) Apply(text string) (string, error) {
	var b strings.Builder
	if n := len(text) + e.Delta(); n > 0 {
		b.Grow(n)
	}
	pos := 0
	for _, r := range e.repls {
		if r.Range.End > len(text) {
			return "", fmt.Errorf("%w: %s on text of length %d", ErrOutOfBounds, r.Range, len(text))
		}
		b.WriteString(text[pos:r.Range.Start])
		b.WriteString(r.Text)
		pos = r.Range.End
	}
	b.WriteString(text[pos:])
	return b.String(), nil
}

// Equal reports whether two edits are structurally identical.
func (e Edit) Equal(other Edit) bool {
	if len(e.repls) != len(other.repls) {
		return false
	}
	for i, r := range e.repls {
		if r != other.repls[i] {
			return false
		}
	}
	return true
}

// Normalize trims the common prefix and suffix that each replacement's
// text shares with the snapshot text it replaces, shrinking ranges
// accordingly. Two suggestions that perform the same effective change
// normalize to the same edit, which is how the rejection list compares
// them.
func (e Edit) Normalize(text string) Edit {
	out := make([]Replacement, 0, len(e.repls))
	for _, r := range e.repls {
		if r.Range.End > len(text) {
			out = append(out, r)
			continue
		}
		old := text[r.Range.Start:r.Range.End]
		nw := r.Text
		start := r.Range.Start

		pre := commonPrefixLen(old, nw)
		old = old[pre:]
		nw = nw[pre:]
		start += pre

		suf := commonSuffixLen(old, nw)
		old = old[:len(old)-suf]
		nw = nw[:len(nw)-suf]

		nr := Replacement{Range: NewRange(start, start+len(old)), Text: nw}
		if nr.IsNoop() {
			continue
		}
		out = append(out, nr)
	}
	return Edit{repls: out}
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}
