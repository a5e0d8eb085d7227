package document

import (
	"fmt"
	"strings"
)

// ID is a stable identity for an open document, derived from its URI.
type ID string

// IDFromURI derives a document ID from a URI. Scheme and path are kept
// verbatim; an empty URI yields the zero ID, which the engine treats as
// "ignored" (output panes and other unmapped documents).
func IDFromURI(uri string) ID {
	return ID(strings.TrimSpace(uri))
}

// IsZero returns true for the zero ID.
func (id ID) IsZero() bool {
	return id == ""
}

// String returns the ID as a string.
func (id ID) String() string {
	return string(id)
}

// Point is a 0-indexed line and byte column position.
type Point struct {
	Line   int
	Column int
}

// String returns a human-readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d:%d)", p.Line, p.Column)
}

// Snapshot is an immutable document text plus a line index for
// offset<->point mapping.
type Snapshot struct {
	text       string
	lineStarts []int // byte offset of each line start, always >= 1 entries

	// Generation distinguishes successive backing objects for the same
	// ID, such as a notebook cell that was reloaded in place.
	Generation uint64
}

// NewSnapshot builds a snapshot of text.
func NewSnapshot(text string) *Snapshot {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Snapshot{text: text, lineStarts: starts}
}

// Text returns the snapshot's full text.
func (s *Snapshot) Text() string {
	return s.text
}

// Len returns the text length in bytes.
func (s *Snapshot) Len() int {
	return len(s.text)
}

// LineCount returns the number of lines.
func (s *Snapshot) LineCount() int {
	return len(s.lineStarts)
}

// OffsetToPoint converts a byte offset to a line/column point.
// Offsets are clamped to the text bounds.
func (s *Snapshot) OffsetToPoint(offset int) Point {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.text) {
		offset = len(s.text)
	}
	// Binary search for the last line start <= offset.
	lo, hi := 0, len(s.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Point{Line: lo, Column: offset - s.lineStarts[lo]}
}

// PointToOffset converts a line/column point to a byte offset.
// Points beyond the text are clamped.
func (s *Snapshot) PointToOffset(p Point) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(s.lineStarts) {
		return len(s.text)
	}
	off := s.lineStarts[p.Line] + p.Column
	end := len(s.text)
	if p.Line+1 < len(s.lineStarts) {
		end = s.lineStarts[p.Line+1] - 1 // before the newline
	}
	if off > end {
		off = end
	}
	if off < s.lineStarts[p.Line] {
		off = s.lineStarts[p.Line]
	}
	return off
}

// LineAt returns the 0-indexed line containing the byte offset.
func (s *Snapshot) LineAt(offset int) int {
	return s.OffsetToPoint(offset).Line
}
