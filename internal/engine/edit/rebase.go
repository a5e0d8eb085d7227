package edit

// RebaseOutcome classifies the result of rebasing an edit across
// independent edits to the same snapshot.
type RebaseOutcome uint8

const (
	// RebaseOK indicates the edit was transformed successfully.
	RebaseOK RebaseOutcome = iota

	// RebaseConflict indicates the independent edits touch the same
	// region as the edit being rebased and cannot be reconciled.
	RebaseConflict
)

// String returns a human-readable representation of the outcome.
func (o RebaseOutcome) String() string {
	switch o {
	case RebaseOK:
		return "ok"
	case RebaseConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Rebase transforms e, anchored to a text T, across base, also anchored
// to T, so the result applies to base.Apply(T). It reports RebaseConflict
// when any base replacement overlaps one of e's replacement regions,
// including insertions strictly inside them. Insertions exactly at a
// region's start shift the region right; insertions exactly at its end
// leave it untouched.
//
// An empty e rebases to an empty edit: a cached "no suggestion" result
// stays valid across any user edit.
func Rebase(e, base Edit) (Edit, RebaseOutcome) {
	if e.IsEmpty() || base.IsEmpty() {
		return e, RebaseOK
	}

	out := make([]Replacement, 0, len(e.repls))
	bi := 0
	delta := 0
	for _, r := range e.repls {
		for bi < len(base.repls) && beforeRange(base.repls[bi], r.Range) {
			delta += base.repls[bi].Delta()
			bi++
		}
		for _, b := range base.repls[bi:] {
			if b.Range.Start > r.Range.End {
				break
			}
			if b.Range.Overlaps(r.Range) {
				return Edit{}, RebaseConflict
			}
		}
		out = append(out, Replacement{Range: r.Range.Shift(delta), Text: r.Text})
	}
	res, err := New(out...)
	if err != nil {
		return Edit{}, RebaseConflict
	}
	return res, RebaseOK
}

// beforeRange reports whether base replacement b lies entirely before r,
// counting an insertion exactly at r's start as before it.
func beforeRange(b Replacement, r Range) bool {
	if b.Range.IsEmpty() {
		return b.Range.Start <= r.Start
	}
	return b.Range.End <= r.Start
}

// TransformRangeExpand maps a range anchored to T onto base.Apply(T),
// growing it over any base edits that fall inside: the start is biased
// left, the end right, so text the user typed within the range stays
// within it. Used for edit windows, which must keep containing the
// cursor as the user types inside them.
func TransformRangeExpand(r Range, base Edit) Range {
	return Range{
		Start: transformOffsetLow(r.Start, base),
		End:   transformOffsetHigh(r.End, base),
	}
}

// TransformOffset maps a single offset anchored to T onto base.Apply(T).
// Offsets inside a replaced region snap to the region's new end.
func TransformOffset(off int, base Edit) int {
	return transformOffsetHigh(off, base)
}

func transformOffsetLow(off int, base Edit) int {
	delta := 0
	for _, b := range base.repls {
		if b.Range.IsEmpty() {
			if b.Range.Start < off {
				delta += b.Delta()
			}
			continue
		}
		if b.Range.End <= off {
			if b.Range.End == off {
				// Replacement ending exactly at the window start grows
				// into the window.
				return b.Range.Start + delta
			}
			delta += b.Delta()
			continue
		}
		if b.Range.Start < off {
			return b.Range.Start + delta
		}
		break
	}
	return off + delta
}

func transformOffsetHigh(off int, base Edit) int {
	delta := 0
	for _, b := range base.repls {
		if b.Range.IsEmpty() {
			if b.Range.Start <= off {
				delta += b.Delta()
			}
			continue
		}
		if b.Range.End <= off {
			delta += b.Delta()
			continue
		}
		if b.Range.Start >= off {
			break
		}
		return b.Range.Start + delta + len(b.Text)
	}
	return off + delta
}
