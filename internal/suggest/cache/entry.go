package cache

import (
	"time"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

// Entry is one cached suggestion, anchored to the exact document text it
// was computed from. An entry with an empty Edit and no NextCursor is a
// cached "no suggestion here" result, which is a valid negative, not an
// error.
//
// The identifying fields are immutable once created; only the tracking
// state (userEditSince, rebaseFailed, rejected) changes afterwards.
type Entry struct {
	Doc document.ID

	// TextBefore is the document text the suggestion is anchored to.
	TextBefore string

	// EditWindow, when present, is the offset range the cursor must
	// stay inside for the entry to be servable.
	EditWindow *edit.Range

	// OriginalEditWindow is a second valid window around the pre-jump
	// cursor, set for cursor-jump suggestions.
	OriginalEditWindow *edit.Range

	// Edit is the proposed change. Empty for cached negatives.
	Edit edit.Edit

	// DetailedEdits is the per-origin breakdown of Edit, rebased
	// individually so a conflict in one origin fails the whole entry
	// rather than producing a partial suggestion.
	DetailedEdits []edit.Edit

	// NextCursor proposes a cursor position for cursor-jump-only
	// results.
	NextCursor *int

	// SubsequentN is this entry's position in a multi-step stream;
	// zero for the first edit of a fetch.
	SubsequentN int

	// Source is the correlation ID of the fetch that produced the
	// entry.
	Source string

	// CacheTime records when the entry was inserted.
	CacheTime time.Time

	// userEditSince is the composition of everything the user typed
	// after TextBefore was snapshotted. nil once rebase is known to be
	// unrecoverable for this entry.
	userEditSince *edit.Edit

	// rebaseFailed marks the entry permanently un-rebasable.
	rebaseFailed bool

	// rejected marks a suggestion the user explicitly rejected; a cache
	// hit on it short-circuits without a provider call.
	rejected bool
}

// Trackable reports whether the entry is still a rebase candidate.
func (e *Entry) Trackable() bool {
	return e.userEditSince != nil && !e.rebaseFailed
}

// UserEditSince returns the live composed user edit, or nil.
func (e *Entry) UserEditSince() *edit.Edit {
	return e.userEditSince
}

// Rejected reports whether the user explicitly rejected this suggestion.
func (e *Entry) Rejected() bool {
	return e.rejected
}

// MarkRejected flags the entry as rejected.
func (e *Entry) MarkRejected() {
	e.rejected = true
}

// IsNegative reports whether the entry is a cached "no suggestion"
// result with no cursor jump.
func (e *Entry) IsNegative() bool {
	return e.Edit.IsEmpty() && e.NextCursor == nil
}

// windows returns the candidate cursor windows in priority order.
func (e *Entry) windows() []*edit.Range {
	var out []*edit.Range
	if e.EditWindow != nil {
		out = append(out, e.EditWindow)
	}
	if e.OriginalEditWindow != nil {
		out = append(out, e.OriginalEditWindow)
	}
	return out
}

// dropTracking clears userEditSince, making the entry rebase-ineligible.
func (e *Entry) dropTracking() {
	e.userEditSince = nil
}
