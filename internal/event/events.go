// Package event defines the editor events the suggestion engine
// consumes. The editor adapter translates its native change and
// selection notifications into these types; documents it cannot map to
// an internal identity (output panes and the like) are skipped upstream
// by sending a zero document ID.
package event

import (
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

// SelectionKind describes what caused a selection change.
type SelectionKind uint8

const (
	// SelectionKeyboard is a cursor move from typing or arrow keys.
	SelectionKeyboard SelectionKind = iota

	// SelectionMouse is a cursor move from a pointer click or drag.
	SelectionMouse

	// SelectionCommand is a programmatic cursor move.
	SelectionCommand
)

// DocumentChanged is published for every document mutation.
type DocumentChanged struct {
	// Doc identifies the document. Zero for ignored documents.
	Doc document.ID

	// Edit is the applied change, anchored to the text before it.
	Edit edit.Edit

	// NewText is the full document text after the change.
	NewText string

	// Generation distinguishes successive backing objects for the same
	// ID, such as a reloaded notebook cell.
	Generation uint64

	// IsUndoRedo marks changes from undo/redo, which are ignored for
	// triggering purposes.
	IsUndoRedo bool
}

// SelectionChanged is published for every cursor or selection move.
type SelectionChanged struct {
	// Doc identifies the document. Zero for ignored documents.
	Doc document.ID

	// Ranges are the cursor ranges; a caret is an empty range.
	Ranges []edit.Range

	// Line is the 0-indexed line of the primary cursor.
	Line int

	// Generation matches DocumentChanged.Generation.
	Generation uint64

	// Kind describes what caused the move.
	Kind SelectionKind
}

// IsCaret reports whether the selection is a single empty cursor.
func (ev SelectionChanged) IsCaret() bool {
	return len(ev.Ranges) == 1 && ev.Ranges[0].IsEmpty()
}

// PrimaryOffset returns the primary cursor's offset, or 0 when absent.
func (ev SelectionChanged) PrimaryOffset() int {
	if len(ev.Ranges) == 0 {
		return 0
	}
	return ev.Ranges[0].Start
}
