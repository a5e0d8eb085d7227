// Package edit provides the text edit model used throughout nextedit:
// ordered, non-overlapping offset-range replacements that can be applied
// to a text, composed with later edits, and rebased onto a newer document
// state.
//
// An Edit is anchored to a specific text snapshot. Apply produces the text
// that results from performing the edit. Compose chains an edit anchored
// to this edit's result back onto the original snapshot. Rebase transforms
// an edit so it remains valid after independent edits have modified the
// same snapshot, or reports a classified failure when the edits conflict.
//
// All offsets are byte offsets. Ranges are half-open: [Start, End).
package edit
