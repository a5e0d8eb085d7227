// Package trigger decides when a cursor move or document switch should
// ask the orchestrator for a next-edit suggestion.
//
// The gate is a per-document state machine. A document is untracked
// until it is edited; editing creates a tracking record holding the edit
// time, per-line trigger timestamps, and a debounce counter. Cursor
// moves on a tracked document fire when both a recent edit and a recent
// suggestion request exist, subject to a same-line cooldown. Moves that
// reach no tracked state may instead fire through the document-switch
// path. A recent suggestion rejection suppresses everything for a
// cooldown window and untracks the document.
//
// Every suppression is a silent no-op; the gate never errors.
package trigger
