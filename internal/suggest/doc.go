// Package suggest is the orchestrator: the single entry point that
// turns a trigger into a served suggestion. It consults the cache
// first, coalesces identical in-flight provider calls, consumes the
// provider's streamed edits (first one synchronously, the rest in the
// background), suppresses previously rejected edits, and enforces
// minimum response delays so cached results do not pop in jarringly.
//
// Cancellation is cooperative and delayed: once a provider call has
// been issued, a caller's cancellation starts a short grace timer and
// the call is only aborted if no other caller still depends on it when
// the timer fires.
package suggest
