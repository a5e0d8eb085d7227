// Package session holds the small mutable state shared between the
// trigger gate and the orchestrator: when the last request, edit, and
// rejection happened, and how the most recent suggestion was resolved.
// It is an explicit object rather than package globals so tests can
// construct independent instances.
package session

import (
	"sync"
	"time"
)

// PendingOutcomeTimeout is how long an unresolved suggestion outcome
// stays pending before it is treated as ignored. The UI is supposed to
// resolve every shown suggestion, but nothing enforces that; without a
// timeout the after-acceptance switch strategy would wedge.
const PendingOutcomeTimeout = 30 * time.Second

// Outcome is the resolution of a shown suggestion.
type Outcome uint8

const (
	// OutcomeNone means no suggestion has been shown yet.
	OutcomeNone Outcome = iota

	// OutcomePending means a suggestion is shown but unresolved.
	OutcomePending

	// OutcomeAccepted means the user applied the suggestion.
	OutcomeAccepted

	// OutcomeRejected means the user explicitly dismissed it.
	OutcomeRejected

	// OutcomeIgnored means the suggestion went away without an explicit
	// decision.
	OutcomeIgnored
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// State is the shared recency and outcome bookkeeping.
type State struct {
	mu sync.Mutex

	lastRequest    time.Time
	lastGlobalEdit time.Time
	lastRejection  time.Time

	outcome Outcome
	shownAt time.Time
}

// New creates an empty state.
func New() *State {
	return &State{}
}

// RecordRequest notes that a suggestion request was issued at t.
func (s *State) RecordRequest(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = t
}

// LastRequest returns when the last suggestion request was issued.
// The zero time means never.
func (s *State) LastRequest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

// RecordEdit notes that some document was edited at t.
func (s *State) RecordEdit(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGlobalEdit = t
}

// LastEdit returns when any document was last edited.
func (s *State) LastEdit() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGlobalEdit
}

// RecordRejection notes a suggestion rejection at t and resolves the
// pending outcome.
func (s *State) RecordRejection(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRejection = t
	s.outcome = OutcomeRejected
}

// LastRejection returns when the last rejection happened.
func (s *State) LastRejection() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRejection
}

// RecordShown notes that a suggestion was shown at t. A previous
// suggestion still pending is resolved to ignored.
func (s *State) RecordShown(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = OutcomePending
	s.shownAt = t
}

// ResolveOutcome records the resolution of the current suggestion.
func (s *State) ResolveOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = o
}

// Outcome returns the current outcome, lazily expiring a stale pending
// one to ignored.
func (s *State) Outcome(now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == OutcomePending && now.Sub(s.shownAt) > PendingOutcomeTimeout {
		s.outcome = OutcomeIgnored
	}
	return s.outcome
}

// LastAccepted reports whether the most recent suggestion outcome is
// exactly accepted. A pending outcome counts as not accepted, so an
// in-flight accept/reject callback cannot race the check.
func (s *State) LastAccepted(now time.Time) bool {
	return s.Outcome(now) == OutcomeAccepted
}
