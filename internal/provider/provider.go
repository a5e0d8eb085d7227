package provider

import (
	"context"
	"errors"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

// ErrFetchFailure wraps backend-side request failures.
var ErrFetchFailure = errors.New("suggestion fetch failed")

// CompletionReason classifies how an edit stream terminated.
type CompletionReason uint8

const (
	// ReasonNoSuggestions indicates the backend explicitly found nothing.
	// This is a valid result, not an error, and is cached as a negative.
	ReasonNoSuggestions CompletionReason = iota

	// ReasonFetchFailure indicates a backend-side request failure.
	ReasonFetchFailure

	// ReasonUnexpected indicates an unclassified backend error.
	ReasonUnexpected

	// ReasonCancelled indicates the caller no longer needs the result.
	ReasonCancelled
)

// String returns a human-readable representation of the reason.
func (r CompletionReason) String() string {
	switch r {
	case ReasonNoSuggestions:
		return "no-suggestions"
	case ReasonFetchFailure:
		return "fetch-failure"
	case ReasonUnexpected:
		return "unexpected"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RecentEdit is one entry of the edit history sent to the backend.
type RecentEdit struct {
	DocID document.ID
	Edit  edit.Edit
	// TextAfter is the document text after the edit was applied.
	TextAfter string
}

// Request carries everything a backend needs to propose the next edit.
type Request struct {
	DocID        document.ID
	Text         string
	CursorOffset int

	// RecentEdits is the edit history for the request document and a
	// small set of related documents, most recent last.
	RecentEdits []RecentEdit

	// ExpandWindow asks the backend for a larger context window. Set
	// after the previous suggestion was accepted.
	ExpandWindow bool

	// CorrelationID ties backend calls to the trigger that caused them.
	CorrelationID string
}

// Proposal is a single streamed edit suggestion.
type Proposal struct {
	Replacement edit.Replacement

	// IsFromCursorJump marks suggestions whose acceptance relocates the
	// cursor; they carry a second valid window around the pre-jump
	// position.
	IsFromCursorJump bool

	// ValidWindow, when present, is the offset range the cursor must
	// stay inside for the suggestion to remain servable.
	ValidWindow *edit.Range

	// TargetDocument is set when the proposal applies to a document
	// other than the request document.
	TargetDocument document.ID
}

// Completion terminates an edit stream.
type Completion struct {
	Reason CompletionReason

	// NextCursor, with ReasonNoSuggestions, proposes a cursor position
	// even though no text edit exists (a cursor-jump-only result).
	NextCursor *int

	// Err carries the underlying error for fetch-failure and unexpected
	// completions.
	Err error
}

// Provider is a stateless next-edit suggestion backend.
type Provider interface {
	// StreamEdits issues one suggestion request. The returned stream
	// must be drained or the context cancelled.
	StreamEdits(ctx context.Context, req Request) *EditStream
}

// EditStream is a pull-based sequence of proposals ending in a
// Completion. It is safe for a single consumer.
type EditStream struct {
	items chan Proposal
	done  chan struct{}
	compl Completion
}

// NewEditStream creates a stream and the producer's push/finish
// functions. push reports false once the stream should stop producing.
func NewEditStream(ctx context.Context) (s *EditStream, push func(Proposal) bool, finish func(Completion)) {
	s = &EditStream{
		items: make(chan Proposal),
		done:  make(chan struct{}),
	}
	push = func(p Proposal) bool {
		select {
		case s.items <- p:
			return true
		case <-ctx.Done():
			return false
		}
	}
	var finished bool
	finish = func(c Completion) {
		if finished {
			return
		}
		finished = true
		s.compl = c
		close(s.done)
	}
	return s, push, finish
}

// Next blocks for the next proposal. It returns false when the stream has
// terminated; Completion() is then valid.
func (s *EditStream) Next(ctx context.Context) (Proposal, bool) {
	select {
	case p := <-s.items:
		return p, true
	case <-s.done:
		// Drain any proposal raced in ahead of the close.
		select {
		case p := <-s.items:
			return p, true
		default:
		}
		return Proposal{}, false
	case <-ctx.Done():
		return Proposal{}, false
	}
}

// Completion returns the stream's terminal state. Only meaningful after
// Next has returned false.
func (s *EditStream) Completion() Completion {
	select {
	case <-s.done:
		return s.compl
	default:
		return Completion{Reason: ReasonCancelled}
	}
}

// FailedStream returns an already-terminated stream, for backends that
// fail before producing anything.
func FailedStream(c Completion) *EditStream {
	s := &EditStream{
		items: make(chan Proposal),
		done:  make(chan struct{}),
	}
	s.compl = c
	close(s.done)
	return s
}
