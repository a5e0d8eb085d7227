package suggest

import (
	"time"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/suggest/session"
)

// rejectedEdit is one rejection-list record: the rejected edit anchored
// to the text it was shown against, plus the running composition of
// user edits since, so later candidates can be compared after a lenient
// rebase.
type rejectedEdit struct {
	textBefore string
	edit       edit.Edit
	at         time.Time

	// userSince is nil once composition drifted from the document;
	// the record then only matches the exact anchor text.
	userSince *edit.Edit
}

// HandleShown records that a suggestion was handed to the UI. The UI
// must follow up with exactly one of HandleAcceptance, HandleRejection,
// or HandleIgnored.
func (s *Service) HandleShown(doc document.ID, text string, res Result) {
	now := s.clock.Now()
	s.state.RecordShown(now)
	s.mu.Lock()
	s.lastShown = shownSuggestion{doc: doc, text: text, edit: res.Edit, at: now}
	s.mu.Unlock()
}

// HandleAcceptance resolves the shown suggestion as accepted and arms
// the expand-window heuristic for the next fetch.
func (s *Service) HandleAcceptance() {
	s.state.ResolveOutcome(session.OutcomeAccepted)
	s.mu.Lock()
	s.expandWindow = true
	s.mu.Unlock()
}

// HandleRejection resolves the shown suggestion as rejected. The cache
// entry is flagged so a later identical snapshot short-circuits, and
// deliberate rejections (observed well after showing) enter the
// rejection list consulted by future fetches.
func (s *Service) HandleRejection() {
	now := s.clock.Now()
	s.state.RecordRejection(now)

	s.mu.Lock()
	shown := s.lastShown
	s.mu.Unlock()
	if shown.doc.IsZero() {
		return
	}

	s.cache.MarkRejected(shown.doc, shown.text)
	if shown.edit.IsEmpty() || now.Sub(shown.at) <= rejectionListMinAge {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	live := edit.Empty()
	list := append(s.rejections[shown.doc], &rejectedEdit{
		textBefore: shown.text,
		edit:       shown.edit,
		at:         now,
		userSince:  &live,
	})
	if len(list) > s.cfg.MaxRejections {
		list = list[len(list)-s.cfg.MaxRejections:]
	}
	s.rejections[shown.doc] = list
	s.logger.Debug("recorded rejection", "doc", shown.doc, "listLen", len(list))
}

// HandleIgnored resolves the shown suggestion as ignored.
func (s *Service) HandleIgnored() {
	s.state.ResolveOutcome(session.OutcomeIgnored)
}

// isSuppressed reports whether a candidate edit anchored to text is
// textually equal, after trimming shared prefix and suffix, to a
// rejected edit carried forward onto the same text. The rebase here is
// lenient: no cursor-window restriction applies.
func (s *Service) isSuppressed(doc document.ID, text string, candidate edit.Edit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	normCand := candidate.Normalize(text)
	for _, rec := range s.rejections[doc] {
		carried, ok := rec.carryTo(text)
		if !ok {
			continue
		}
		if carried.Normalize(text).Equal(normCand) {
			return true
		}
	}
	return false
}

// carryTo rebases the rejected edit onto text, verifying the tracked
// user composition still replays to it.
func (r *rejectedEdit) carryTo(text string) (edit.Edit, bool) {
	if r.textBefore == text {
		return r.edit, true
	}
	if r.userSince == nil {
		return edit.Edit{}, false
	}
	replayed, err := r.userSince.Apply(r.textBefore)
	if err != nil || replayed != text {
		return edit.Edit{}, false
	}
	rebased, outcome := edit.Rebase(r.edit, *r.userSince)
	if outcome != edit.RebaseOK {
		return edit.Edit{}, false
	}
	return rebased, true
}

// composeRejectionsLocked folds a document edit into every rejection
// record's running composition, dropping records that drift.
func (s *Service) composeRejectionsLocked(ev event.DocumentChanged) {
	for _, rec := range s.rejections[ev.Doc] {
		if rec.userSince == nil {
			continue
		}
		composed, err := rec.userSince.Compose(ev.Edit)
		if err != nil {
			rec.userSince = nil
			continue
		}
		replayed, err := composed.Apply(rec.textBefore)
		if err != nil || replayed != ev.NewText {
			rec.userSince = nil
			continue
		}
		rec.userSince = &composed
	}
}
