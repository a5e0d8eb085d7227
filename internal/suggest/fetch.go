package suggest

import (
	"context"
	"fmt"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/provider"
	"github.com/dshills/nextedit/internal/suggest/cache"
)

// inflight is one issued provider call, shared by every caller that
// coalesced onto it. firstDone closes once the first streamed edit (or
// the terminal completion) has been cached; the background drain keeps
// running after that.
type inflight struct {
	textBefore string
	firstDone  chan struct{}
	result     Result
	err        error

	// deps counts callers still waiting on the call. The provider
	// context is only cancelled once deps reaches zero and the grace
	// timer has fired.
	deps   int
	cancel context.CancelFunc
}

// joinOrIssue returns the document's in-flight fetch to join, or issues
// a new one. issued is true when the caller owns the new fetch.
func (s *Service) joinOrIssue(q Query) (fl *inflight, issued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fl := s.inflight[q.Doc]; fl != nil {
		fl.deps++
		return fl, false
	}

	// The provider context is detached from the caller so delayed
	// cancellation can outlive it.
	pctx, cancel := context.WithCancel(context.Background())
	fl = &inflight{
		textBefore: q.Text,
		firstDone:  make(chan struct{}),
		deps:       1,
		cancel:     cancel,
	}
	s.inflight[q.Doc] = fl

	req := provider.Request{
		DocID:         q.Doc,
		Text:          q.Text,
		CursorOffset:  q.primaryOffset(),
		RecentEdits:   append([]provider.RecentEdit(nil), s.history...),
		ExpandWindow:  s.expandWindow,
		CorrelationID: q.CorrelationID,
	}
	go s.consume(pctx, fl, q, req)
	return fl, true
}

// awaitOwn waits for the fetch this caller issued.
func (s *Service) awaitOwn(ctx context.Context, fl *inflight, q Query) (Result, error) {
	if cancelled := s.awaitJoined(ctx, fl); cancelled {
		return Result{Empty: EmptyCancelled}, nil
	}
	if fl.err != nil {
		return Result{}, fl.err
	}
	res := fl.result
	if !res.Edit.IsEmpty() && s.isSuppressed(q.Doc, q.Text, res.Edit) {
		s.logger.Debug("suppressed fetched edit", "doc", q.Doc, "source", res.Source)
		return Result{Empty: EmptySuppressed, Source: res.Source}, nil
	}
	return res, nil
}

// awaitJoined blocks until the fetch's first result or the caller's
// cancellation. It releases the caller's dependency either way.
func (s *Service) awaitJoined(ctx context.Context, fl *inflight) (cancelled bool) {
	select {
	case <-fl.firstDone:
		s.mu.Lock()
		fl.deps--
		s.mu.Unlock()
		return false
	case <-ctx.Done():
		s.releaseDependent(fl)
		return true
	}
}

// releaseDependent drops one dependency and, once none remain, arms the
// grace timer that actually cancels the provider call. A caller joining
// inside the grace window disarms the cancellation by raising deps
// again.
func (s *Service) releaseDependent(fl *inflight) {
	s.mu.Lock()
	fl.deps--
	remaining := fl.deps
	s.mu.Unlock()
	if remaining > 0 {
		return
	}
	s.clock.AfterFunc(s.cfg.CancelGrace, func() {
		s.mu.Lock()
		idle := fl.deps <= 0
		s.mu.Unlock()
		if idle {
			fl.cancel()
		}
	})
}

// consume drives one provider stream: the first proposal resolves the
// in-flight result, the rest are cached in the background as subsequent
// entries anchored to chained snapshots.
func (s *Service) consume(ctx context.Context, fl *inflight, q Query, req provider.Request) {
	defer fl.cancel()
	defer func() {
		s.mu.Lock()
		if s.inflight[q.Doc] == fl {
			delete(s.inflight, q.Doc)
		}
		s.mu.Unlock()
	}()

	stream := s.backend.StreamEdits(ctx, req)

	curText := q.Text
	n := 0
	for {
		p, ok := stream.Next(ctx)
		if !ok {
			break
		}
		if !p.TargetDocument.IsZero() && p.TargetDocument != q.Doc {
			// Cross-document proposals cannot be anchored without the
			// target's text; skip rather than cache a wrong snapshot.
			s.logger.Debug("skipping cross-document proposal",
				"doc", q.Doc, "target", p.TargetDocument, "source", req.CorrelationID)
			continue
		}

		entry, applied, err := s.entryFromProposal(q.Doc, curText, q, p, n, req.CorrelationID)
		if err != nil {
			s.logger.Warn("dropping unusable proposal",
				"doc", q.Doc, "source", req.CorrelationID, "err", err)
			continue
		}
		s.cache.Insert(entry)
		s.resetExpandWindow()

		if n == 0 {
			fl.result = Result{
				Edit:   entry.Edit,
				Source: req.CorrelationID,
			}
			close(fl.firstDone)
		}
		curText = applied
		n++
	}

	compl := stream.Completion()
	switch compl.Reason {
	case provider.ReasonNoSuggestions:
		if n == 0 {
			// Cache the negative so the same snapshot is not refetched.
			s.cache.Insert(&cache.Entry{
				Doc:        q.Doc,
				TextBefore: q.Text,
				Edit:       edit.Empty(),
				NextCursor: compl.NextCursor,
				Source:     req.CorrelationID,
			})
			s.resetExpandWindow()
			fl.result = Result{
				NextCursor: compl.NextCursor,
				Source:     req.CorrelationID,
			}
			if compl.NextCursor == nil {
				fl.result.Empty = EmptyNoSuggestion
			}
			close(fl.firstDone)
		}
	case provider.ReasonFetchFailure, provider.ReasonUnexpected:
		if n == 0 {
			fl.err = fmt.Errorf("%w: %s: %v", provider.ErrFetchFailure, compl.Reason, compl.Err)
			close(fl.firstDone)
		} else {
			// Edits already served and cached stay valid; only the
			// tail of the stream was lost.
			s.logger.Warn("stream failed after first edit",
				"doc", q.Doc, "source", req.CorrelationID, "err", compl.Err)
		}
	case provider.ReasonCancelled:
		if n == 0 {
			fl.result = Result{Empty: EmptyCancelled, Source: req.CorrelationID}
			close(fl.firstDone)
		}
	}
}

// entryFromProposal anchors one streamed proposal to the chained
// snapshot text and returns the cache entry plus the text after the
// proposal is applied.
func (s *Service) entryFromProposal(doc document.ID, text string, q Query, p provider.Proposal, n int, source string) (*cache.Entry, string, error) {
	e, err := edit.New(p.Replacement)
	if err != nil {
		return nil, "", err
	}
	applied, err := e.Apply(text)
	if err != nil {
		return nil, "", err
	}

	entry := &cache.Entry{
		Doc:           doc,
		TextBefore:    text,
		EditWindow:    p.ValidWindow,
		Edit:          e,
		DetailedEdits: []edit.Edit{e},
		SubsequentN:   n,
		Source:        source,
	}
	if p.IsFromCursorJump {
		w := windowAround(q.primaryOffset(), len(text))
		entry.OriginalEditWindow = &w
	}
	return entry, applied, nil
}

// windowAround clamps a radius-bounded window around an offset.
func windowAround(offset, textLen int) edit.Range {
	lo := offset - jumpWindowRadius
	if lo < 0 {
		lo = 0
	}
	hi := offset + jumpWindowRadius
	if hi > textLen {
		hi = textLen
	}
	return edit.Range{Start: lo, End: hi}
}

func (s *Service) resetExpandWindow() {
	s.mu.Lock()
	s.expandWindow = false
	s.mu.Unlock()
}
