package suggest

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/clock"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/provider"
	"github.com/dshills/nextedit/internal/suggest/cache"
	"github.com/dshills/nextedit/internal/suggest/session"
)

const (
	// DefaultCancelGrace is how long a cancelled request's provider
	// call is kept alive waiting for other dependents.
	DefaultCancelGrace = time.Second

	// DefaultMaxRejections bounds the per-document rejection list.
	DefaultMaxRejections = 50

	// DefaultMaxRecentEdits bounds the edit history sent to providers.
	DefaultMaxRecentEdits = 20

	// rejectionListMinAge filters out reflexive rejections: only
	// rejections observed this long after showing enter the list.
	rejectionListMinAge = time.Second

	// jumpWindowRadius sizes the pre-jump validity window kept for
	// cursor-jump suggestions.
	jumpWindowRadius = 120
)

// Config is the orchestrator's tunable surface.
type Config struct {
	// BaseDelay is the minimum total latency for fresh provider
	// results and exact cache hits. Zero disables the floor.
	BaseDelay time.Duration

	// RebasedDelay is the floor for rebased cache hits.
	RebasedDelay time.Duration

	// SubsequentDelay is the floor for cached subsequent-stream hits.
	SubsequentDelay time.Duration

	// CancelGrace is the delayed-cancellation window.
	CancelGrace time.Duration

	// MaxRejections bounds the per-document rejection list.
	MaxRejections int

	// MaxRecentEdits bounds the edit history sent to providers.
	MaxRecentEdits int
}

// DefaultConfig returns the standard orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		CancelGrace:    DefaultCancelGrace,
		MaxRejections:  DefaultMaxRejections,
		MaxRecentEdits: DefaultMaxRecentEdits,
	}
}

// EmptyReason says why a Result carries no edit.
type EmptyReason uint8

const (
	// NotEmpty marks a result holding a usable edit or cursor jump.
	NotEmpty EmptyReason = iota

	// EmptyNoSuggestion means the provider (or a cached negative)
	// found nothing here.
	EmptyNoSuggestion

	// EmptyRejectedHit means the cache hit an entry the user already
	// rejected, so no provider call was made.
	EmptyRejectedHit

	// EmptySuppressed means the candidate matched the rejection list.
	EmptySuppressed

	// EmptyCancelled means the caller cancelled before a result.
	EmptyCancelled
)

// String returns a human-readable representation of the reason.
func (r EmptyReason) String() string {
	switch r {
	case NotEmpty:
		return "ok"
	case EmptyNoSuggestion:
		return "no-suggestion"
	case EmptyRejectedHit:
		return "rejected-from-cache"
	case EmptySuppressed:
		return "suppressed"
	case EmptyCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Query is one suggestion request.
type Query struct {
	Doc  document.ID
	Text string

	// Cursors are the current cursor ranges; the primary one anchors
	// context windows.
	Cursors []edit.Range

	// CorrelationID ties the request to the trigger that caused it.
	CorrelationID string
}

func (q Query) primaryOffset() int {
	if len(q.Cursors) == 0 {
		return 0
	}
	return q.Cursors[0].Start
}

// Result is a served suggestion, possibly empty.
type Result struct {
	// Edit is the proposed change, anchored to the query text.
	Edit edit.Edit

	// NextCursor proposes a cursor position. Set without an Edit for
	// cursor-jump-only results.
	NextCursor *int

	// Source is the correlation ID of the fetch that produced the
	// underlying suggestion. For cache hits this is the original
	// request's ID, not the current one.
	Source string

	// FromCache is true when no provider call was made.
	FromCache bool

	// Rebased is true when the edit was transformed through user edits
	// made after the suggestion was fetched.
	Rebased bool

	// SubsequentN is the suggestion's position in its stream.
	SubsequentN int

	// Empty says why no edit is present. NotEmpty otherwise.
	Empty EmptyReason
}

// Service is the orchestrator. Safe for concurrent use.
type Service struct {
	cfg      Config
	cache    *cache.Store
	backend  provider.Provider
	state    *session.State
	clock    clock.Clock
	logger   *log.Logger

	mu           sync.Mutex
	inflight     map[document.ID]*inflight
	rejections   map[document.ID][]*rejectedEdit
	history      []provider.RecentEdit
	expandWindow bool
	lastShown    shownSuggestion
}

// shownSuggestion remembers the last suggestion handed to the UI, for
// the outcome callbacks.
type shownSuggestion struct {
	doc  document.ID
	text string
	edit edit.Edit
	at   time.Time
}

// NewService creates the orchestrator.
func NewService(cfg Config, store *cache.Store, backend provider.Provider, st *session.State, clk clock.Clock, logger *log.Logger) *Service {
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = DefaultCancelGrace
	}
	if cfg.MaxRejections <= 0 {
		cfg.MaxRejections = DefaultMaxRejections
	}
	if cfg.MaxRecentEdits <= 0 {
		cfg.MaxRecentEdits = DefaultMaxRecentEdits
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:        cfg,
		cache:      store,
		backend:    backend,
		state:      st,
		clock:      clk,
		logger:     logger.With("component", "suggest"),
		inflight:   make(map[document.ID]*inflight),
		rejections: make(map[document.ID][]*rejectedEdit),
	}
}

// GetNextEdit is the single entry point: serve from cache, join an
// identical in-flight fetch, or issue a new provider call.
func (s *Service) GetNextEdit(ctx context.Context, q Query) (Result, error) {
	start := s.clock.Now()
	s.state.RecordRequest(start)

	// Cancellation before any provider call is honored immediately;
	// after issuance, only the delayed grace applies.
	if ctx.Err() != nil {
		return Result{Empty: EmptyCancelled}, nil
	}

	for attempt := 0; ; attempt++ {
		if res, ok := s.lookupCache(q); ok {
			s.applyDelayFloor(ctx, start, res)
			return res, nil
		}

		fl, issued := s.joinOrIssue(q)
		if issued {
			res, err := s.awaitOwn(ctx, fl, q)
			if err != nil {
				return Result{}, err
			}
			s.applyDelayFloor(ctx, start, res)
			return res, nil
		}

		// Joined someone else's fetch. Once it resolves, the cache
		// holds its results and the loop re-runs the lookup, which
		// rebases if our text has moved on.
		if cancelled := s.awaitJoined(ctx, fl); cancelled {
			return Result{Empty: EmptyCancelled}, nil
		}
		if fl.err != nil && q.Text == fl.textBefore {
			return Result{}, fl.err
		}
		if attempt >= 1 {
			// A second join also produced nothing servable; give up
			// rather than looping on a hot document.
			return Result{Empty: EmptyNoSuggestion, Source: q.CorrelationID}, nil
		}
	}
}

// lookupCache runs the cache path: exact hit (including the rejected
// short-circuit), then rebase. Non-empty candidates are re-checked
// against the rejection list.
func (s *Service) lookupCache(q Query) (Result, bool) {
	cr, ok := s.cache.Lookup(q.Doc, q.Text, q.Cursors)
	if !ok {
		return Result{}, false
	}

	if cr.Entry.Rejected() && !cr.Rebased {
		s.logger.Debug("rejected hit", "doc", q.Doc, "source", cr.Entry.Source)
		return Result{Empty: EmptyRejectedHit, Source: cr.Entry.Source, FromCache: true}, true
	}

	res := Result{
		Edit:        cr.Edit,
		NextCursor:  cr.NextCursor,
		Source:      cr.Entry.Source,
		FromCache:   true,
		Rebased:     cr.Rebased,
		SubsequentN: cr.Entry.SubsequentN,
	}
	if cr.Edit.IsEmpty() && cr.NextCursor == nil {
		res.Empty = EmptyNoSuggestion
	} else if !cr.Edit.IsEmpty() && s.isSuppressed(q.Doc, q.Text, cr.Edit) {
		s.logger.Debug("suppressed cached edit", "doc", q.Doc, "source", cr.Entry.Source)
		return Result{Empty: EmptySuppressed, Source: cr.Entry.Source, FromCache: true}, true
	}
	s.logger.Debug("cache hit",
		"doc", q.Doc,
		"source", cr.Entry.Source,
		"cachedAt", cr.Entry.CacheTime,
		"rebased", cr.Rebased,
		"subsequent", cr.Entry.SubsequentN)
	return res, true
}

// applyDelayFloor blocks until the result's minimum latency is met, or
// the caller cancels.
func (s *Service) applyDelayFloor(ctx context.Context, start time.Time, res Result) {
	floor := s.cfg.BaseDelay
	switch {
	case res.FromCache && res.SubsequentN > 0:
		floor = s.cfg.SubsequentDelay
	case res.Rebased:
		floor = s.cfg.RebasedDelay
	}
	if floor <= 0 {
		return
	}
	remaining := floor - s.clock.Now().Sub(start)
	if remaining <= 0 {
		return
	}
	fired := make(chan struct{})
	t := s.clock.AfterFunc(remaining, func() { close(fired) })
	select {
	case <-fired:
	case <-ctx.Done():
		t.Stop()
	}
}

// Stats returns counters for introspection.
func (s *Service) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.rejections {
		n += len(list)
	}
	deps := 0
	for _, fl := range s.inflight {
		deps += fl.deps
	}
	return map[string]int{
		"inflight":     len(s.inflight),
		"inflightDeps": deps,
		"rejections":   n,
		"history":      len(s.history),
	}
}

// HandleDocumentChange keeps the cache's rebase tracking, the rejection
// list, and the provider edit history in step with the document.
func (s *Service) HandleDocumentChange(ev event.DocumentChanged) {
	if ev.Doc.IsZero() {
		return
	}
	s.cache.HandleEdit(ev.Doc, ev.Edit, ev.NewText)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeRejectionsLocked(ev)
	s.history = append(s.history, provider.RecentEdit{
		DocID:     ev.Doc,
		Edit:      ev.Edit,
		TextAfter: ev.NewText,
	})
	if len(s.history) > s.cfg.MaxRecentEdits {
		s.history = s.history[len(s.history)-s.cfg.MaxRecentEdits:]
	}
}

// RemoveDoc drops all per-document state for a closed document.
func (s *Service) RemoveDoc(doc document.ID) {
	s.cache.RemoveDoc(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rejections, doc)
}
