package cache

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/clock"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

// DefaultMaxTrackedPerDoc bounds the per-document list of rebase
// candidates.
const DefaultMaxTrackedPerDoc = 10

// StoreConfig configures a Store.
type StoreConfig struct {
	// Capacity is the shared LRU size. Defaults to DefaultCapacity.
	Capacity int

	// MaxTrackedPerDoc bounds rebase candidates per document.
	// Defaults to DefaultMaxTrackedPerDoc.
	MaxTrackedPerDoc int

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to the package-level logger.
	Logger *log.Logger
}

// Store is the suggestion cache: a shared LRU plus per-document rebase
// tracking. All methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	entries    *lru
	tracked    map[document.ID][]*Entry
	maxTracked int

	// crossDocEvict, when set, evicts entries of other documents
	// whenever any document is edited. Enabled together with the
	// trigger-on-editor-switch feature, where an edit in one document
	// can invalidate what is optimal in another.
	crossDocEvict bool

	clock  clock.Clock
	logger *log.Logger
}

// Result is a successful cache lookup.
type Result struct {
	// Entry is the cache entry that served the lookup.
	Entry *Entry

	// Edit is the servable edit: the entry's own edit for exact hits,
	// the transformed edit for rebased hits.
	Edit edit.Edit

	// NextCursor is the (transformed) cursor-jump position, if any.
	NextCursor *int

	// Rebased is true when the result came from the rebase path.
	Rebased bool
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		tracked:    make(map[document.ID][]*Entry),
		maxTracked: cfg.MaxTrackedPerDoc,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if s.maxTracked <= 0 {
		s.maxTracked = DefaultMaxTrackedPerDoc
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.logger = s.logger.With("component", "suggest.cache")
	s.entries = newLRU(cfg.Capacity, s.detachLocked)
	return s
}

// SetCrossDocEviction toggles eviction of other documents' entries on
// every edit.
func (s *Store) SetCrossDocEviction(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crossDocEvict = enabled
}

// Insert caches an entry under (entry.Doc, entry.TextBefore) and
// registers it as a rebase candidate. The entry's CacheTime is set here.
func (s *Store) Insert(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.CacheTime = s.clock.Now()
	live := edit.Empty()
	e.userEditSince = &live

	s.entries.put(Key{Doc: e.Doc, Text: e.TextBefore}, e)

	list := append([]*Entry{e}, s.tracked[e.Doc]...)
	for len(list) > s.maxTracked {
		last := list[len(list)-1]
		last.dropTracking()
		list = list[:len(list)-1]
	}
	s.tracked[e.Doc] = list
	s.logger.Debug("cached", "doc", e.Doc, "subsequent", e.SubsequentN, "negative", e.IsNegative())
}

// Lookup finds a servable suggestion for the document's current text and
// cursor position: first by exact (doc, text) match, then by rebasing a
// tracked entry onto the current text. A rejected exact hit is returned
// so the caller can suppress without refetching.
func (s *Store) Lookup(doc document.ID, text string, cursors []edit.Range) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries.get(Key{Doc: doc, Text: text}); ok {
		if e.rejected || cursorInWindows(cursors, e.windows()) {
			return Result{Entry: e, Edit: e.Edit, NextCursor: e.NextCursor}, true
		}
	}

	// tryRebaseLocked untracks drifted candidates, which shifts the
	// list in place; iterate a copy so later candidates are not skipped.
	candidates := append([]*Entry(nil), s.tracked[doc]...)
	for _, e := range candidates {
		if res, ok := s.tryRebaseLocked(e, text, cursors); ok {
			return res, true
		}
	}
	return Result{}, false
}

// tryRebaseLocked attempts to serve entry e against the current text.
func (s *Store) tryRebaseLocked(e *Entry, text string, cursors []edit.Range) (Result, bool) {
	if !e.Trackable() {
		return Result{}, false
	}
	user := *e.userEditSince

	// The tracked composition must still describe reality.
	replayed, err := user.Apply(e.TextBefore)
	if err != nil || replayed != text {
		s.logger.Debug("tracked edit drifted, dropping", "doc", e.Doc)
		s.detachLocked(e)
		return Result{}, false
	}

	// Cursor must fall in one of the transformed windows, if any exist.
	if ws := e.windows(); len(ws) > 0 {
		inWindow := false
		for _, w := range ws {
			tw := edit.TransformRangeExpand(*w, user)
			if cursorInWindow(cursors, tw) {
				inWindow = true
				break
			}
		}
		if !inWindow {
			return Result{}, false
		}
	}

	// A cached negative rebases trivially: still no suggestion here.
	if e.Edit.IsEmpty() {
		res := Result{Entry: e, Edit: edit.Empty(), Rebased: true}
		if e.NextCursor != nil {
			nc := edit.TransformOffset(*e.NextCursor, user)
			res.NextCursor = &nc
		}
		return res, true
	}

	for _, detail := range e.DetailedEdits {
		if _, outcome := edit.Rebase(detail, user); outcome != edit.RebaseOK {
			s.failRebaseLocked(e)
			return Result{}, false
		}
	}
	rebased, outcome := edit.Rebase(e.Edit, user)
	if outcome != edit.RebaseOK {
		s.failRebaseLocked(e)
		return Result{}, false
	}

	res := Result{Entry: e, Edit: rebased, Rebased: true}
	if e.NextCursor != nil {
		nc := edit.TransformOffset(*e.NextCursor, user)
		res.NextCursor = &nc
	}
	return res, true
}

// HandleEdit must be called for every mutation of a tracked document. It
// composes the edit into each candidate's running userEditSince and
// drops tracking for any candidate whose composition no longer replays
// to the actual current text.
func (s *Store) HandleEdit(doc document.ID, ed edit.Edit, newText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tracked[doc][:0]
	for _, e := range s.tracked[doc] {
		if !e.Trackable() {
			continue
		}
		composed, err := e.userEditSince.Compose(ed)
		if err == nil {
			replayed, applyErr := composed.Apply(e.TextBefore)
			if applyErr != nil || replayed != newText {
				err = edit.ErrOutOfBounds
			}
		}
		if err != nil {
			s.logger.Debug("composition inconsistent, dropping", "doc", doc)
			e.dropTracking()
			continue
		}
		e.userEditSince = &composed
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(s.tracked, doc)
	} else {
		s.tracked[doc] = kept
	}

	if s.crossDocEvict {
		s.entries.removeWhere(func(k Key, _ *Entry) bool {
			return k.Doc != doc
		})
	}
}

// MarkRejected flags the exact-match entry for (doc, text) as rejected.
func (s *Store) MarkRejected(doc document.ID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries.get(Key{Doc: doc, Text: text}); ok {
		e.MarkRejected()
	}
}

// RemoveDoc drops all cache and tracking state for a closed document.
func (s *Store) RemoveDoc(doc document.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.removeWhere(func(k Key, _ *Entry) bool {
		return k.Doc == doc
	})
	delete(s.tracked, doc)
}

// Stats returns counters for introspection.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	trackedEntries := 0
	for _, list := range s.tracked {
		trackedEntries += len(list)
	}
	return map[string]int{
		"entries":        s.entries.len(),
		"trackedDocs":    len(s.tracked),
		"trackedEntries": trackedEntries,
	}
}

// detachLocked removes an evicted entry from its document's tracked
// list. Called by the LRU with the store lock held; idempotent, since
// the entry may already be gone.
func (s *Store) detachLocked(e *Entry) {
	e.dropTracking()
	s.untrackLocked(e)
}

// failRebaseLocked marks an entry permanently un-rebasable and removes
// it from the candidate list. It stays in the LRU for exact hits until a
// fresh edit replaces it.
func (s *Store) failRebaseLocked(e *Entry) {
	e.rebaseFailed = true
	s.untrackLocked(e)
}

func (s *Store) untrackLocked(e *Entry) {
	list := s.tracked[e.Doc]
	for i, other := range list {
		if other == e {
			s.tracked[e.Doc] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.tracked[e.Doc]) == 0 {
		delete(s.tracked, e.Doc)
	}
}

// cursorInWindows reports whether any cursor falls inside any window.
// No windows means no constraint.
func cursorInWindows(cursors []edit.Range, windows []*edit.Range) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if cursorInWindow(cursors, *w) {
			return true
		}
	}
	return false
}

func cursorInWindow(cursors []edit.Range, w edit.Range) bool {
	for _, c := range cursors {
		if w.Contains(c.Start) {
			return true
		}
	}
	return false
}
