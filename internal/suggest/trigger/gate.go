package trigger

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/nextedit/internal/clock"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/suggest/session"
)

// Recency windows for the tracked-document path.
const (
	// recentEditWindow is how fresh the document's last edit must be
	// for a cursor move to fire.
	recentEditWindow = 10 * time.Second

	// recentRequestWindow is how fresh the last suggestion request must
	// be for a cursor move to fire.
	recentRequestWindow = 10 * time.Second

	// maxLineTriggers bounds the per-line cooldown map; exceeding it
	// prunes entries older than the edit-age limit.
	maxLineTriggers = 100

	// immediateFires is how many consecutive selection-change fires
	// happen before debouncing starts.
	immediateFires = 2
)

// SwitchStrategy selects when the document-switch path may fire.
type SwitchStrategy uint8

const (
	// SwitchAlways fires on any qualifying document switch.
	SwitchAlways SwitchStrategy = iota

	// SwitchAfterAcceptance fires only when the most recent suggestion
	// outcome is exactly accepted.
	SwitchAfterAcceptance
)

// String returns a human-readable representation of the strategy.
func (s SwitchStrategy) String() string {
	switch s {
	case SwitchAlways:
		return "always"
	case SwitchAfterAcceptance:
		return "after-acceptance"
	default:
		return "unknown"
	}
}

// Reason describes why a trigger fired.
type Reason uint8

const (
	// ReasonSelectionChange is a cursor move on a tracked document.
	ReasonSelectionChange Reason = iota

	// ReasonDocumentSwitch is a switch to a different document.
	ReasonDocumentSwitch
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonSelectionChange:
		return "selection-change"
	case ReasonDocumentSwitch:
		return "document-switch"
	default:
		return "unknown"
	}
}

// Trigger is one emitted request for a suggestion.
type Trigger struct {
	// ID uniquely identifies the trigger; it becomes the request's
	// correlation ID.
	ID string

	// Doc is the document to suggest for.
	Doc document.ID

	// Reason is why the gate fired.
	Reason Reason

	// Cursors are the cursor ranges at fire time.
	Cursors []edit.Range
}

// Config is the gate's tunable surface.
type Config struct {
	// RejectionCooldown suppresses all triggering after a rejection.
	RejectionCooldown time.Duration

	// SameLineCooldown suppresses repeat fires on one line.
	SameLineCooldown time.Duration

	// EditAgeLimit is how old a line trigger may get before pruning.
	EditAgeLimit time.Duration

	// DebounceInterval collapses rapid consecutive fires. Zero disables
	// debouncing.
	DebounceInterval time.Duration

	// SwitchWindow enables the document-switch path when positive: both
	// the last global edit and the last request must be younger.
	SwitchWindow time.Duration

	// SwitchStrategy gates the switch path on the last outcome.
	SwitchStrategy SwitchStrategy

	// TriggerOnEditorChange bypasses the same-line cooldown.
	TriggerOnEditorChange bool
}

// DefaultConfig returns the standard gate tuning.
func DefaultConfig() Config {
	return Config{
		RejectionCooldown: 5 * time.Second,
		SameLineCooldown:  5 * time.Second,
		EditAgeLimit:      10 * time.Second,
		DebounceInterval:  0,
		SwitchWindow:      0,
		SwitchStrategy:    SwitchAlways,
	}
}

// lastChange tracks one document with an open trigger window. It is
// replaced wholesale on the next edit and deleted when a rejection
// cooldown is entered.
type lastChange struct {
	lastEdited   time.Time
	lineTriggers map[int]time.Time
	generation   uint64
	nConsecutive int
	pending      clock.Timer
}

// Gate is the trigger-gating state machine. Safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	state   *session.State
	clock   clock.Clock
	logger  *log.Logger
	emit    func(Trigger)
	changes map[document.ID]*lastChange
	prevDoc document.ID
}

// NewGate creates a gate emitting triggers to emit.
func NewGate(cfg Config, st *session.State, clk clock.Clock, logger *log.Logger, emit func(Trigger)) *Gate {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{
		cfg:     cfg,
		state:   st,
		clock:   clk,
		logger:  logger.With("component", "suggest.trigger"),
		emit:    emit,
		changes: make(map[document.ID]*lastChange),
	}
}

// UpdateConfig swaps the gate's tuning, for config hot reload.
func (g *Gate) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// HandleDocumentChange tracks a document edit. Undo/redo and ignored
// documents do not open a trigger window.
func (g *Gate) HandleDocumentChange(ev event.DocumentChanged) {
	if ev.Doc.IsZero() || ev.IsUndoRedo {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.state.RecordEdit(now)

	if prev := g.changes[ev.Doc]; prev != nil && prev.pending != nil {
		prev.pending.Stop()
	}
	g.changes[ev.Doc] = &lastChange{
		lastEdited:   now,
		lineTriggers: make(map[int]time.Time),
		generation:   ev.Generation,
	}
}

// HandleSelectionChange runs the gating decision for a cursor move.
func (g *Gate) HandleSelectionChange(ev event.SelectionChanged) {
	if ev.Doc.IsZero() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	prevDoc := g.prevDoc
	g.prevDoc = ev.Doc

	if !ev.IsCaret() {
		return
	}

	now := g.clock.Now()

	// An active rejection cooldown suppresses everything and untracks
	// the document, including the switch path below.
	if last := g.state.LastRejection(); !last.IsZero() && now.Sub(last) < g.cfg.RejectionCooldown {
		g.deleteChangeLocked(ev.Doc)
		return
	}

	lc := g.changes[ev.Doc]
	if lc != nil &&
		now.Sub(lc.lastEdited) < recentEditWindow &&
		recentRequestLocked(g.state, now) {
		g.fireSelectionLocked(ev, lc, now)
		return
	}

	g.trySwitchLocked(ev, prevDoc, now)
}

// fireSelectionLocked handles the tracked-document path.
func (g *Gate) fireSelectionLocked(ev event.SelectionChanged, lc *lastChange, now time.Time) {
	if t, ok := lc.lineTriggers[ev.Line]; ok && now.Sub(t) < g.cfg.SameLineCooldown {
		// A reloaded notebook cell or the editor-change override
		// bypasses the cooldown.
		if !g.cfg.TriggerOnEditorChange && ev.Generation == lc.generation {
			return
		}
	}

	lc.lineTriggers[ev.Line] = now
	if len(lc.lineTriggers) > maxLineTriggers {
		for line, t := range lc.lineTriggers {
			if now.Sub(t) > g.cfg.EditAgeLimit {
				delete(lc.lineTriggers, line)
			}
		}
	}

	trig := Trigger{
		ID:      uuid.NewString(),
		Doc:     ev.Doc,
		Reason:  ReasonSelectionChange,
		Cursors: append([]edit.Range(nil), ev.Ranges...),
	}

	lc.nConsecutive++
	if lc.nConsecutive <= immediateFires || g.cfg.DebounceInterval <= 0 {
		g.logger.Debug("trigger", "doc", ev.Doc, "reason", trig.Reason, "id", trig.ID)
		g.emit(trig)
		return
	}

	// Third and later consecutive fires collapse into one replaceable
	// delayed fire.
	if lc.pending != nil {
		lc.pending.Stop()
	}
	lc.pending = g.clock.AfterFunc(g.cfg.DebounceInterval, func() {
		g.mu.Lock()
		if cur := g.changes[ev.Doc]; cur == lc {
			lc.pending = nil
		}
		g.mu.Unlock()
		g.logger.Debug("debounced trigger", "doc", ev.Doc, "id", trig.ID)
		g.emit(trig)
	})
}

// trySwitchLocked handles the document-switch path.
func (g *Gate) trySwitchLocked(ev event.SelectionChanged, prevDoc document.ID, now time.Time) {
	if g.cfg.SwitchWindow <= 0 {
		return
	}
	if ev.Doc == prevDoc {
		return
	}
	if lastEdit := g.state.LastEdit(); lastEdit.IsZero() || now.Sub(lastEdit) >= g.cfg.SwitchWindow {
		return
	}
	if lastReq := g.state.LastRequest(); lastReq.IsZero() || now.Sub(lastReq) >= g.cfg.SwitchWindow {
		return
	}
	if g.cfg.SwitchStrategy == SwitchAfterAcceptance && !g.state.LastAccepted(now) {
		return
	}

	// Seed a tracked entry for the destination so the next cursor move
	// there takes the tracked path instead of dying here. A debounce
	// still pending from before the switch must not fire into the
	// fresh record.
	if prev := g.changes[ev.Doc]; prev != nil && prev.pending != nil {
		prev.pending.Stop()
	}
	g.changes[ev.Doc] = &lastChange{
		lastEdited:   now,
		lineTriggers: make(map[int]time.Time),
		generation:   ev.Generation,
		nConsecutive: 1,
	}

	trig := Trigger{
		ID:      uuid.NewString(),
		Doc:     ev.Doc,
		Reason:  ReasonDocumentSwitch,
		Cursors: append([]edit.Range(nil), ev.Ranges...),
	}
	g.logger.Debug("trigger", "doc", ev.Doc, "reason", trig.Reason, "id", trig.ID)
	g.emit(trig)
}

// deleteChangeLocked removes a document's tracking record, stopping any
// pending debounce fire.
func (g *Gate) deleteChangeLocked(doc document.ID) {
	if lc := g.changes[doc]; lc != nil {
		if lc.pending != nil {
			lc.pending.Stop()
		}
		delete(g.changes, doc)
	}
}

// RemoveDoc drops tracking for a closed document.
func (g *Gate) RemoveDoc(doc document.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteChangeLocked(doc)
}

// Stats returns counters for introspection.
func (g *Gate) Stats() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]int{
		"trackedDocs": len(g.changes),
	}
}

func recentRequestLocked(st *session.State, now time.Time) bool {
	last := st.LastRequest()
	return !last.IsZero() && now.Sub(last) < recentRequestWindow
}
