package suggest

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/clock"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/provider"
	"github.com/dshills/nextedit/internal/suggest/cache"
	"github.com/dshills/nextedit/internal/suggest/session"
	"github.com/dshills/nextedit/internal/suggest/trigger"
)

// EngineOptions wires an Engine.
type EngineOptions struct {
	Trigger trigger.Config
	Service Config
	Cache   cache.StoreConfig
	Backend provider.Provider

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to the package-level logger.
	Logger *log.Logger

	// Sink receives every suggestion produced by a trigger. Optional.
	Sink func(document.ID, Result, error)
}

// Engine is the event-driven assembly: editor events in, suggestions
// out. It tracks each open document's current text and cursor, runs
// the trigger gate over the event stream, and drives the orchestrator
// for every trigger that fires.
type Engine struct {
	mu   sync.Mutex
	docs map[document.ID]*docState

	gate  *trigger.Gate
	svc   *Service
	cache *cache.Store
	state *session.State
	sink  func(document.ID, Result, error)

	ctx    context.Context
	cancel context.CancelFunc

	// inflight counts trigger goroutines; idle signals it reaching zero.
	// A plain counter rather than a WaitGroup because a debounce timer
	// can start a trigger from zero while Wait is already blocking.
	inflight int
	idle     *sync.Cond
}

type docState struct {
	text       string
	generation uint64
	cursors    []edit.Range
}

// NewEngine assembles gate, cache, and orchestrator around a backend.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	st := session.New()
	opts.Cache.Clock = opts.Clock
	opts.Cache.Logger = opts.Logger
	store := cache.NewStore(opts.Cache)
	store.SetCrossDocEviction(opts.Trigger.TriggerOnEditorChange)

	e := &Engine{
		docs:   make(map[document.ID]*docState),
		cache:  store,
		state:  st,
		sink:   opts.Sink,
		ctx:    ctx,
		cancel: cancel,
	}
	e.idle = sync.NewCond(&e.mu)
	e.svc = NewService(opts.Service, store, opts.Backend, st, opts.Clock, opts.Logger)
	e.gate = trigger.NewGate(opts.Trigger, st, opts.Clock, opts.Logger, e.onTrigger)
	return e
}

// Service returns the orchestrator, for direct requests and the
// outcome callbacks.
func (e *Engine) Service() *Service { return e.svc }

// Cache returns the suggestion cache.
func (e *Engine) Cache() *cache.Store { return e.cache }

// Session returns the shared recency and outcome state.
func (e *Engine) Session() *session.State { return e.state }

// OpenDocument registers a document's initial text. Triggers can only
// fire for documents the engine knows the text of.
func (e *Engine) OpenDocument(doc document.ID, text string, generation uint64) {
	if doc.IsZero() {
		return
	}
	e.mu.Lock()
	e.docs[doc] = &docState{text: text, generation: generation}
	e.mu.Unlock()
}

// HandleDocumentChange feeds one document mutation through the engine.
func (e *Engine) HandleDocumentChange(ev event.DocumentChanged) {
	if ev.Doc.IsZero() {
		return
	}
	e.mu.Lock()
	ds := e.docs[ev.Doc]
	if ds == nil {
		ds = &docState{}
		e.docs[ev.Doc] = ds
	}
	ds.text = ev.NewText
	ds.generation = ev.Generation
	e.mu.Unlock()

	e.svc.HandleDocumentChange(ev)
	e.gate.HandleDocumentChange(ev)
}

// HandleSelectionChange feeds one cursor move through the engine.
func (e *Engine) HandleSelectionChange(ev event.SelectionChanged) {
	if ev.Doc.IsZero() {
		return
	}
	e.mu.Lock()
	if ds := e.docs[ev.Doc]; ds != nil {
		ds.cursors = append([]edit.Range(nil), ev.Ranges...)
	}
	e.mu.Unlock()

	e.gate.HandleSelectionChange(ev)
}

// Attach subscribes the engine to an event bus, for adapters that
// publish rather than call directly.
func (e *Engine) Attach(bus *event.Bus) (docs, sels event.Subscription) {
	return bus.SubscribeDocument(e.HandleDocumentChange),
		bus.SubscribeSelection(e.HandleSelectionChange)
}

// CloseDocument drops all state for a closed document.
func (e *Engine) CloseDocument(doc document.ID) {
	e.mu.Lock()
	delete(e.docs, doc)
	e.mu.Unlock()
	e.gate.RemoveDoc(doc)
	e.svc.RemoveDoc(doc)
}

// UpdateTriggerConfig swaps the gate's tuning, for config hot reload.
func (e *Engine) UpdateTriggerConfig(cfg trigger.Config) {
	e.gate.UpdateConfig(cfg)
	e.cache.SetCrossDocEviction(cfg.TriggerOnEditorChange)
}

// Wait blocks until every trigger fired so far has delivered its result
// to the sink. Callers that publish a batch of events and then read
// results, like the replay driver, wait here before summarizing.
func (e *Engine) Wait() {
	e.mu.Lock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	e.mu.Unlock()
}

// Close cancels in-flight requests and waits for them to finish.
func (e *Engine) Close() {
	e.cancel()
	e.Wait()
}

func (e *Engine) onTrigger(t trigger.Trigger) {
	if e.ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	ds := e.docs[t.Doc]
	if ds == nil {
		e.mu.Unlock()
		return
	}
	// The trigger snapshots the cursors that caused it; they beat the
	// engine's last-seen positions, which may already have moved on.
	cursors := t.Cursors
	if len(cursors) == 0 {
		cursors = append([]edit.Range(nil), ds.cursors...)
	}
	q := Query{
		Doc:           t.Doc,
		Text:          ds.text,
		Cursors:       cursors,
		CorrelationID: t.ID,
	}
	e.inflight++
	e.mu.Unlock()

	go func() {
		res, err := e.svc.GetNextEdit(e.ctx, q)
		if e.sink != nil {
			e.sink(t.Doc, res, err)
		}
		e.mu.Lock()
		e.inflight--
		if e.inflight == 0 {
			e.idle.Broadcast()
		}
		e.mu.Unlock()
	}()
}
