package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/dshills/nextedit/internal/config"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/provider"
	"github.com/dshills/nextedit/internal/suggest"
)

// replay drives the engine from a JSON-lines event script. One event
// per line:
//
//	{"type":"open","doc":"file:///a.go","text":"abc"}
//	{"type":"edit","doc":"file:///a.go","start":0,"end":0,"text":"z"}
//	{"type":"cursor","doc":"file:///a.go","offset":3}
//	{"type":"accept"} {"type":"reject"} {"type":"ignore"}
//	{"type":"wait","ms":100}
//	{"type":"close","doc":"file:///a.go"}
//
// Edits carry the replacement only; the replay maintains each
// document's text and derives the post-edit state itself.
type replay struct {
	engine *suggest.Engine
	bus    *event.Bus
	logger *log.Logger
	out    io.Writer

	mu          sync.Mutex
	texts       map[document.ID]string
	generations map[document.ID]uint64
	suggestions int
	empties     int
	failures    int
}

func newReplay(cfg config.Config, backend provider.Provider, logger *log.Logger, out io.Writer) *replay {
	rp := &replay{
		bus:         event.NewBus(logger),
		logger:      logger.With("component", "replay"),
		out:         out,
		texts:       make(map[document.ID]string),
		generations: make(map[document.ID]uint64),
	}
	rp.engine = suggest.NewEngine(suggest.EngineOptions{
		Trigger: cfg.TriggerConfig(),
		Service: cfg.ServiceConfig(),
		Cache:   cfg.StoreConfig(),
		Backend: backend,
		Logger:  logger,
		Sink:    rp.onSuggestion,
	})
	rp.engine.Attach(rp.bus)
	return rp
}

// applyConfig hot-swaps the gate tuning on config reload.
func (r *replay) applyConfig(cfg config.Config) {
	r.engine.UpdateTriggerConfig(cfg.TriggerConfig())
}

// Close shuts the engine down, waiting for in-flight requests.
func (r *replay) Close() {
	r.engine.Close()
}

// Run feeds the script through the engine until EOF or cancellation,
// then waits for triggers fired by the last events to deliver.
func (r *replay) Run(ctx context.Context, in io.Reader) error {
	err := r.run(ctx, in)
	r.engine.Wait()
	return err
}

func (r *replay) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !gjson.Valid(line) {
			return fmt.Errorf("line %d: not valid JSON", lineNo)
		}
		if err := r.apply(ctx, gjson.Parse(line)); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func (r *replay) apply(ctx context.Context, ev gjson.Result) error {
	switch kind := ev.Get("type").String(); kind {
	case "open":
		return r.applyOpen(ev)
	case "edit":
		return r.applyEdit(ev)
	case "cursor":
		return r.applyCursor(ev)
	case "request":
		return r.applyRequest(ctx, ev)
	case "accept":
		r.engine.Service().HandleAcceptance()
	case "reject":
		r.engine.Service().HandleRejection()
	case "ignore":
		r.engine.Service().HandleIgnored()
	case "close":
		doc := document.IDFromURI(ev.Get("doc").String())
		r.mu.Lock()
		delete(r.texts, doc)
		delete(r.generations, doc)
		r.mu.Unlock()
		r.engine.CloseDocument(doc)
	case "wait":
		select {
		case <-time.After(time.Duration(ev.Get("ms").Int()) * time.Millisecond):
		case <-ctx.Done():
		}
	default:
		return fmt.Errorf("unknown event type %q", kind)
	}
	return nil
}

func (r *replay) applyOpen(ev gjson.Result) error {
	doc := document.IDFromURI(ev.Get("doc").String())
	if doc.IsZero() {
		return fmt.Errorf("open event without a doc")
	}
	text := ev.Get("text").String()
	r.mu.Lock()
	r.texts[doc] = text
	gen := r.generations[doc]
	if ev.Get("generation").Exists() {
		gen = ev.Get("generation").Uint()
		r.generations[doc] = gen
	}
	r.mu.Unlock()
	r.engine.OpenDocument(doc, text, gen)
	return nil
}

func (r *replay) applyEdit(ev gjson.Result) error {
	doc := document.IDFromURI(ev.Get("doc").String())
	if doc.IsZero() {
		return fmt.Errorf("edit event without a doc")
	}
	r.mu.Lock()
	before, ok := r.texts[doc]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("edit before open for %s", doc)
	}

	ed := edit.Single(int(ev.Get("start").Int()), int(ev.Get("end").Int()), ev.Get("text").String())
	after, err := ed.Apply(before)
	if err != nil {
		return fmt.Errorf("applying edit to %s: %w", doc, err)
	}

	r.mu.Lock()
	r.texts[doc] = after
	gen := r.generations[doc]
	r.mu.Unlock()

	r.bus.PublishDocument(event.DocumentChanged{
		Doc:        doc,
		Edit:       ed,
		NewText:    after,
		Generation: gen,
		IsUndoRedo: ev.Get("undoRedo").Bool(),
	})
	return nil
}

func (r *replay) applyCursor(ev gjson.Result) error {
	doc := document.IDFromURI(ev.Get("doc").String())
	if doc.IsZero() {
		return fmt.Errorf("cursor event without a doc")
	}
	offset := int(ev.Get("offset").Int())

	r.mu.Lock()
	text := r.texts[doc]
	gen := r.generations[doc]
	r.mu.Unlock()

	line := document.NewSnapshot(text).LineAt(offset)
	if ev.Get("line").Exists() {
		line = int(ev.Get("line").Int())
	}

	kind := event.SelectionKeyboard
	switch ev.Get("kind").String() {
	case "mouse":
		kind = event.SelectionMouse
	case "command":
		kind = event.SelectionCommand
	}

	r.bus.PublishSelection(event.SelectionChanged{
		Doc:        doc,
		Ranges:     []edit.Range{{Start: offset, End: offset}},
		Line:       line,
		Generation: gen,
		Kind:       kind,
	})
	return nil
}

// applyRequest is the editor's explicit-invocation path: it asks the
// orchestrator directly, bypassing the gate, and primes the gate's
// recent-request window as a side effect.
func (r *replay) applyRequest(ctx context.Context, ev gjson.Result) error {
	doc := document.IDFromURI(ev.Get("doc").String())
	if doc.IsZero() {
		return fmt.Errorf("request event without a doc")
	}
	r.mu.Lock()
	text, ok := r.texts[doc]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("request before open for %s", doc)
	}
	offset := int(ev.Get("offset").Int())

	res, err := r.engine.Service().GetNextEdit(ctx, suggest.Query{
		Doc:           doc,
		Text:          text,
		Cursors:       []edit.Range{{Start: offset, End: offset}},
		CorrelationID: uuid.NewString(),
	})
	r.onSuggestion(doc, res, err)
	return nil
}

// onSuggestion receives every suggestion a trigger produced.
func (r *replay) onSuggestion(doc document.ID, res suggest.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err != nil:
		r.failures++
		fmt.Fprintf(r.out, "error doc=%s err=%v\n", doc, err)
	case res.Empty != suggest.NotEmpty:
		r.empties++
		fmt.Fprintf(r.out, "empty doc=%s reason=%s source=%s\n", doc, res.Empty, res.Source)
	default:
		r.suggestions++
		fmt.Fprintf(r.out, "suggestion doc=%s edit=%s cache=%t rebased=%t source=%s\n",
			doc, res.Edit, res.FromCache, res.Rebased, res.Source)
		r.engine.Service().HandleShown(doc, r.texts[doc], res)
	}
}

// Summary prints end-of-run counters.
func (r *replay) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "done suggestions=%d empty=%d errors=%d\n", r.suggestions, r.empties, r.failures)
	for k, v := range r.engine.Cache().Stats() {
		r.logger.Info("cache stat", "name", k, "value", v)
	}
}
