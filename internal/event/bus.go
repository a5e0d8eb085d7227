package event

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// DocumentHandler consumes document mutations.
type DocumentHandler func(DocumentChanged)

// SelectionHandler consumes cursor moves.
type SelectionHandler func(SelectionChanged)

// Bus delivers editor events to subscribers synchronously, in publish
// order. Per-document ordering of edits matters downstream (rebase
// tracking composes them in sequence), so delivery never reorders or
// drops events. A panicking handler is logged and skipped; it does not
// take the publisher down.
type Bus struct {
	mu         sync.RWMutex
	nextID     int
	documents  map[int]DocumentHandler
	selections map[int]SelectionHandler
	logger     *log.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		documents:  make(map[int]DocumentHandler),
		selections: make(map[int]SelectionHandler),
		logger:     logger.With("component", "event.bus"),
	}
}

// Subscription undoes a subscribe.
type Subscription struct {
	cancel func()
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// SubscribeDocument registers a handler for document mutations.
func (b *Bus) SubscribeDocument(h DocumentHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.documents[id] = h
	return Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.documents, id)
		b.mu.Unlock()
	}}
}

// SubscribeSelection registers a handler for cursor moves.
func (b *Bus) SubscribeSelection(h SelectionHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.selections[id] = h
	return Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.selections, id)
		b.mu.Unlock()
	}}
}

// PublishDocument delivers a document mutation to all subscribers.
func (b *Bus) PublishDocument(ev DocumentChanged) {
	b.mu.RLock()
	handlers := make([]DocumentHandler, 0, len(b.documents))
	for _, h := range b.documents {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	b.published.Add(1)

	for _, h := range handlers {
		b.deliver(func() { h(ev) })
	}
}

// PublishSelection delivers a cursor move to all subscribers.
func (b *Bus) PublishSelection(ev SelectionChanged) {
	b.mu.RLock()
	handlers := make([]SelectionHandler, 0, len(b.selections))
	for _, h := range b.selections {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	b.published.Add(1)

	for _, h := range handlers {
		b.deliver(func() { h(ev) })
	}
}

func (b *Bus) deliver(call func()) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("handler panicked", "recovered", r)
			return
		}
		b.delivered.Add(1)
	}()
	call()
}

// Stats returns delivery counters.
func (b *Bus) Stats() map[string]uint64 {
	return map[string]uint64{
		"published": b.published.Load(),
		"delivered": b.delivered.Load(),
		"panics":    b.panics.Load(),
	}
}
