package event

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

func newTestBus() *Bus {
	return NewBus(log.New(io.Discard))
}

func TestBusDeliversInOrder(t *testing.T) {
	b := newTestBus()
	var seen []string
	b.SubscribeDocument(func(ev DocumentChanged) {
		seen = append(seen, ev.NewText)
	})

	doc := document.ID("file:///a.go")
	for _, text := range []string{"a", "ab", "abc"} {
		b.PublishDocument(DocumentChanged{Doc: doc, NewText: text})
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "abc" {
		t.Fatalf("delivery order = %v, want [a ab abc]", seen)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := newTestBus()
	n := 0
	sub := b.SubscribeSelection(func(SelectionChanged) { n++ })

	ev := SelectionChanged{
		Doc:    document.ID("file:///a.go"),
		Ranges: []edit.Range{{Start: 0, End: 0}},
	}
	b.PublishSelection(ev)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	b.PublishSelection(ev)

	if n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	b := newTestBus()
	b.SubscribeDocument(func(DocumentChanged) { panic("boom") })
	reached := false
	b.SubscribeDocument(func(DocumentChanged) { reached = true })

	b.PublishDocument(DocumentChanged{Doc: document.ID("file:///a.go")})

	if !reached {
		t.Fatal("panic in one handler blocked the next")
	}
	if b.Stats()["panics"] != 1 {
		t.Fatalf("panics = %d, want 1", b.Stats()["panics"])
	}
}
