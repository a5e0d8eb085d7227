package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/config"
	"github.com/dshills/nextedit/internal/engine/edit"
	"github.com/dshills/nextedit/internal/provider"
)

// scriptedBackend returns one fixed proposal per request and counts
// calls.
type scriptedBackend struct {
	calls    atomic.Int64
	proposal provider.Proposal
}

func (b *scriptedBackend) StreamEdits(ctx context.Context, _ provider.Request) *provider.EditStream {
	b.calls.Add(1)
	s, push, finish := provider.NewEditStream(ctx)
	go func() {
		push(b.proposal)
		finish(provider.Completion{Reason: provider.ReasonNoSuggestions})
	}()
	return s
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestReplayEndToEnd(t *testing.T) {
	backend := &scriptedBackend{proposal: provider.Proposal{
		Replacement: edit.NewReplacement(1, 2, "X"),
		ValidWindow: &edit.Range{Start: 0, End: 3},
	}}
	var out bytes.Buffer
	rp := newReplay(config.Default(), backend, quietLogger(), &out)

	// Explicit request fetches once; the typed "z" then shifts the
	// cached suggestion, and the cursor move is served by rebase.
	script := strings.Join([]string{
		`{"type":"open","doc":"file:///a.go","text":"abc"}`,
		`{"type":"request","doc":"file:///a.go","offset":2}`,
		`{"type":"edit","doc":"file:///a.go","start":0,"end":0,"text":"z"}`,
		`{"type":"cursor","doc":"file:///a.go","offset":3}`,
	}, "\n")

	if err := rp.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rp.Close()

	got := out.String()
	if !strings.Contains(got, `[1:2) -> "X"`) {
		t.Fatalf("explicit request result missing from output:\n%s", got)
	}
	if !strings.Contains(got, `[2:3) -> "X"`) || !strings.Contains(got, "rebased=true") {
		t.Fatalf("rebased suggestion missing from output:\n%s", got)
	}
	if n := backend.calls.Load(); n != 1 {
		t.Fatalf("backend called %d times, want 1 (second served from cache)", n)
	}
}

func TestReplayRejectsMalformedScript(t *testing.T) {
	rp := newReplay(config.Default(), &scriptedBackend{}, quietLogger(), io.Discard)
	defer rp.Close()

	err := rp.Run(context.Background(), strings.NewReader(`{"type":"edit","doc":"file:///a.go"}`))
	if err == nil {
		t.Fatal("edit before open did not error")
	}

	err = rp.Run(context.Background(), strings.NewReader("not json"))
	if err == nil {
		t.Fatal("malformed line did not error")
	}
}

func TestReplaySkipsCommentsAndBlanks(t *testing.T) {
	rp := newReplay(config.Default(), &scriptedBackend{}, quietLogger(), io.Discard)
	defer rp.Close()

	script := "# recorded 2026-08-12\n\n" + `{"type":"open","doc":"file:///a.go","text":"abc"}` + "\n"
	if err := rp.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
