package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

func drain(t *testing.T, ctx context.Context, stream *EditStream) ([]Proposal, Completion) {
	t.Helper()
	var props []Proposal
	for {
		p, ok := stream.Next(ctx)
		if !ok {
			return props, stream.Completion()
		}
		props = append(props, p)
	}
}

func TestHTTPBackendStreamsProposals(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		fmt.Fprintln(w, `{"kind":"edit","start":2,"end":3,"text":"X","windowStart":0,"windowEnd":5}`)
		fmt.Fprintln(w, `{"kind":"edit","start":7,"end":7,"text":"Y","cursorJump":true}`)
		fmt.Fprintln(w, `{"kind":"done","reason":"no-suggestions"}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx := context.Background()
	stream := b.StreamEdits(ctx, Request{
		DocID:         document.ID("file:///a.go"),
		Text:          "abcdefg",
		CursorOffset:  3,
		ExpandWindow:  true,
		CorrelationID: "corr-1",
	})

	props, compl := drain(t, ctx, stream)
	if compl.Reason != ReasonNoSuggestions {
		t.Fatalf("completion = %v, want no-suggestions", compl.Reason)
	}
	if len(props) != 2 {
		t.Fatalf("got %d proposals, want 2", len(props))
	}
	first := props[0]
	if first.Replacement.Range.Start != 2 || first.Replacement.Range.End != 3 || first.Replacement.Text != "X" {
		t.Errorf("first proposal = %+v", first.Replacement)
	}
	if first.ValidWindow == nil || first.ValidWindow.Start != 0 || first.ValidWindow.End != 5 {
		t.Errorf("first proposal window = %v, want [0:5)", first.ValidWindow)
	}
	if !props[1].IsFromCursorJump {
		t.Error("second proposal should be marked as a cursor jump")
	}

	body := gjson.Parse(gotBody)
	if body.Get("doc").String() != "file:///a.go" || body.Get("cursor").Int() != 3 {
		t.Errorf("request body doc/cursor wrong: %s", gotBody)
	}
	if !body.Get("expandWindow").Bool() {
		t.Errorf("expandWindow not forwarded: %s", gotBody)
	}
	if body.Get("correlationId").String() != "corr-1" {
		t.Errorf("correlationId not forwarded: %s", gotBody)
	}
}

func TestHTTPBackendCursorJumpOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"kind":"done","reason":"no-suggestions","nextCursor":42}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx := context.Background()
	props, compl := drain(t, ctx, b.StreamEdits(ctx, Request{DocID: "d", Text: "x"}))
	if len(props) != 0 {
		t.Fatalf("got %d proposals, want none", len(props))
	}
	if compl.Reason != ReasonNoSuggestions || compl.NextCursor == nil || *compl.NextCursor != 42 {
		t.Fatalf("completion = %+v, want no-suggestions with nextCursor 42", compl)
	}
}

func TestHTTPBackendNon200IsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx := context.Background()
	_, compl := drain(t, ctx, b.StreamEdits(ctx, Request{DocID: "d"}))
	if compl.Reason != ReasonFetchFailure {
		t.Fatalf("completion = %v, want fetch-failure", compl.Reason)
	}
	if !errors.Is(compl.Err, ErrFetchFailure) {
		t.Fatalf("err = %v, want ErrFetchFailure", compl.Err)
	}
}

func TestHTTPBackendMissingTerminator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"kind":"edit","start":0,"end":0,"text":"x"}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx := context.Background()
	props, compl := drain(t, ctx, b.StreamEdits(ctx, Request{DocID: "d"}))
	if len(props) != 1 {
		t.Fatalf("got %d proposals, want 1", len(props))
	}
	if compl.Reason != ReasonUnexpected {
		t.Fatalf("completion = %v, want unexpected", compl.Reason)
	}
}

func TestHTTPBackendErrorTerminator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"kind":"done","reason":"fetch-failure","message":"model unavailable"}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx := context.Background()
	_, compl := drain(t, ctx, b.StreamEdits(ctx, Request{DocID: "d"}))
	if compl.Reason != ReasonFetchFailure || !errors.Is(compl.Err, ErrFetchFailure) {
		t.Fatalf("completion = %+v, want wrapped fetch failure", compl)
	}
}

func TestHTTPBackendCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"kind":"edit","start":0,"end":0,"text":"x"}`)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	b := NewHTTPBackend(HTTPBackendConfig{Endpoint: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	stream := b.StreamEdits(ctx, Request{DocID: "d"})

	if _, ok := stream.Next(ctx); !ok {
		t.Fatal("expected the first proposal before cancelling")
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := stream.Next(context.Background()); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		default:
		}
	}
	if got := stream.Completion().Reason; got != ReasonCancelled {
		t.Fatalf("completion = %v, want cancelled", got)
	}
}

func TestHTTPBackendRecentEditsEncoding(t *testing.T) {
	req := Request{
		DocID: "a",
		Text:  "after",
		RecentEdits: []RecentEdit{
			{DocID: "b", TextAfter: "zb", Edit: edit.Single(0, 0, "z")},
		},
	}
	body, err := encodeRequest(req)
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	v := gjson.Parse(body)
	if v.Get("recentEdits.0.doc").String() != "b" {
		t.Errorf("recent edit doc missing: %s", body)
	}
	if v.Get("recentEdits.0.edits.0.text").String() != "z" {
		t.Errorf("recent edit replacement missing: %s", body)
	}
}
