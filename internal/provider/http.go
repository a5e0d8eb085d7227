package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

// HTTPBackend talks to a suggestion service over a JSON-lines protocol:
// one POST per request, the response body a stream of JSON objects
// separated by newlines. Each line is either an edit proposal
//
//	{"kind":"edit","start":N,"end":N,"text":"...","cursorJump":bool,
//	 "windowStart":N,"windowEnd":N,"targetDoc":"..."}
//
// or a terminator
//
//	{"kind":"done","reason":"no-suggestions","nextCursor":N}
//
// A missing terminator is treated as an unexpected completion.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// HTTPBackendConfig configures an HTTPBackend.
type HTTPBackendConfig struct {
	// Endpoint is the suggestion service URL.
	Endpoint string

	// Timeout bounds the whole request, including streaming.
	// Zero means no timeout.
	Timeout time.Duration

	// Logger defaults to the package-level logger.
	Logger *log.Logger
}

// NewHTTPBackend creates a backend for the given endpoint.
func NewHTTPBackend(cfg HTTPBackendConfig) *HTTPBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPBackend{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With("component", "provider.http"),
	}
}

// StreamEdits implements Provider.
func (b *HTTPBackend) StreamEdits(ctx context.Context, req Request) *EditStream {
	body, err := encodeRequest(req)
	if err != nil {
		return FailedStream(Completion{Reason: ReasonUnexpected, Err: err})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(body))
	if err != nil {
		return FailedStream(Completion{Reason: ReasonUnexpected, Err: err})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	stream, push, finish := NewEditStream(ctx)
	go func() {
		finish(b.consume(ctx, httpReq, req, push))
	}()
	return stream
}

// consume drives one HTTP request to completion, pushing proposals as
// lines arrive.
func (b *HTTPBackend) consume(ctx context.Context, httpReq *http.Request, req Request, push func(Proposal) bool) Completion {
	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Completion{Reason: ReasonCancelled}
		}
		b.logger.Error("request failed", "doc", req.DocID, "err", err)
		return Completion{Reason: ReasonFetchFailure, Err: fmt.Errorf("%w: %v", ErrFetchFailure, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		b.logger.Error("request rejected", "doc", req.DocID, "status", resp.StatusCode)
		return Completion{
			Reason: ReasonFetchFailure,
			Err:    fmt.Errorf("%w: status %d: %s", ErrFetchFailure, resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parsed := gjson.Parse(line)
		switch parsed.Get("kind").String() {
		case "edit":
			p := decodeProposal(parsed)
			if !push(p) {
				return Completion{Reason: ReasonCancelled}
			}
		case "done":
			return decodeCompletion(parsed)
		default:
			b.logger.Warn("unknown line kind", "doc", req.DocID, "kind", parsed.Get("kind").String())
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Completion{Reason: ReasonCancelled}
		}
		return Completion{Reason: ReasonFetchFailure, Err: fmt.Errorf("%w: %v", ErrFetchFailure, err)}
	}
	return Completion{Reason: ReasonUnexpected, Err: errors.New("stream ended without terminator")}
}

// encodeRequest builds the request JSON.
func encodeRequest(req Request) (string, error) {
	body := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.Set(body, path, value)
	}

	set("doc", req.DocID.String())
	set("text", req.Text)
	set("cursor", req.CursorOffset)
	set("expandWindow", req.ExpandWindow)
	set("correlationId", req.CorrelationID)
	for i, re := range req.RecentEdits {
		prefix := fmt.Sprintf("recentEdits.%d.", i)
		set(prefix+"doc", re.DocID.String())
		set(prefix+"textAfter", re.TextAfter)
		for j, r := range re.Edit.Replacements() {
			rp := fmt.Sprintf("%sedits.%d.", prefix, j)
			set(rp+"start", r.Range.Start)
			set(rp+"end", r.Range.End)
			set(rp+"text", r.Text)
		}
	}
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	return body, nil
}

// decodeProposal parses one "edit" line.
func decodeProposal(v gjson.Result) Proposal {
	p := Proposal{
		Replacement: edit.NewReplacement(
			int(v.Get("start").Int()),
			int(v.Get("end").Int()),
			v.Get("text").String(),
		),
		IsFromCursorJump: v.Get("cursorJump").Bool(),
		TargetDocument:   document.ID(v.Get("targetDoc").String()),
	}
	if ws := v.Get("windowStart"); ws.Exists() {
		w := edit.NewRange(int(ws.Int()), int(v.Get("windowEnd").Int()))
		p.ValidWindow = &w
	}
	return p
}

// decodeCompletion parses the "done" line.
func decodeCompletion(v gjson.Result) Completion {
	switch v.Get("reason").String() {
	case "no-suggestions":
		c := Completion{Reason: ReasonNoSuggestions}
		if nc := v.Get("nextCursor"); nc.Exists() {
			off := int(nc.Int())
			c.NextCursor = &off
		}
		return c
	case "cancelled":
		return Completion{Reason: ReasonCancelled}
	case "fetch-failure":
		return Completion{Reason: ReasonFetchFailure, Err: fmt.Errorf("%w: %s", ErrFetchFailure, v.Get("message").String())}
	default:
		return Completion{Reason: ReasonUnexpected, Err: errors.New(v.Get("message").String())}
	}
}
