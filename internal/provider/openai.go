package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/dshills/nextedit/internal/engine/edit"
)

const openAISystemPrompt = `You predict the next edit a programmer will make.
Given the current file text, the cursor byte offset, and the recent edits,
reply with exactly one JSON object and nothing else:
  {"start": <byte offset>, "end": <byte offset>, "text": "<replacement>"}
to propose replacing [start,end) with text, or
  {"none": true}
if no edit is likely. Offsets index into the file text as given.`

// OpenAIBackend produces a single next-edit proposal per request using a
// chat-completion model. The streamed chunks are accumulated; the model's
// final JSON reply is converted into one proposal.
type OpenAIBackend struct {
	client openai.Client
	model  openai.ChatModel
	logger *log.Logger
}

// OpenAIBackendConfig configures an OpenAIBackend.
type OpenAIBackendConfig struct {
	// APIKey authenticates against the API. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string

	// BaseURL overrides the API endpoint, for proxies and compatible
	// servers. Empty means the default.
	BaseURL string

	// Model names the chat model to use.
	Model string

	// Logger defaults to the package-level logger.
	Logger *log.Logger
}

// NewOpenAIBackend creates a backend for the configured model.
func NewOpenAIBackend(cfg OpenAIBackendConfig) *OpenAIBackend {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(cfg.Model),
		logger: logger.With("component", "provider.openai"),
	}
}

// StreamEdits implements Provider.
func (b *OpenAIBackend) StreamEdits(ctx context.Context, req Request) *EditStream {
	stream, push, finish := NewEditStream(ctx)
	go func() {
		finish(b.fetch(ctx, req, push))
	}()
	return stream
}

func (b *OpenAIBackend) fetch(ctx context.Context, req Request, push func(Proposal) bool) Completion {
	chat := b.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(buildOpenAIPrompt(req)),
		},
	})

	var acc openai.ChatCompletionAccumulator
	for chat.Next() {
		acc.AddChunk(chat.Current())
	}
	if err := chat.Err(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Completion{Reason: ReasonCancelled}
		}
		b.logger.Error("completion failed", "doc", req.DocID, "err", err)
		return Completion{Reason: ReasonFetchFailure, Err: fmt.Errorf("%w: %v", ErrFetchFailure, err)}
	}
	if len(acc.Choices) == 0 {
		return Completion{Reason: ReasonUnexpected, Err: errors.New("empty completion")}
	}

	reply := strings.TrimSpace(acc.Choices[0].Message.Content)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	parsed := gjson.Parse(strings.TrimSpace(reply))

	if parsed.Get("none").Bool() {
		return Completion{Reason: ReasonNoSuggestions}
	}
	start := int(parsed.Get("start").Int())
	end := int(parsed.Get("end").Int())
	if start < 0 || end < start || end > len(req.Text) {
		b.logger.Warn("model returned invalid range", "doc", req.DocID, "start", start, "end", end)
		return Completion{Reason: ReasonNoSuggestions}
	}

	p := Proposal{
		Replacement: edit.NewReplacement(start, end, parsed.Get("text").String()),
	}
	w := windowAround(start, end, len(req.Text))
	p.ValidWindow = &w
	if !push(p) {
		return Completion{Reason: ReasonCancelled}
	}
	return Completion{Reason: ReasonNoSuggestions}
}

// buildOpenAIPrompt renders the request for the model.
func buildOpenAIPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\nCursor offset: %d\n", req.DocID, req.CursorOffset)
	if len(req.RecentEdits) > 0 {
		b.WriteString("Recent edits, most recent last:\n")
		for _, re := range req.RecentEdits {
			for _, r := range re.Edit.Replacements() {
				fmt.Fprintf(&b, "- %s: replace [%d,%d) with %q\n", re.DocID, r.Range.Start, r.Range.End, r.Text)
			}
		}
	}
	b.WriteString("File text:\n")
	b.WriteString(req.Text)
	return b.String()
}

// windowAround derives a cursor validity window around an edit range.
func windowAround(start, end, textLen int) edit.Range {
	const margin = 120
	lo := start - margin
	if lo < 0 {
		lo = 0
	}
	hi := end + margin
	if hi > textLen {
		hi = textLen
	}
	return edit.NewRange(lo, hi)
}
