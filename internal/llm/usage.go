package llm

import (
	openai "github.com/sashabaranov/go-openai"

	"stock-scanner/internal/events"
)

// estimateDivisor is the fixed characters-per-token ratio used when the
// upstream never reports usage.
const estimateDivisor = 3

// UsageRecord additively accumulates token usage across the calls of one
// ticker's pipeline, tracking character counts in parallel so a cost
// estimate is available when the upstream reports nothing.
type UsageRecord struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	PromptChars int
	OutputChars int
}

// Add accumulates one call's reported usage. A nil usage is a no-op.
func (r *UsageRecord) Add(u *openai.Usage) {
	if u == nil {
		return
	}
	r.PromptTokens += u.PromptTokens
	r.CompletionTokens += u.CompletionTokens
	r.TotalTokens += u.TotalTokens
}

// AddPromptChars records the character length of a prompt sent upstream.
func (r *UsageRecord) AddPromptChars(n int) {
	r.PromptChars += n
}

// AddOutputChars records the character length of generated output.
func (r *UsageRecord) AddOutputChars(n int) {
	r.OutputChars += n
}

// Payload converts the record to its wire form. Exact usage wins; the
// character estimate applies only when the accumulated exact total is
// exactly zero.
func (r *UsageRecord) Payload() *events.TokenUsage {
	if r.TotalTokens > 0 {
		return &events.TokenUsage{
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			TotalTokens:      r.TotalTokens,
		}
	}
	return &events.TokenUsage{
		Estimated:   true,
		TotalTokens: (r.PromptChars + r.OutputChars) / estimateDivisor,
		PromptChars: r.PromptChars,
		OutputChars: r.OutputChars,
	}
}
