package events

import "encoding/json"

// TokenUsage is the wire form of token accounting. Exact usage reported
// by the upstream serializes as {prompt_tokens, completion_tokens,
// total_tokens}; a character-based estimate serializes as
// {estimated:true, total_tokens, prompt_chars, output_chars}.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	Estimated   bool
	PromptChars int
	OutputChars int
}

// MarshalJSON flattens to the exact or estimated wire shape.
func (u TokenUsage) MarshalJSON() ([]byte, error) {
	if u.Estimated {
		return json.Marshal(struct {
			Estimated   bool `json:"estimated"`
			TotalTokens int  `json:"total_tokens"`
			PromptChars int  `json:"prompt_chars"`
			OutputChars int  `json:"output_chars"`
		}{true, u.TotalTokens, u.PromptChars, u.OutputChars})
	}
	return json.Marshal(struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}{u.PromptTokens, u.CompletionTokens, u.TotalTokens})
}
