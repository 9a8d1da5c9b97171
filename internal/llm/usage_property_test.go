package llm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	openai "github.com/sashabaranov/go-openai"
)

// Token accounting over a multi-step pipeline is plain addition; the
// order steps report in never changes the totals.
func TestProperty_UsageAccumulationIsAdditive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("totals equal the sum of step reports", prop.ForAll(
		func(prompts, completions []int) bool {
			n := len(prompts)
			if len(completions) < n {
				n = len(completions)
			}
			var rec UsageRecord
			wantPrompt, wantCompletion := 0, 0
			for i := 0; i < n; i++ {
				u := &openai.Usage{
					PromptTokens:     prompts[i],
					CompletionTokens: completions[i],
					TotalTokens:      prompts[i] + completions[i],
				}
				rec.Add(u)
				wantPrompt += prompts[i]
				wantCompletion += completions[i]
			}
			return rec.PromptTokens == wantPrompt &&
				rec.CompletionTokens == wantCompletion &&
				rec.TotalTokens == wantPrompt+wantCompletion
		},
		gen.SliceOf(gen.IntRange(0, 5000)),
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.Property("nil reports never change the record", prop.ForAll(
		func(prompt, completion int) bool {
			rec := UsageRecord{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
			before := rec
			rec.Add(nil)
			return rec == before
		},
		gen.IntRange(0, 5000),
		gen.IntRange(0, 5000),
	))

	properties.TestingRun(t)
}

// The character estimate only fills in when the upstream reported no
// exact totals at all; any exact total wins outright.
func TestProperty_EstimateOnlyWithoutExactTotals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("exact totals suppress the estimate", prop.ForAll(
		func(total, promptChars, outputChars int) bool {
			rec := UsageRecord{TotalTokens: total}
			rec.AddPromptChars(promptChars)
			rec.AddOutputChars(outputChars)
			payload := rec.Payload()
			if payload == nil {
				return false
			}
			if payload.Estimated {
				t.Logf("estimated payload despite exact total %d", total)
				return false
			}
			return payload.TotalTokens == total
		},
		gen.IntRange(1, 100000),
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.Property("zero exact total estimates chars/3", prop.ForAll(
		func(promptChars, outputChars int) bool {
			var rec UsageRecord
			rec.AddPromptChars(promptChars)
			rec.AddOutputChars(outputChars)
			payload := rec.Payload()
			if payload == nil || !payload.Estimated {
				return false
			}
			return payload.TotalTokens == (promptChars+outputChars)/3 &&
				payload.PromptChars == promptChars &&
				payload.OutputChars == outputChars
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}
