package llm

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFormatURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"full path kept", "https://api.openai.com/v1/chat/completions", "https://api.openai.com/v1/chat/completions"},
		{"full path trailing slash stripped", "https://api.openai.com/v1/chat/completions/", "https://api.openai.com/v1/chat/completions"},
		{"trailing slash appends suffix", "https://example.com/v1/", "https://example.com/v1/chat/completions"},
		{"hash means exact url", "https://example.com/custom/endpoint#", "https://example.com/custom/endpoint"},
		{"multiple hashes all removed", "https://example.com/a#b#", "https://example.com/ab"},
		{"bare host gets default path", "https://example.com", "https://example.com/v1/chat/completions"},
		{"host with path gets default path", "https://example.com/proxy", "https://example.com/proxy/v1/chat/completions"},
		{"custom completions path kept", "https://example.com/custom/chat/completions", "https://example.com/custom/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatURL(tt.in); got != tt.want {
				t.Errorf("FormatURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Formatted URLs always end with the completions path unless the caller
// pinned the exact URL with a trailing hash.
func TestProperty_FormatURLEndsWithCompletionsPath(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("non-hash URLs end with /chat/completions", prop.ForAll(
		func(host, path string) bool {
			base := "https://" + host + "/" + path
			if strings.Contains(base, "#") {
				return true
			}
			got := FormatURL(base)
			if !strings.HasSuffix(got, "/chat/completions") {
				t.Logf("FormatURL(%q) = %q lacks completions suffix", base, got)
				return false
			}
			return !strings.HasSuffix(got, "/chat/completions/")
		},
		gen.RegexMatch(`[a-z]{1,10}\.[a-z]{2,3}`),
		gen.RegexMatch(`[a-z0-9/]{0,20}`),
	))

	properties.Property("formatting is idempotent for non-hash URLs", prop.ForAll(
		func(host string) bool {
			base := "https://" + host
			once := FormatURL(base)
			return FormatURL(once) == once
		},
		gen.RegexMatch(`[a-z]{1,10}\.[a-z]{2,3}`),
	))

	properties.TestingRun(t)
}
