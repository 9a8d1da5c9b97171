package llm

import "strings"

const completionsPath = "/chat/completions"

// FormatURL normalizes a configured base URL into the final
// chat-completions endpoint. A trailing `/` means the base is already
// versioned and only the completions path is appended; a trailing `#`
// forces the exact remainder with nothing appended; a base already
// ending in the completions path is used as-is. Anything else gets the
// default `/v1` prefix.
func FormatURL(base string) string {
	if base == "" {
		return ""
	}
	base = strings.TrimSpace(base)

	if strings.HasSuffix(base, completionsPath) || strings.HasSuffix(base, completionsPath+"/") {
		return strings.TrimRight(base, "/")
	}
	if strings.HasSuffix(base, "/") {
		return base + "chat/completions"
	}
	if strings.HasSuffix(base, "#") {
		return strings.ReplaceAll(base, "#", "")
	}
	return base + "/v1" + completionsPath
}
