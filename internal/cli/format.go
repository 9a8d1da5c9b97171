package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatSignedPercent formats a percentage with an explicit sign for
// positive values, e.g. "+1.25%" / "-0.30%".
func FormatSignedPercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatTokenCount renders a token count compactly: 850, 1.2k, 34.5k.
func FormatTokenCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%.1fk", float64(n)/1000)
}

// TruncateRunes shortens s to at most n runes, appending "…" when the
// string was cut. Newlines are collapsed so the result stays on one line.
func TruncateRunes(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
