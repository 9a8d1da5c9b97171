package cli

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFormatSignedPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.254, "+1.25%"},
		{-0.3, "-0.30%"},
		{0, "0.00%"},
	}
	for _, tt := range tests {
		if got := FormatSignedPercent(tt.in); got != tt.want {
			t.Errorf("FormatSignedPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{1234, "1.2k"},
		{34500, "34.5k"},
	}
	for _, tt := range tests {
		if got := FormatTokenCount(tt.in); got != tt.want {
			t.Errorf("FormatTokenCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Formatted percentages always parse back to a number with the right
// sign, and truncation never exceeds the requested width.
func TestProperty_FormatHelpers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("signed percent round-trips with sign", prop.ForAll(
		func(pct float64) bool {
			formatted := FormatSignedPercent(pct)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(formatted, "+"), "%"), 64)
			if err != nil {
				t.Logf("unparseable: %q", formatted)
				return false
			}
			if pct > 0.005 && parsed <= 0 {
				return false
			}
			if pct < -0.005 && parsed >= 0 {
				return false
			}
			return true
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.Property("truncation respects the rune budget", prop.ForAll(
		func(s string, n int) bool {
			got := TruncateRunes(s, n)
			if utf8.RuneCountInString(got) > n {
				t.Logf("TruncateRunes(%q, %d) = %q", s, n, got)
				return false
			}
			return !strings.Contains(got, "\n")
		},
		gen.AnyString(),
		gen.IntRange(1, 40),
	))

	properties.Property("short strings pass through unchanged", prop.ForAll(
		func(s string) bool {
			if strings.Contains(s, "\n") {
				return true
			}
			n := utf8.RuneCountInString(s)
			return TruncateRunes(s, n+1) == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
