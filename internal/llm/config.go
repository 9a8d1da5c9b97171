package llm

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Built-in fallbacks used when neither the request nor the process
// configuration supplies a value.
const (
	DefaultURL     = "https://api.openai.com/v1/chat/completions"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 60 * time.Second
)

// Config is the fully resolved model-endpoint configuration one client
// instance operates with.
type Config struct {
	URL     string
	Key     string
	Model   string
	Timeout time.Duration
}

// Overrides carries raw, possibly blank configuration strings from one
// precedence tier. Timeout stays a string so a malformed value can
// degrade to the default instead of failing request parsing.
type Overrides struct {
	URL     string
	Key     string
	Model   string
	Timeout string
}

// Resolve merges per-request overrides over process-level defaults over
// the built-in fallbacks. Blank strings never win a tier. An invalid or
// non-positive timeout is logged and replaced by the 60s default; it is
// never an error.
func Resolve(override, defaults Overrides, log zerolog.Logger) Config {
	cfg := Config{
		URL:   pick(override.URL, defaults.URL, DefaultURL),
		Key:   strings.TrimSpace(pick(override.Key, defaults.Key, "")),
		Model: pick(override.Model, defaults.Model, DefaultModel),
	}

	timeoutStr := pick(override.Timeout, defaults.Timeout, "60")
	secs, err := strconv.Atoi(timeoutStr)
	if err != nil || secs <= 0 {
		log.Warn().
			Str("value", timeoutStr).
			Msg("Invalid API timeout, using 60s default")
		cfg.Timeout = DefaultTimeout
	} else {
		cfg.Timeout = time.Duration(secs) * time.Second
	}

	return cfg
}

// pick returns the first value that is non-blank after trimming.
func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
