package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Scanner Configuration

[server]
# HTTP listen address
addr = ":8888"
# Per-user request rate limit (requests per second)
rate_limit_per_sec = 3
# Burst allowance for the rate limiter
rate_limit_burst = 3

[api]
# Model endpoint base URL. Leave empty to use the API_URL environment
# variable or the built-in default.
url = ""
# API key for the model endpoint. Prefer the API_KEY environment variable.
key = ""
# Model name, e.g. "gpt-4o"
model = ""
# Request timeout in seconds
timeout = ""

[database]
# SQLite database file path. Empty uses the config directory.
path = ""

[logging]
# Log level: debug, info, warn, error
level = "info"
# Enable console output
console = true
# Enable rotating file output
file = true
# Log file path. Empty uses the config directory.
file_path = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
