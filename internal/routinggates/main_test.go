package routinggates

import (
	"os"
	"testing"
)

// The gates run against production settings with no external services: an
// in-memory limiter, console logging only and no tracing exporter.
func TestMain(m *testing.M) {
	for k, v := range map[string]string{
		"GO_APP_ENV":          "production",
		"RATE_LIMIT_STORAGE":  "memory",
		"LOG_ADAPTERS":        "prettyConsoleError",
		"OTEL_ENABLED":        "false",
		"MIGRATIONS_ON_START": "false",
	} {
		_ = os.Setenv(k, v)
	}
	os.Exit(m.Run())
}
