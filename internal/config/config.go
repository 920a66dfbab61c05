// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and CODEGOLF_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the outbound dispatch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of dispatch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many submission ids are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps the limit query parameter on rankings and the ladder.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxCodeBytes rejects submissions whose UTF-8 length exceeds it.
	MaxCodeBytes int `koanf:"max_code_bytes"`

	// CatalogBaseURL points at the static competition site. Empty disables remote loading.
	CatalogBaseURL string `koanf:"catalog_base_url"`

	// CatalogTimeoutMS bounds a single catalog request.
	CatalogTimeoutMS int `koanf:"catalog_timeout_ms"`

	// CatalogMaxRetries bounds retries on network and 5xx failures.
	CatalogMaxRetries int `koanf:"catalog_max_retries"`

	// CatalogRefreshSeconds controls periodic catalog reloads; 0 loads once.
	CatalogRefreshSeconds int `koanf:"catalog_refresh_seconds"`

	// SubmitRatePerSecond and SubmitBurst shape the per-client submission limiter.
	SubmitRatePerSecond float64 `koanf:"submit_rate_per_second"`
	SubmitBurst         int     `koanf:"submit_burst"`

	// PublishTopic names the topic accepted submissions are published on.
	PublishTopic string `koanf:"publish_topic"`

	// Challenges seeds the catalog without a remote site.
	Challenges []Challenge `koanf:"challenges"`
}

// Challenge is a statically configured challenge.
type Challenge struct {
	ID           int    `koanf:"id"`
	Title        string `koanf:"title"`
	Description  string `koanf:"description"`
	Difficulty   int    `koanf:"difficulty"`
	InputFormat  string `koanf:"input_format"`
	OutputFormat string `koanf:"output_format"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            100_000,
		MaxLeaderboardLimit:   100,
		MaxCodeBytes:          65_536,
		CatalogTimeoutMS:      5_000,
		CatalogMaxRetries:     2,
		CatalogRefreshSeconds: 300,
		SubmitRatePerSecond:   5,
		SubmitBurst:           10,
		PublishTopic:          "submissions.accepted",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MaxCodeBytes <= 0 {
		return fmt.Errorf("%w: max_code_bytes must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.CatalogBaseURL != "" && !strings.HasPrefix(c.CatalogBaseURL, "http://") && !strings.HasPrefix(c.CatalogBaseURL, "https://") {
		return fmt.Errorf("%w: catalog_base_url must be an http(s) url", ErrInvalidConfig)
	}
	seen := make(map[int]struct{}, len(c.Challenges))
	for _, ch := range c.Challenges {
		if ch.ID <= 0 {
			return fmt.Errorf("%w: challenge id %d must be positive", ErrInvalidConfig, ch.ID)
		}
		if ch.Difficulty <= 0 {
			return fmt.Errorf("%w: challenge %d difficulty must be positive", ErrInvalidConfig, ch.ID)
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("%w: duplicate challenge id %d", ErrInvalidConfig, ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}
	return nil
}
