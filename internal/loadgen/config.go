// Package loadgen drives a running codegolf service with generated
// submitters and checks the rankings and ladder it serves.
package loadgen

import "time"

// Defaults for Config fields left at zero.
const (
	DefaultSubmitters   = 20
	DefaultSubmissions  = 200
	DefaultWorkers      = 4
	DefaultTimeout      = 10 * time.Second
	DefaultLimit        = 100
	DefaultMinCodeBytes = 16
	DefaultMaxCodeBytes = 256
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Submitters   int           // Distinct handles to generate
	Submissions  int           // Submissions to generate
	Replays      int           // Extra submissions that reuse an earlier submission_id
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	Limit        int           // limit used for ranking and ladder queries
	MinCodeBytes int
	MaxCodeBytes int
	Seed         int64 // 0 picks a time based seed
}

func (c Config) withDefaults() Config {
	if c.Submitters <= 0 {
		c.Submitters = DefaultSubmitters
	}
	if c.Submissions <= 0 {
		c.Submissions = DefaultSubmissions
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.MinCodeBytes <= 0 {
		c.MinCodeBytes = DefaultMinCodeBytes
	}
	if c.MaxCodeBytes < c.MinCodeBytes {
		c.MaxCodeBytes = max(DefaultMaxCodeBytes, c.MinCodeBytes)
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Stats holds run statistics.
type Stats struct {
	Seed          int64
	Generated     int
	Submitted     int
	Accepted      int
	Duplicate     int
	InFlight      int
	Failed        int
	RateLimited   int
	LadderEntries int
	CrossChecked  bool
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
