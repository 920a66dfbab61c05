package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/logger"
)

const (
	maxRateLimitRetries = 5
	rateLimitBackoff    = 50 * time.Millisecond
)

// Run generates submissions, posts them concurrently, then reads back the
// rankings and ladder and verifies them.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = cfg.withDefaults()
	stats := &Stats{Seed: cfg.Seed, StartTime: time.Now()}
	log := logger.Named("loadgen")

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("submitters", cfg.Submitters),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("replays", cfg.Replays),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", cfg.Seed))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	challenges, err := client.Challenges(ctx)
	if err != nil {
		return stats, fmt.Errorf("list challenges: %w", err)
	}
	if len(challenges) == 0 {
		return stats, ErrNoChallenges
	}

	gen := NewGenerator(cfg.Seed)
	plan := gen.Plan(challenges, gen.Handles(cfg.Submitters), cfg.Submissions, cfg.Replays, cfg.MinCodeBytes, cfg.MaxCodeBytes)
	stats.Generated = len(plan)

	submitAll(ctx, client, cfg.Workers, plan, stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	rankings := make(map[int][]model.RankingEntry, len(challenges))
	complete := true
	for _, ch := range challenges {
		entries, err := client.Ranking(ctx, ch.ID, cfg.Limit)
		if err != nil {
			return stats, fmt.Errorf("ranking for challenge %d: %w", ch.ID, err)
		}
		if err := VerifyRanking(ch, entries); err != nil {
			return stats, err
		}
		rankings[ch.ID] = entries
		complete = complete && len(entries) < cfg.Limit
	}

	ladder, err := client.Ladder(ctx, cfg.Limit)
	if err != nil {
		return stats, fmt.Errorf("ladder: %w", err)
	}
	stats.LadderEntries = len(ladder)
	if err := VerifyLadder(ladder); err != nil {
		return stats, err
	}
	if complete && len(ladder) < cfg.Limit {
		if err := CrossCheck(rankings, ladder); err != nil {
			return stats, err
		}
		stats.CrossChecked = true
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)
	return stats, nil
}

func submitAll(ctx context.Context, client *Client, workers int, plan []Planned, stats *Stats) {
	jobs := make(chan Planned)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				res, limited, err := submitWithRetry(ctx, client, p)
				mu.Lock()
				stats.Submitted++
				stats.RateLimited += limited
				record(stats, res, err)
				mu.Unlock()
			}
		}()
	}

	// Originals go first so replays usually find their id committed.
	for _, p := range plan {
		select {
		case jobs <- p:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}

func record(stats *Stats, res SubmitResult, err error) {
	var apiErr *APIError
	switch {
	case err == nil && res.Duplicate:
		stats.Duplicate++
	case err == nil:
		stats.Accepted++
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict:
		stats.InFlight++
	default:
		stats.Failed++
	}
}

// submitWithRetry retries rate limited submissions with linear backoff and
// reports how many attempts were rate limited.
func submitWithRetry(ctx context.Context, client *Client, p Planned) (SubmitResult, int, error) {
	limited := 0
	for attempt := 1; ; attempt++ {
		res, err := client.Submit(ctx, p.ChallengeID, p.Request)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
			return res, limited, err
		}
		limited++
		if attempt > maxRateLimitRetries {
			return res, limited, err
		}
		select {
		case <-ctx.Done():
			return res, limited, ctx.Err()
		case <-time.After(time.Duration(attempt) * rateLimitBackoff):
		}
	}
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int64("seed", stats.Seed),
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("inFlight", stats.InFlight),
		logger.Int("failed", stats.Failed),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("ladderEntries", stats.LadderEntries),
		logger.Bool("crossChecked", stats.CrossChecked),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("submissionsPerSecond", perSecond))
}
