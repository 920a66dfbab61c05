package repository

import (
	"context"
	"sync"

	"github.com/okian/codegolf/pkg/metrics"
)

// MinimumTracker owns the running minimum byte length per challenge.
// Evaluations for one challenge are serialised; different challenges
// proceed in parallel.
type MinimumTracker struct {
	mu      sync.Mutex
	entries map[int]*minimumEntry
}

type minimumEntry struct {
	mu  sync.Mutex
	min int // 0 until the first accepted submission
}

// NewMinimumTracker returns an empty tracker.
func NewMinimumTracker() *MinimumTracker {
	return &MinimumTracker{entries: make(map[int]*minimumEntry)}
}

func (t *MinimumTracker) entry(challengeID int) *minimumEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[challengeID]
	if !ok {
		e = &minimumEntry{}
		t.entries[challengeID] = e
	}
	return e
}

// Current returns the committed minimum, or 0 if none exists yet.
func (t *MinimumTracker) Current(challengeID int) int {
	e := t.entry(challengeID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.min
}

// Evaluate calls fn with the current minimum while holding the challenge's
// lock. The minimum fn returns is committed only when fn succeeds.
func (t *MinimumTracker) Evaluate(ctx context.Context, challengeID int, fn func(currentMin int) (int, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := t.entry(challengeID)
	e.mu.Lock()
	defer e.mu.Unlock()

	newMin, err := fn(e.min)
	if err != nil {
		return err
	}
	if newMin != e.min {
		metrics.RecordMinimumImprovement()
	}
	e.min = newMin
	return nil
}
