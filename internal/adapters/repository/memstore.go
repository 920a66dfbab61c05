package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore keeps submission history in memory. Writers append under a
// mutex and publish a fresh Snapshot; readers load the snapshot atomically.
type MemoryStore struct {
	mu          sync.RWMutex
	all         []model.Submission
	byChallenge map[int][]model.Submission
	byID        map[string]int
	handles     map[string]struct{}
	version     uint64
	closed      bool

	snapshot atomic.Pointer[Snapshot]

	metricsUpdateInterval time.Duration
	initialCapacity       int

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		byChallenge:           make(map[int][]model.Submission),
		byID:                  make(map[string]int),
		handles:               make(map[string]struct{}),
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.initialCapacity > 0 {
		s.all = make([]model.Submission, 0, s.initialCapacity)
	}
	s.snapshot.Store(emptySnapshot())
	s.startMetricsUpdater(ctx)
	return s
}

// Append implements Store.Append.
func (s *MemoryStore) Append(ctx context.Context, sub model.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, dup := s.byID[sub.ID]; dup {
		metrics.RecordErrorByComponent("repository", "duplicate_id")
		return fmt.Errorf("%w: %s", ErrDuplicateID, sub.ID)
	}

	s.byID[sub.ID] = len(s.all)
	s.all = append(s.all, sub)
	s.byChallenge[sub.ChallengeID] = append(s.byChallenge[sub.ChallengeID], sub)
	s.handles[sub.Handle] = struct{}{}
	s.version++
	s.publishSnapshotLocked()
	return nil
}

// publishSnapshotLocked publishes the current history. Slices are clipped so
// later appends never become visible through an older snapshot.
func (s *MemoryStore) publishSnapshotLocked() {
	start := time.Now()

	byChallenge := make(map[int][]model.Submission, len(s.byChallenge))
	for id, subs := range s.byChallenge {
		byChallenge[id] = subs[:len(subs):len(subs)]
	}
	snap := &Snapshot{
		Version:     s.version,
		all:         s.all[:len(s.all):len(s.all)],
		byChallenge: byChallenge,
		handles:     len(s.handles),
		rankings:    make(map[int][]model.RankingEntry),
	}
	s.snapshot.Store(snap)

	metrics.RecordRepositorySnapshotRebuildDuration(float64(time.Since(start).Microseconds()) / 1000)
}

// Lookup implements Store.Lookup.
func (s *MemoryStore) Lookup(_ context.Context, id string) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return model.Submission{}, ErrNotFound
	}
	return s.all[i], nil
}

// Snapshot implements Store.Snapshot.
func (s *MemoryStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Close stops the metrics updater and rejects further appends.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}

// startMetricsUpdater periodically reports history size.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	snap := s.Snapshot()
	metrics.UpdateTotalSubmissions(snap.Count())
	metrics.UpdateTotalSubmitters(snap.Submitters())
}
