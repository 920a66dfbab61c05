// Package repository holds accepted submission history and the per-challenge
// running minimum.
package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/internal/domain/scoring"
)

// Store provides append-only access to accepted submissions.
type Store interface {
	// Append records an accepted submission and publishes a new snapshot.
	// Returns ErrDuplicateID if the id was stored before.
	Append(ctx context.Context, sub model.Submission) error

	// Lookup returns a stored submission by id or ErrNotFound.
	Lookup(ctx context.Context, id string) (model.Submission, error)

	// Snapshot returns the latest immutable view. It never blocks writers.
	Snapshot() *Snapshot

	Close() error
}

// Snapshot is an immutable view of the history at one version.
// Rankings and the ladder are computed on first use and cached.
type Snapshot struct {
	Version uint64

	all         []model.Submission
	byChallenge map[int][]model.Submission
	handles     int

	ladderOnce sync.Once
	ladder     []model.LadderEntry
	ladderErr  error

	rankMu   sync.Mutex
	rankings map[int][]model.RankingEntry
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byChallenge: map[int][]model.Submission{}, rankings: map[int][]model.RankingEntry{}}
}

// All returns every submission in acceptance order. Callers must not modify it.
func (s *Snapshot) All() []model.Submission { return s.all }

// ByChallenge returns one challenge's submissions in acceptance order.
func (s *Snapshot) ByChallenge(challengeID int) []model.Submission {
	return s.byChallenge[challengeID]
}

// Count returns the number of submissions in the snapshot.
func (s *Snapshot) Count() int { return len(s.all) }

// Submitters returns the number of distinct handles.
func (s *Snapshot) Submitters() int { return s.handles }

// Ranking returns the top limit entries for a challenge.
func (s *Snapshot) Ranking(challengeID, limit int) ([]model.RankingEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.rankMu.Lock()
	entries, ok := s.rankings[challengeID]
	s.rankMu.Unlock()
	if !ok {
		var err error
		entries, err = scoring.RankSubmissions(s.byChallenge[challengeID])
		if err != nil {
			return nil, err
		}
		s.rankMu.Lock()
		s.rankings[challengeID] = entries
		s.rankMu.Unlock()
	}
	return slices.Clone(entries[:min(limit, len(entries))]), nil
}

// Ladder returns the top limit ladder entries.
func (s *Snapshot) Ladder(limit int) ([]model.LadderEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	all, err := s.fullLadder()
	if err != nil {
		return nil, err
	}
	return slices.Clone(all[:min(limit, len(all))]), nil
}

// LadderEntry returns the ladder row for handle or ErrNotFound.
func (s *Snapshot) LadderEntry(handle string) (model.LadderEntry, error) {
	all, err := s.fullLadder()
	if err != nil {
		return model.LadderEntry{}, err
	}
	for _, e := range all {
		if e.Handle == handle {
			return e, nil
		}
	}
	return model.LadderEntry{}, ErrNotFound
}

func (s *Snapshot) fullLadder() ([]model.LadderEntry, error) {
	s.ladderOnce.Do(func() {
		s.ladder, s.ladderErr = scoring.BuildLadder(s.all)
	})
	return s.ladder, s.ladderErr
}
