package loadgen

import (
	"fmt"

	"github.com/okian/codegolf/internal/domain/model"
)

// VerifyRanking checks ordering, dense ranks and score bounds of one
// challenge ranking.
func VerifyRanking(ch model.Challenge, entries []model.RankingEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: challenge %d entry %d has rank %d", ErrVerification, ch.ID, i, e.Rank)
		}
		if e.Score < 0 || e.Score > ch.Difficulty {
			return fmt.Errorf("%w: challenge %d score %d outside [0, %d]", ErrVerification, ch.ID, e.Score, ch.Difficulty)
		}
		if _, dup := seen[e.Handle]; dup {
			return fmt.Errorf("%w: challenge %d lists %s twice", ErrVerification, ch.ID, e.Handle)
		}
		seen[e.Handle] = struct{}{}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		switch {
		case e.Score > prev.Score:
			return fmt.Errorf("%w: challenge %d rank %d outscores rank %d", ErrVerification, ch.ID, e.Rank, prev.Rank)
		case e.Score == prev.Score && e.SubmittedAt.Before(prev.SubmittedAt):
			return fmt.Errorf("%w: challenge %d tie at rank %d not ordered by time", ErrVerification, ch.ID, e.Rank)
		}
	}
	return nil
}

// VerifyLadder checks ordering and dense ranks of the ladder.
func VerifyLadder(entries []model.LadderEntry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: ladder entry %d has rank %d", ErrVerification, i, e.Rank)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		switch {
		case e.TotalScore > prev.TotalScore:
			return fmt.Errorf("%w: ladder rank %d outscores rank %d", ErrVerification, e.Rank, prev.Rank)
		case e.TotalScore == prev.TotalScore && e.SolvedCount > prev.SolvedCount:
			return fmt.Errorf("%w: ladder tie at rank %d not ordered by solved count", ErrVerification, e.Rank)
		case e.TotalScore == prev.TotalScore && e.SolvedCount == prev.SolvedCount && e.Handle < prev.Handle:
			return fmt.Errorf("%w: ladder tie at rank %d not ordered by handle", ErrVerification, e.Rank)
		}
	}
	return nil
}

// CrossCheck compares every ladder total with the sum of that handle's
// ranking scores. Rankings and ladder must be complete.
func CrossCheck(rankings map[int][]model.RankingEntry, ladder []model.LadderEntry) error {
	totals := make(map[string]int)
	solved := make(map[string]int)
	for _, entries := range rankings {
		for _, e := range entries {
			totals[e.Handle] += e.Score
			solved[e.Handle]++
		}
	}
	if len(totals) != len(ladder) {
		return fmt.Errorf("%w: rankings list %d handles, ladder %d", ErrVerification, len(totals), len(ladder))
	}
	for _, e := range ladder {
		if totals[e.Handle] != e.TotalScore || solved[e.Handle] != e.SolvedCount {
			return fmt.Errorf("%w: %s ladder total %d/%d, rankings give %d/%d", ErrVerification,
				e.Handle, e.TotalScore, e.SolvedCount, totals[e.Handle], solved[e.Handle])
		}
	}
	return nil
}
