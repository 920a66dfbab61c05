package scoring

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/codegolf/internal/domain/model"
)

// compareSubmissions orders by score desc, then earlier timestamp, then
// handle, then id. The result is a total order.
func compareSubmissions(a, b model.Submission) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Handle, b.Handle); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// RankSubmissions ranks one challenge's submissions. Each handle keeps only its
// best submission; ranks are 1-based positions after ordering.
// An empty input yields an empty ranking.
func RankSubmissions(subs []model.Submission) ([]model.RankingEntry, error) {
	if len(subs) == 0 {
		return []model.RankingEntry{}, nil
	}

	challengeID := subs[0].ChallengeID
	best := make(map[string]model.Submission, len(subs))
	for _, s := range subs {
		if strings.TrimSpace(s.Handle) == "" {
			return nil, fmt.Errorf("%w: submission %q has an empty handle", ErrInvalidInput, s.ID)
		}
		if s.ChallengeID != challengeID {
			return nil, fmt.Errorf("%w: ranking mixes challenges %d and %d", ErrInvalidInput, challengeID, s.ChallengeID)
		}
		if cur, ok := best[s.Handle]; !ok || compareSubmissions(s, cur) < 0 {
			best[s.Handle] = s
		}
	}

	ordered := make([]model.Submission, 0, len(best))
	for _, s := range best {
		ordered = append(ordered, s)
	}
	slices.SortFunc(ordered, compareSubmissions)

	out := make([]model.RankingEntry, len(ordered))
	for i, s := range ordered {
		out[i] = model.RankingEntry{
			ID:          s.ID,
			Handle:      s.Handle,
			ByteCount:   s.ByteCount,
			Score:       s.Score,
			Rank:        i + 1,
			SubmittedAt: s.SubmittedAt,
		}
	}
	return out, nil
}

// BuildLadder sums each handle's best score per challenge across all
// submissions. Ordering is total score desc, solved count desc, handle asc.
// An empty input yields an empty ladder.
func BuildLadder(subs []model.Submission) ([]model.LadderEntry, error) {
	if len(subs) == 0 {
		return []model.LadderEntry{}, nil
	}

	type key struct {
		handle    string
		challenge int
	}
	best := make(map[key]int, len(subs))
	for _, s := range subs {
		if strings.TrimSpace(s.Handle) == "" {
			return nil, fmt.Errorf("%w: submission %q has an empty handle", ErrInvalidInput, s.ID)
		}
		k := key{handle: s.Handle, challenge: s.ChallengeID}
		if cur, ok := best[k]; !ok || s.Score > cur {
			best[k] = s.Score
		}
	}

	byHandle := make(map[string]*model.LadderEntry)
	for k, score := range best {
		e, ok := byHandle[k.handle]
		if !ok {
			e = &model.LadderEntry{ID: k.handle, Handle: k.handle}
			byHandle[k.handle] = e
		}
		e.TotalScore += score
		e.SolvedCount++
	}

	out := make([]model.LadderEntry, 0, len(byHandle))
	for _, e := range byHandle {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b model.LadderEntry) int {
		if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.SolvedCount, a.SolvedCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Handle, b.Handle)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
