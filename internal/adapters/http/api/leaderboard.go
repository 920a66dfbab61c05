package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/codegolf/internal/domain/model"
)

// LeaderboardDependencies defines the interface for ranking and ladder reads.
type LeaderboardDependencies interface {
	Ranking(ctx context.Context, challengeID, limit int) ([]model.RankingEntry, error)
	Ladder(ctx context.Context, limit int) ([]model.LadderEntry, error)
	LadderEntry(ctx context.Context, handle string) (model.LadderEntry, error)
}

// LeaderboardHandler handles ranking and ladder requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

// HandleRanking handles GET /challenges/{id}/ranking?limit=N.
func (h *LeaderboardHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	id, err := challengeID(op, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	n, err := parseLimit(op, r, h.maxLimit)
	if err != nil {
		writeErr(w, err)
		return
	}
	entries, err := h.deps.Ranking(r.Context(), id, n)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleLadder handles GET /ladder?limit=N.
func (h *LeaderboardHandler) HandleLadder(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ladder"
	n, err := parseLimit(op, r, h.maxLimit)
	if err != nil {
		writeErr(w, err)
		return
	}
	entries, err := h.deps.Ladder(r.Context(), n)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleLadderEntry handles GET /ladder/{handle}.
func (h *LeaderboardHandler) HandleLadderEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ladder_entry"
	// chi matches on RawPath when it is set, leaving the parameter escaped.
	handle := chi.URLParam(r, "handle")
	if r.URL.RawPath != "" {
		var err error
		if handle, err = url.PathUnescape(handle); err != nil {
			writeErr(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if strings.TrimSpace(handle) == "" {
		writeErr(w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.LadderEntry(r.Context(), handle)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
