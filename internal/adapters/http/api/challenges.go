package api

import (
	"context"
	"net/http"

	service "github.com/okian/codegolf/internal/app"
	"github.com/okian/codegolf/internal/domain/model"
)

// ChallengeDependencies defines the interface for challenge reads.
type ChallengeDependencies interface {
	Challenges(ctx context.Context) ([]model.Challenge, error)
	Challenge(ctx context.Context, id int) (model.Challenge, error)
	Estimate(ctx context.Context, challengeID int, code string) (service.Estimate, error)
}

// ChallengesHandler handles challenge requests.
type ChallengesHandler struct {
	deps         ChallengeDependencies
	maxBodyBytes int64
}

// NewChallengesHandler creates a new challenges handler.
func NewChallengesHandler(deps ChallengeDependencies, maxBodyBytes int64) *ChallengesHandler {
	return &ChallengesHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandleList handles GET /challenges.
func (h *ChallengesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_challenges"
	list, err := h.deps.Challenges(r.Context())
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /challenges/{id}.
func (h *ChallengesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_challenge"
	id, err := challengeID(op, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	c, err := h.deps.Challenge(r.Context(), id)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// estimateRequest mirrors the OpenAPI schema for POST /challenges/{id}/estimate.
type estimateRequest struct {
	Code string `json:"code"`
}

// HandleEstimate handles POST /challenges/{id}/estimate.
func (h *ChallengesHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	const op = "api.estimate"
	id, err := challengeID(op, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req estimateRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	est, err := h.deps.Estimate(r.Context(), id, req.Code)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, est)
}
