package api

import (
	"context"
	"net/http"

	service "github.com/okian/codegolf/internal/app"
	"github.com/okian/codegolf/internal/domain/model"
)

// SubmissionDependencies defines the interface for accepting submissions.
type SubmissionDependencies interface {
	Submit(ctx context.Context, req service.SubmitRequest) (model.Submission, bool, error)
}

// SubmissionsHandler handles submission requests.
type SubmissionsHandler struct {
	deps         SubmissionDependencies
	maxBodyBytes int64
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies, maxBodyBytes int64) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// submitRequest mirrors the OpenAPI schema for POST /challenges/{id}/submissions.
type submitRequest struct {
	SubmissionID string `json:"submission_id"`
	Handle       string `json:"handle"`
	Code         string `json:"code"`
}

type submitResponse struct {
	Status     string           `json:"status"`
	Duplicate  bool             `json:"duplicate"`
	Submission model.Submission `json:"submission"`
}

// HandleSubmit handles POST /challenges/{id}/submissions.
// A replayed submission_id answers 200 with the stored submission.
func (h *SubmissionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	id, err := challengeID(op, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req submitRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, duplicate, err := h.deps.Submit(r.Context(), service.SubmitRequest{
		SubmissionID: req.SubmissionID,
		ChallengeID:  id,
		Handle:       req.Handle,
		Code:         req.Code,
	})
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, submitResponse{Status: "duplicate", Duplicate: true, Submission: sub})
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Status: "accepted", Submission: sub})
}
