// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/codegolf/internal/adapters/http/swagger"
)

const (
	defaultMaxLimit     = 100
	defaultMaxBodyBytes = 256 << 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ChallengeDependencies
	SubmissionDependencies
	LeaderboardDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	challengesHandler  *ChallengesHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	limiter            *IPRateLimiter

	maxLimit     int
	maxBodyBytes int64
	submitRate   float64
	submitBurst  int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLimit:     defaultMaxLimit,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.submitRate > 0 {
		s.limiter = NewIPRateLimiter(s.submitRate, s.submitBurst)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.challengesHandler = NewChallengesHandler(deps, s.maxBodyBytes)
	s.submissionsHandler = NewSubmissionsHandler(deps, s.maxBodyBytes)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	return s
}

// Routes returns a router serving the API and its OpenAPI document.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	s.Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// Register attaches all business routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Get("/challenges", MetricsMiddleware(s.challengesHandler.HandleList, "challenges"))
	r.Get("/challenges/{id}", MetricsMiddleware(s.challengesHandler.HandleGet, "challenge"))
	r.Post("/challenges/{id}/estimate", MetricsMiddleware(s.challengesHandler.HandleEstimate, "estimate"))
	r.With(RateLimitMiddleware(s.limiter)).
		Post("/challenges/{id}/submissions", MetricsMiddleware(s.submissionsHandler.HandleSubmit, "submissions"))
	r.Get("/challenges/{id}/ranking", MetricsMiddleware(s.leaderboardHandler.HandleRanking, "ranking"))

	r.Get("/ladder", MetricsMiddleware(s.leaderboardHandler.HandleLadder, "ladder"))
	r.Get("/ladder/{handle}", MetricsMiddleware(s.leaderboardHandler.HandleLadderEntry, "ladder_entry"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr derives the status from err's kind.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// challengeID parses the {id} path parameter.
func challengeID(op string, r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, WrapKind(op, ErrBadRequest, errInvalidID)
	}
	return id, nil
}

// parseLimit reads ?limit=, defaulting to maxLimit when absent.
func parseLimit(op string, r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return maxLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, WrapKind(op, ErrBadRequest, errInvalidLimit)
	}
	if n > maxLimit {
		return 0, NewKind(op, ErrLimitExceeded)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
