package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/codegolf/internal/adapters/http/api"
	service "github.com/okian/codegolf/internal/app"
	"github.com/okian/codegolf/internal/domain/model"
)

type mockDeps struct {
	challenges []model.Challenge

	submitted []service.SubmitRequest
	submitDup bool
	submitErr error

	estimate service.Estimate
	estErr   error

	ranking  []model.RankingEntry
	ladder   []model.LadderEntry
	gotLimit int
}

func (m *mockDeps) Challenges(context.Context) ([]model.Challenge, error) { return m.challenges, nil }

func (m *mockDeps) Challenge(_ context.Context, id int) (model.Challenge, error) {
	for _, c := range m.challenges {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Challenge{}, fmt.Errorf("%w: %d", service.ErrChallengeNotFound, id)
}

func (m *mockDeps) Estimate(_ context.Context, id int, _ string) (service.Estimate, error) {
	if _, err := m.Challenge(context.Background(), id); err != nil {
		return service.Estimate{}, err
	}
	return m.estimate, m.estErr
}

func (m *mockDeps) Submit(_ context.Context, req service.SubmitRequest) (model.Submission, bool, error) {
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return model.Submission{}, false, m.submitErr
	}
	return model.Submission{
		ID:          "6f9619ff-8b86-d011-b42d-00c04fc964ff",
		ChallengeID: req.ChallengeID,
		Handle:      req.Handle,
		Code:        req.Code,
		ByteCount:   len(req.Code),
		Score:       150,
		SubmittedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, m.submitDup, nil
}

func (m *mockDeps) Ranking(_ context.Context, id, limit int) ([]model.RankingEntry, error) {
	if _, err := m.Challenge(context.Background(), id); err != nil {
		return nil, err
	}
	m.gotLimit = limit
	return m.ranking, nil
}

func (m *mockDeps) Ladder(_ context.Context, limit int) ([]model.LadderEntry, error) {
	m.gotLimit = limit
	return m.ladder, nil
}

func (m *mockDeps) LadderEntry(_ context.Context, handle string) (model.LadderEntry, error) {
	for _, e := range m.ladder {
		if e.Handle == handle {
			return e, nil
		}
	}
	return model.LadderEntry{}, fmt.Errorf("%w: %s", service.ErrNotFound, handle)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} { return m.stats }

func newDeps() *mockDeps {
	return &mockDeps{
		challenges: []model.Challenge{
			{ID: 1, Title: "Two Sum", Difficulty: 150},
			{ID: 2, Title: "FizzBuzz", Difficulty: 100},
		},
		estimate: service.Estimate{ByteCount: 100, MinBytes: 87, EstimatedScore: 131},
		ranking: []model.RankingEntry{
			{ID: "a", Handle: "CodeMaster", ByteCount: 87, Score: 150, Rank: 1},
		},
		ladder: []model.LadderEntry{
			{ID: "CodeMaster", Handle: "CodeMaster", TotalScore: 850, Rank: 1, SolvedCount: 6},
			{ID: "Swift Ninja", Handle: "Swift Ninja", TotalScore: 720, Rank: 2, SolvedCount: 5},
			{ID: "50%", Handle: "50%", TotalScore: 300, Rank: 3, SolvedCount: 2},
			{ID: "a%41", Handle: "a%41", TotalScore: 200, Rank: 4, SolvedCount: 2},
			{ID: "aA", Handle: "aA", TotalScore: 150, Rank: 5, SolvedCount: 1},
			{ID: "golf/club", Handle: "golf/club", TotalScore: 100, Rank: 6, SolvedCount: 1},
		},
	}
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newDeps()
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
		h := api.NewServer(deps, stats, api.WithMaxLimit(50)).Routes(context.Background())

		Convey("Then the health endpoint serves metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then the docs are mounted", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api-docs", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown routes and methods answer with JSON errors", func() {
			w := do(h, http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")

			w = do(h, http.MethodDelete, "/ladder", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestChallengesHandler(t *testing.T) {
	Convey("Given an API server with two challenges", t, func() {
		deps := newDeps()
		h := api.NewServer(deps, &mockStatsProvider{}).Routes(context.Background())

		Convey("When listing challenges", func() {
			w := do(h, http.MethodGet, "/challenges", "")
			var list []model.Challenge
			So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(len(list), ShouldEqual, 2)
		})

		Convey("When fetching one challenge", func() {
			w := do(h, http.MethodGet, "/challenges/1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"difficulty":150`)
		})

		Convey("When the id is unknown or malformed", func() {
			w := do(h, http.MethodGet, "/challenges/9", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")

			w = do(h, http.MethodGet, "/challenges/abc", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodGet, "/challenges/0", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When estimating a score", func() {
			w := do(h, http.MethodPost, "/challenges/1/estimate", `{"code":"x"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"estimated_score":131`)
			So(w.Body.String(), ShouldContainSubstring, `"min_bytes":87`)
		})

		Convey("When the estimate is invalid", func() {
			deps.estErr = fmt.Errorf("%w: code is required", service.ErrInvalidSubmission)
			w := do(h, http.MethodPost, "/challenges/1/estimate", `{"code":""}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodPost, "/challenges/1/estimate", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSubmissionsHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newDeps()
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithMaxBodyBytes(256)).Routes(context.Background())

		Convey("When a valid submission is posted", func() {
			w := do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":"CodeMaster","code":"print(1)"}`)

			Convey("Then it is created and forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(w.Body.String(), ShouldContainSubstring, `"score":150`)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].ChallengeID, ShouldEqual, 1)
				So(deps.submitted[0].Handle, ShouldEqual, "CodeMaster")
			})
		})

		Convey("When the submission is a replay", func() {
			deps.submitDup = true
			w := do(h, http.MethodPost, "/challenges/1/submissions",
				`{"submission_id":"6f9619ff-8b86-d011-b42d-00c04fc964ff","handle":"CodeMaster","code":"print(1)"}`)

			Convey("Then it answers 200 with the duplicate flag", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.submitted[0].SubmissionID, ShouldEqual, "6f9619ff-8b86-d011-b42d-00c04fc964ff")
			})
		})

		Convey("When the service rejects the submission", func() {
			cases := map[error]int{
				fmt.Errorf("%w: handle is required", service.ErrInvalidSubmission): http.StatusBadRequest,
				fmt.Errorf("%w: 7", service.ErrChallengeNotFound):                  http.StatusNotFound,
				fmt.Errorf("%w: x", service.ErrInFlight):                           http.StatusConflict,
				service.ErrNotStarted:                                              http.StatusServiceUnavailable,
				errors.New("boom"):                                                 http.StatusInternalServerError,
			}
			for err, status := range cases {
				deps.submitErr = err
				w := do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":"a","code":"x"}`)
				So(w.Code, ShouldEqual, status)
			}
		})

		Convey("When the body is malformed or too large", func() {
			w := do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")

			w = do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":"a","code":"`+strings.Repeat("x", 512)+`"}`)
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(len(deps.submitted), ShouldEqual, 0)
		})
	})

	Convey("Given a server limiting one submission per second", t, func() {
		deps := newDeps()
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithSubmitRate(1, 1)).Routes(context.Background())

		Convey("When one client submits twice in a row", func() {
			first := do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":"a","code":"x"}`)
			second := do(h, http.MethodPost, "/challenges/1/submissions", `{"handle":"a","code":"y"}`)

			Convey("Then the second is rate limited", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(second), ShouldEqual, "rate_limited")
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
				So(len(deps.submitted), ShouldEqual, 1)
			})

			Convey("And reads are not limited", func() {
				So(do(h, http.MethodGet, "/ladder", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given an API server with a maximum limit of 50", t, func() {
		deps := newDeps()
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithMaxLimit(50)).Routes(context.Background())

		Convey("When the limit is omitted", func() {
			w := do(h, http.MethodGet, "/challenges/1/ranking", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotLimit, ShouldEqual, 50)
			So(w.Body.String(), ShouldContainSubstring, `"handle":"CodeMaster"`)
		})

		Convey("When the limit is valid", func() {
			w := do(h, http.MethodGet, "/ladder?limit=2", "")
			var entries []model.LadderEntry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotLimit, ShouldEqual, 2)
			So(entries[0].TotalScore, ShouldEqual, 850)
		})

		Convey("When the limit is out of range", func() {
			for _, q := range []string{"0", "-1", "abc"} {
				w := do(h, http.MethodGet, "/ladder?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			}
			w := do(h, http.MethodGet, "/ladder?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})

		Convey("When ranking an unknown challenge", func() {
			w := do(h, http.MethodGet, "/challenges/9/ranking", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When looking up one handle", func() {
			w := do(h, http.MethodGet, "/ladder/Swift%20Ninja", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rank":2`)

			w = do(h, http.MethodGet, "/ladder/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the handle carries escape characters", func() {
			for handle, rank := range map[string]string{"50%": `"rank":3`, "a%41": `"rank":4`, "golf/club": `"rank":6`} {
				w := do(h, http.MethodGet, "/ladder/"+url.PathEscape(handle), "")

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, rank)
				So(w.Body.String(), ShouldContainSubstring, `"handle":"`+handle+`"`)
			}
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("unexpected EOF")

		Convey("Then kind and cause are both visible to errors.Is", func() {
			err := api.WrapKind("api.submit", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.submit: bad request: unexpected EOF")
		})

		Convey("Then NewKind and Wrap format without the missing part", func() {
			So(api.NewKind("api.ladder", api.ErrLimitExceeded).Error(), ShouldEqual, "api.ladder: limit exceeds maximum")
			So(api.Wrap("api.ladder", cause).Error(), ShouldEqual, "api.ladder: unexpected EOF")
		})
	})
}

func TestIPRateLimiter(t *testing.T) {
	Convey("Given a limiter with a burst of two", t, func() {
		l := api.NewIPRateLimiter(0.001, 2)

		Convey("Then each IP has its own bucket", func() {
			So(l.Allow("192.0.2.1"), ShouldBeTrue)
			So(l.Allow("192.0.2.1"), ShouldBeTrue)
			So(l.Allow("192.0.2.1"), ShouldBeFalse)
			So(l.Allow("192.0.2.2"), ShouldBeTrue)
		})
	})
}
