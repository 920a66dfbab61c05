package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/codegolf/internal/domain/model"
)

const maxResponseBytes = 16 << 20

// SubmitRequest is the body of POST /challenges/{id}/submissions.
type SubmitRequest struct {
	SubmissionID string `json:"submission_id,omitempty"`
	Handle       string `json:"handle"`
	Code         string `json:"code"`
}

// SubmitResult is the service's answer to a submission.
type SubmitResult struct {
	Status     string           `json:"status"`
	Duplicate  bool             `json:"duplicate"`
	Submission model.Submission `json:"submission"`
}

// Client talks to the codegolf HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks that /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Challenges lists the service's challenges.
func (c *Client) Challenges(ctx context.Context) ([]model.Challenge, error) {
	var out []model.Challenge
	if err := c.do(ctx, http.MethodGet, "/challenges", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit posts one submission.
func (c *Client) Submit(ctx context.Context, challengeID int, req SubmitRequest) (SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, http.MethodPost, "/challenges/"+strconv.Itoa(challengeID)+"/submissions", req, &out)
	return out, err
}

// Ranking reads a challenge ranking. A non-positive limit uses the server maximum.
func (c *Client) Ranking(ctx context.Context, challengeID, limit int) ([]model.RankingEntry, error) {
	var out []model.RankingEntry
	if err := c.do(ctx, http.MethodGet, "/challenges/"+strconv.Itoa(challengeID)+"/ranking"+limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ladder reads the ladder. A non-positive limit uses the server maximum.
func (c *Client) Ladder(ctx context.Context, limit int) ([]model.LadderEntry, error) {
	var out []model.LadderEntry
	if err := c.do(ctx, http.MethodGet, "/ladder"+limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LadderEntry reads one handle's ladder row.
func (c *Client) LadderEntry(ctx context.Context, handle string) (model.LadderEntry, error) {
	var out model.LadderEntry
	err := c.do(ctx, http.MethodGet, "/ladder/"+url.PathEscape(handle), nil, &out)
	return out, err
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?limit=" + strconv.Itoa(limit)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
