// Package catalog fetches challenges and published rankings from the static
// competition site.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/logger"
	"github.com/okian/codegolf/pkg/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	defaultUserAgent  = "codegolf/1.0"
	maxBodyBytes      = 8 << 20
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads the competition site's JSON feeds and detail pages.
type Client struct {
	base       *url.URL
	doer       Doer
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     logger.Logger
}

// New returns a client rooted at baseURL, e.g. "https://example.github.io/c/competition".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		base:       u,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = defaultDoer(c.timeout)
	}
	if c.logger == nil {
		c.logger = logger.Named("catalog")
	}
	return c, nil
}

// FetchChallenges reads {base}/problems.json.
func (c *Client) FetchChallenges(ctx context.Context) ([]model.Challenge, error) {
	var out []model.Challenge
	if err := c.getJSON(ctx, "problems", c.endpoint("problems.json", nil), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchChallengeDetail reads the challenge's HTML page.
func (c *Client) FetchChallengeDetail(ctx context.Context, id int) (string, error) {
	body, err := c.get(ctx, "detail", c.endpoint(strconv.Itoa(id)+".html", nil))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		metrics.RecordCatalogFetch("detail", "decode_error")
		return "", fmt.Errorf("%w: challenge %d page is not valid UTF-8", ErrDecode, id)
	}
	return string(body), nil
}

// FetchRanking reads the weekly ranking for one challenge.
func (c *Client) FetchRanking(ctx context.Context, id int) ([]model.RankingEntry, error) {
	q := url.Values{"problem": []string{strconv.Itoa(id)}}
	var out []model.RankingEntry
	if err := c.getJSON(ctx, "ranking", c.endpoint("rank/week.json", q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLadder reads the published ladder.
func (c *Client) FetchLadder(ctx context.Context) ([]model.LadderEntry, error) {
	var out []model.LadderEntry
	if err := c.getJSON(ctx, "ladder", c.endpoint("rank/ladder.json", nil), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, resource, target string, out any) error {
	body, err := c.get(ctx, resource, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordCatalogFetch(resource, "decode_error")
		metrics.RecordErrorByComponent("catalog", "decode")
		return fmt.Errorf("%w: %s: %w", ErrDecode, resource, err)
	}
	return nil
}

// get performs a GET with bounded retries. Network failures, 429 and 5xx are
// retried with a linearly growing delay; other statuses fail immediately.
func (c *Client) get(ctx context.Context, resource, target string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCatalogLatency(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordCatalogFetch(resource, "retry")
			c.logger.Debug(ctx, "retrying catalog fetch",
				logger.String("resource", resource),
				logger.Int("attempt", attempt+1),
				logger.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrNetwork, ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		body, err := c.once(ctx, target)
		if err == nil {
			metrics.RecordCatalogFetch(resource, "ok")
			return body, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	metrics.RecordCatalogFetch(resource, "error")
	metrics.RecordErrorByComponent("catalog", resource)
	c.logger.Warn(ctx, "catalog fetch failed", logger.String("resource", resource), logger.Error(lastErr))
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.1")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetwork, err)
	}
	return body, nil
}
