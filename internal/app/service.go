// Package service accepts code golf submissions: it owns the challenge
// catalog, the running minimum per challenge, submission history and the
// outbound dispatch of accepted submissions.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/okian/codegolf/internal/adapters/catalog"
	"github.com/okian/codegolf/internal/adapters/mq/publisher"
	"github.com/okian/codegolf/internal/adapters/mq/queue"
	workerpool "github.com/okian/codegolf/internal/adapters/mq/worker"
	"github.com/okian/codegolf/internal/adapters/repository"
	"github.com/okian/codegolf/internal/domain/dedupe"
	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/internal/domain/scoring"
	"github.com/okian/codegolf/pkg/logger"
	"github.com/okian/codegolf/pkg/metrics"
)

const (
	defaultMaxCodeBytes = 64 << 10
	maxHandleBytes      = 64
	shutdownTimeout     = 30 * time.Second
)

// SubmitRequest is one attempt at a challenge. SubmissionID is optional;
// clients that retry should send the same UUID every time.
type SubmitRequest struct {
	SubmissionID string
	ChallengeID  int
	Handle       string
	Code         string
}

// Estimate is the score code would earn if it were accepted now.
type Estimate struct {
	ByteCount      int `json:"byte_count"`
	MinBytes       int `json:"min_bytes"`
	EstimatedScore int `json:"estimated_score"`
}

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	tracker  *repository.MinimumTracker
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *workerpool.Pool
	sink     *publisher.Publisher
	pubsub   *gochannel.GoChannel
	catalog  *catalog.Client
	chMu     sync.RWMutex
	problems map[int]model.Challenge

	// Configuration
	workerCount       int
	queueSize         int
	dedupeSize        int
	maxCodeBytes      int
	publishTopic      string
	refreshInterval   time.Duration
	static            []model.Challenge
	externalPublisher message.Publisher
	now               func() time.Time

	// State
	started       bool
	stopCh        chan struct{}
	cancelRefresh context.CancelFunc
	wg            sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    10_000,
		dedupeSize:   100_000,
		maxCodeBytes: defaultMaxCodeBytes,
		publishTopic: publisher.DefaultTopic,
		problems:     make(map[int]model.Challenge),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, loads challenges and starts dispatch.
// A catalog that cannot be reached at start is logged, not fatal.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting scoring service...")

	s.stopCh = make(chan struct{})
	s.store = repository.NewMemoryStore(ctx)
	s.tracker = repository.NewMinimumTracker()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	if s.externalPublisher != nil {
		s.sink = publisher.New(s.externalPublisher, s.publishTopic)
	} else {
		s.sink, s.pubsub = publisher.NewInProcess(s.publishTopic, s.logger.Named("pubsub"))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.sink)
	s.pool.Start(ctx)

	s.mergeChallenges(ctx, "config", s.static)
	if s.catalog != nil {
		if err := s.refreshCatalog(ctx); err != nil {
			s.logger.Error(ctx, "initial catalog load failed", logger.Error(err))
		}
		if s.refreshInterval > 0 {
			refreshCtx, cancel := context.WithCancel(ctx)
			s.cancelRefresh = cancel
			s.wg.Add(1)
			go s.refreshLoop(refreshCtx)
		}
	}

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("challenges", s.challengeCount()),
		logger.String("topic", s.sink.Topic()),
	)
	return nil
}

// Stop drains dispatch and releases every component.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping scoring service...")
	close(s.stopCh)
	// Cancels an in-flight catalog refresh.
	if s.cancelRefresh != nil {
		s.cancelRefresh()
		s.cancelRefresh = nil
	}
	s.wg.Wait()

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatch pool did not drain", logger.Error(err))
	}
	if err := s.sink.Close(); err != nil {
		s.logger.Warn(ctx, "closing publisher", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped",
		logger.Int64("published", s.pool.Published()),
		logger.Int64("publishFailed", s.pool.Failed()),
	)
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Subscribe returns accepted-submission messages from the in-process pub/sub.
func (s *Service) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if s.pubsub == nil {
		return nil, ErrSubscribeUnsupported
	}
	return s.pubsub.Subscribe(ctx, s.sink.Topic())
}

// Challenges returns every known challenge ordered by id.
func (s *Service) Challenges(_ context.Context) ([]model.Challenge, error) {
	s.chMu.RLock()
	out := make([]model.Challenge, 0, len(s.problems))
	for _, c := range s.problems {
		out = append(out, c)
	}
	s.chMu.RUnlock()

	slices.SortFunc(out, func(a, b model.Challenge) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Challenge returns one challenge or ErrChallengeNotFound.
func (s *Service) Challenge(_ context.Context, id int) (model.Challenge, error) {
	s.chMu.RLock()
	defer s.chMu.RUnlock()
	c, ok := s.problems[id]
	if !ok {
		return model.Challenge{}, fmt.Errorf("%w: %d", ErrChallengeNotFound, id)
	}
	return c, nil
}

func (s *Service) challengeCount() int {
	s.chMu.RLock()
	defer s.chMu.RUnlock()
	return len(s.problems)
}

// mergeChallenges adds new challenges. A published challenge is immutable,
// so a later copy with a different difficulty is ignored.
func (s *Service) mergeChallenges(ctx context.Context, source string, incoming []model.Challenge) int {
	s.chMu.Lock()
	defer s.chMu.Unlock()

	added := 0
	for _, c := range incoming {
		if c.ID <= 0 || c.Difficulty <= 0 {
			s.logger.Warn(ctx, "skipping malformed challenge",
				logger.String("source", source),
				logger.Int("id", c.ID),
				logger.Int("difficulty", c.Difficulty),
			)
			continue
		}
		if prev, ok := s.problems[c.ID]; ok {
			if prev.Difficulty != c.Difficulty {
				s.logger.Warn(ctx, "ignoring difficulty change for published challenge",
					logger.String("source", source),
					logger.Int("id", c.ID),
					logger.Int("difficulty", prev.Difficulty),
					logger.Int("incoming", c.Difficulty),
				)
			}
			continue
		}
		s.problems[c.ID] = c
		added++
	}
	metrics.UpdateTotalChallenges(len(s.problems))
	return added
}

func (s *Service) refreshCatalog(ctx context.Context) error {
	challenges, err := s.catalog.FetchChallenges(ctx)
	if err != nil {
		return err
	}
	added := s.mergeChallenges(ctx, "catalog", challenges)
	metrics.UpdateCatalogLastRefresh(s.now().Unix())
	s.logger.Info(ctx, "catalog refreshed",
		logger.Int("fetched", len(challenges)),
		logger.Int("added", added),
	)
	return nil
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.refreshCatalog(ctx); err != nil {
				s.logger.Warn(ctx, "catalog refresh failed", logger.Error(err))
			}
		}
	}
}

// prepare validates req and fills in everything but score and timestamp.
func (s *Service) prepare(req SubmitRequest) (model.Submission, error) {
	handle := strings.TrimSpace(req.Handle)
	switch {
	case handle == "":
		return model.Submission{}, fmt.Errorf("%w: handle is required", ErrInvalidSubmission)
	case len(handle) > maxHandleBytes:
		return model.Submission{}, fmt.Errorf("%w: handle exceeds %d bytes", ErrInvalidSubmission, maxHandleBytes)
	case req.Code == "":
		return model.Submission{}, fmt.Errorf("%w: code is required", ErrInvalidSubmission)
	}

	n, err := scoring.ByteLength(req.Code)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if n > s.maxCodeBytes {
		return model.Submission{}, fmt.Errorf("%w: code is %d bytes, limit is %d", ErrInvalidSubmission, n, s.maxCodeBytes)
	}

	id := uuid.NewString()
	if req.SubmissionID != "" {
		parsed, err := uuid.Parse(req.SubmissionID)
		if err != nil {
			return model.Submission{}, fmt.Errorf("%w: submission_id must be a UUID", ErrInvalidSubmission)
		}
		id = parsed.String()
	}

	return model.Submission{
		ID:          id,
		ChallengeID: req.ChallengeID,
		Handle:      handle,
		Code:        req.Code,
		ByteCount:   n,
	}, nil
}

// Submit scores and records one submission. The returned flag is true when
// the submission id was accepted before; the stored submission is returned
// unchanged in that case.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (model.Submission, bool, error) {
	if err := s.running(); err != nil {
		return model.Submission{}, false, err
	}
	start := time.Now()

	ch, err := s.Challenge(ctx, req.ChallengeID)
	if err != nil {
		metrics.RecordSubmissionRejected("unknown_challenge")
		return model.Submission{}, false, err
	}
	sub, err := s.prepare(req)
	if err != nil {
		metrics.RecordSubmissionRejected("invalid_input")
		return model.Submission{}, false, err
	}

	if s.deduper.SeenAndRecord(ctx, sub.ID) {
		return s.replay(ctx, sub)
	}

	err = s.tracker.Evaluate(ctx, ch.ID, func(currentMin int) (int, error) {
		score, newMin, err := scoring.Evaluate(ch.Difficulty, currentMin, sub.ByteCount)
		if err != nil {
			return 0, err
		}
		sub.Score = score
		sub.SubmittedAt = s.now().UTC()
		if err := s.store.Append(ctx, sub); err != nil {
			return 0, err
		}
		return newMin, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			// Stored before the deduper evicted it.
			return s.replay(ctx, sub)
		}
		s.deduper.Unrecord(ctx, sub.ID)
		metrics.RecordSubmissionRejected(rejectReason(err))
		s.logger.Warn(ctx, "submission rejected",
			logger.String("id", sub.ID),
			logger.Int("challenge", ch.ID),
			logger.Error(err),
		)
		return model.Submission{}, false, err
	}

	metrics.RecordSubmissionAccepted(strconv.Itoa(ch.ID))
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "submission accepted",
		logger.String("id", sub.ID),
		logger.Int("challenge", ch.ID),
		logger.String("handle", sub.Handle),
		logger.Int("bytes", sub.ByteCount),
		logger.Int("score", sub.Score),
	)

	if err := s.queue.Enqueue(ctx, sub); err != nil {
		// Acceptance already happened; dispatch is best effort.
		s.logger.Warn(ctx, "dispatch enqueue failed",
			logger.String("id", sub.ID),
			logger.Error(err),
		)
	}
	return sub, false, nil
}

// replay resolves a repeated submission id to the stored submission.
func (s *Service) replay(ctx context.Context, sub model.Submission) (model.Submission, bool, error) {
	stored, err := s.store.Lookup(ctx, sub.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Submission{}, false, fmt.Errorf("%w: %s", ErrInFlight, sub.ID)
	}
	if err != nil {
		return model.Submission{}, false, err
	}
	if stored.ChallengeID != sub.ChallengeID || stored.Handle != sub.Handle {
		metrics.RecordSubmissionRejected("id_reused")
		return model.Submission{}, false, fmt.Errorf("%w: submission_id %s was used for another submission", ErrInvalidSubmission, sub.ID)
	}
	metrics.RecordSubmissionDuplicate()
	return stored, true, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, scoring.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, repository.ErrClosed):
		return "store_closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

// Estimate scores code against the current minimum without accepting it.
// Code shorter than the minimum is scored as the new minimum.
func (s *Service) Estimate(ctx context.Context, challengeID int, code string) (Estimate, error) {
	if err := s.running(); err != nil {
		return Estimate{}, err
	}
	ch, err := s.Challenge(ctx, challengeID)
	if err != nil {
		return Estimate{}, err
	}
	if code == "" {
		return Estimate{}, fmt.Errorf("%w: code is required", ErrInvalidSubmission)
	}
	n, err := scoring.ByteLength(code)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	score, newMin, err := scoring.Evaluate(ch.Difficulty, s.tracker.Current(challengeID), n)
	if err != nil {
		return Estimate{}, err
	}
	metrics.RecordEstimate()
	return Estimate{ByteCount: n, MinBytes: newMin, EstimatedScore: score}, nil
}

// Ranking returns the top limit entries for one challenge.
func (s *Service) Ranking(ctx context.Context, challengeID, limit int) ([]model.RankingEntry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if _, err := s.Challenge(ctx, challengeID); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	return s.store.Snapshot().Ranking(challengeID, limit)
}

// Ladder returns the top limit ladder entries.
func (s *Service) Ladder(_ context.Context, limit int) ([]model.LadderEntry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	return s.store.Snapshot().Ladder(limit)
}

// LadderEntry returns handle's ladder row or ErrNotFound.
func (s *Service) LadderEntry(_ context.Context, handle string) (model.LadderEntry, error) {
	if err := s.running(); err != nil {
		return model.LadderEntry{}, err
	}
	e, err := s.store.Snapshot().LadderEntry(strings.TrimSpace(handle))
	if errors.Is(err, repository.ErrNotFound) {
		return model.LadderEntry{}, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	return e, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"challenges":  s.challengeCount(),
	}

	if s.started {
		snap := s.store.Snapshot()
		queueLen := s.queue.Len()

		stats["queueLength"] = queueLen
		stats["submissions"] = snap.Count()
		stats["submitters"] = snap.Submitters()
		stats["snapshotVersion"] = snap.Version
		stats["dedupeEntries"] = s.deduper.Size()
		stats["published"] = s.pool.Published()
		stats["publishFailed"] = s.pool.Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalSubmissions(snap.Count())
		metrics.UpdateTotalSubmitters(snap.Submitters())
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
