package service

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/okian/codegolf/internal/adapters/catalog"
	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the dispatch queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered for idempotency.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxCodeBytes caps the byte length of accepted code.
func WithMaxCodeBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCodeBytes = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChallenges seeds the catalog with statically configured challenges.
func WithChallenges(challenges ...model.Challenge) Option {
	return func(s *Service) {
		s.static = append(s.static, challenges...)
	}
}

// WithCatalog loads challenges from the competition site at start and
// every refresh interval. A non-positive interval disables refreshing.
func WithCatalog(c *catalog.Client, refresh time.Duration) Option {
	return func(s *Service) {
		s.catalog = c
		s.refreshInterval = refresh
	}
}

// WithPublishTopic sets the topic accepted submissions are published on.
func WithPublishTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.publishTopic = topic
		}
	}
}

// WithPublisher sends accepted submissions to an external watermill
// publisher instead of the in-process pub/sub.
func WithPublisher(p message.Publisher) Option {
	return func(s *Service) {
		s.externalPublisher = p
	}
}

// WithClock overrides the acceptance timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
