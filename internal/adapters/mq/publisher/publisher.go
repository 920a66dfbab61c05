// Package publisher emits accepted submissions as watermill messages.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/logger"
)

// DefaultTopic is the topic accepted submissions are published on.
const DefaultTopic = "submissions.accepted"

// Metadata keys set on every message.
const (
	MetadataChallengeID = "challenge_id"
	MetadataHandle      = "handle"
)

// AcceptedEvent is the JSON payload of a published message.
// Code is omitted; consumers fetch it from the submission store if needed.
type AcceptedEvent struct {
	SubmissionID string `json:"submission_id"`
	ChallengeID  int    `json:"challenge_id"`
	Handle       string `json:"handle"`
	ByteCount    int    `json:"byte_count"`
	Score        int    `json:"score"`
	SubmittedAt  string `json:"submitted_at"`
}

// Publisher publishes accepted submissions to a watermill topic.
type Publisher struct {
	pub   message.Publisher
	topic string
}

// New wraps any watermill publisher.
func New(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{pub: pub, topic: topic}
}

// NewInProcess returns a Publisher backed by an in-process gochannel pub/sub.
// The GoChannel is returned so callers can subscribe to the same topic.
func NewInProcess(topic string, l logger.Logger) (*Publisher, *gochannel.GoChannel) {
	gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, NewLoggerAdapter(l))
	return New(gc, topic), gc
}

// Topic returns the topic messages are published on.
func (p *Publisher) Topic() string { return p.topic }

// Publish implements worker.Publisher. The message UUID is the submission id
// so downstream consumers can deduplicate redeliveries.
func (p *Publisher) Publish(ctx context.Context, s model.Submission) error {
	payload, err := json.Marshal(AcceptedEvent{
		SubmissionID: s.ID,
		ChallengeID:  s.ChallengeID,
		Handle:       s.Handle,
		ByteCount:    s.ByteCount,
		Score:        s.Score,
		SubmittedAt:  s.SubmittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", s.ID, err)
	}

	msg := message.NewMessage(s.ID, payload)
	msg.Metadata.Set(MetadataChallengeID, strconv.Itoa(s.ChallengeID))
	msg.Metadata.Set(MetadataHandle, s.Handle)
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.pub.Close()
}
