package repository

import (
	"context"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/domain/repository"
	pkgkafka "RewardBid/pkg/kafka"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// OutcomeEvent is the record written to the outcome topic.
type OutcomeEvent struct {
	SessionID string          `json:"session_id"`
	Outcome   *models.Outcome `json:"outcome"`
}

// KafkaOutcomePublisher implements OutcomePublisher. Messages are keyed by
// session so one session's outcomes stay ordered within a partition.
type KafkaOutcomePublisher struct {
	producer producer
	topic    string
}

func NewKafkaOutcomePublisher(p *pkgkafka.Producer, topic string) *KafkaOutcomePublisher {
	return &KafkaOutcomePublisher{producer: p, topic: topic}
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, sessionID string, o *models.Outcome) error {
	return p.producer.Publish(ctx, p.topic, []byte(sessionID), OutcomeEvent{SessionID: sessionID, Outcome: o})
}

func (p *KafkaOutcomePublisher) PublishBatch(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(outcomes))
	for _, o := range outcomes {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(sessionID),
			Value: OutcomeEvent{SessionID: sessionID, Outcome: o},
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaOutcomePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ repository.OutcomePublisher = (*KafkaOutcomePublisher)(nil)
