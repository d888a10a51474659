package repository

import (
	"context"
	"time"

	"RewardBid/internal/domain/models"
)

// StrengthSource supplies competitor strengths for a category. A competitor
// without an entry has no influence on pacing.
type StrengthSource interface {
	Strengths(ctx context.Context, category string) (map[string]float64, error)
}

// RateStore persists learned rate snapshots so a session can resume.
type RateStore interface {
	Save(ctx context.Context, sessionID string, snap models.RateSnapshot) error
	Load(ctx context.Context, sessionID string) (models.RateSnapshot, error)
}

type OutcomePublisher interface {
	Publish(ctx context.Context, sessionID string, o *models.Outcome) error
	PublishBatch(ctx context.Context, sessionID string, outcomes []*models.Outcome) error
	Close() error
}

type OutcomeStorage interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, sessionID string, outcomes []*models.Outcome) error
	Query(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]*models.Outcome, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordBid(category string, amount, bid float64)
	RecordJudgment(result string)
	RecordRate(sessionID, category string, rate float64)
	RecordBudget(sessionID string, budget float64)
	RecordOvershoot(category string)
	RecordMessageSent(backend string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
