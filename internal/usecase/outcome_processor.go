package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RewardBid/internal/domain/models"
	drepo "RewardBid/internal/domain/repository"
	pkgmetrics "RewardBid/pkg/metrics"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendBoth       = "both"
)

// OutcomeProcessor routes finished outcomes to the configured backend.
type OutcomeProcessor struct {
	pub     drepo.OutcomePublisher
	store   drepo.OutcomeStorage
	metrics drepo.Metrics
	backend string
}

// NewOutcomeProcessor creates a processor. pub and store may be nil when the
// backend does not use them.
func NewOutcomeProcessor(
	pub drepo.OutcomePublisher,
	store drepo.OutcomeStorage,
	metrics drepo.Metrics,
	backend string,
) *OutcomeProcessor {
	if backend == "" {
		backend = BackendNone
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	return &OutcomeProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

func (p *OutcomeProcessor) Backend() string { return p.backend }

// Storage returns the history store when the backend writes to one.
func (p *OutcomeProcessor) Storage() drepo.OutcomeStorage {
	if p.backend == BackendClickHouse || p.backend == BackendBoth {
		return p.store
	}
	return nil
}

// Process sends one session's outcomes to every sink the backend names.
func (p *OutcomeProcessor) Process(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	start := time.Now()
	var errs []error

	switch p.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		errs = append(errs, p.publish(ctx, sessionID, outcomes))
	case BackendClickHouse:
		errs = append(errs, p.persist(ctx, sessionID, outcomes))
	case BackendBoth:
		errs = append(errs, p.publish(ctx, sessionID, outcomes), p.persist(ctx, sessionID, outcomes))
	default:
		errs = append(errs, fmt.Errorf("unknown backend: %s", p.backend))
	}

	if err := errors.Join(errs...); err != nil {
		p.metrics.RecordError("process_outcomes")
		return fmt.Errorf("process outcomes: %w", err)
	}

	p.metrics.RecordLatency("process_outcomes", time.Since(start).Seconds())
	return nil
}

func (p *OutcomeProcessor) publish(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	if p.pub == nil {
		return fmt.Errorf("kafka publisher not configured")
	}
	if err := p.pub.PublishBatch(ctx, sessionID, outcomes); err != nil {
		return err
	}
	p.metrics.RecordMessageSent(BackendKafka)
	return nil
}

func (p *OutcomeProcessor) persist(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	if p.store == nil {
		return fmt.Errorf("clickhouse store not configured")
	}
	if err := p.store.StoreBatch(ctx, sessionID, outcomes); err != nil {
		return err
	}
	p.metrics.RecordMessageSent(BackendClickHouse)
	return nil
}

// Close closes underlying resources if available.
func (p *OutcomeProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
