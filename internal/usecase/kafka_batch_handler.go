package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RewardBid/internal/domain/models"
	domrepo "RewardBid/internal/domain/repository"
	pkgkafka "RewardBid/pkg/kafka"
	"RewardBid/pkg/logger"
	pkgmetrics "RewardBid/pkg/metrics"
)

// BatchMessage is the payload of the batch intake topic. Budget is only used
// when the session does not exist yet.
type BatchMessage struct {
	SessionID string       `json:"session_id"`
	Budget    float64      `json:"budget"`
	Restore   bool         `json:"restore"`
	Batch     models.Batch `json:"batch"`
}

// KafkaBatchHandler feeds batches from Kafka into sessions.
type KafkaBatchHandler struct {
	topic    string
	sessions *SessionManager
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewKafkaBatchHandler(topic string, sessions *SessionManager, metrics domrepo.Metrics, log *logger.Logger) *KafkaBatchHandler {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaBatchHandler{topic: topic, sessions: sessions, metrics: metrics, log: log}
}

func (h *KafkaBatchHandler) Topic() string { return h.topic }

func (h *KafkaBatchHandler) Handle(ctx context.Context, b []byte) error {
	var m BatchMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode batch message: %w", err)
	}
	return h.Process(ctx, &m)
}

// Process runs one decoded batch message, creating the session on first sight.
func (h *KafkaBatchHandler) Process(ctx context.Context, m *BatchMessage) error {
	if m.SessionID == "" {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("batch message without session_id")
	}

	if _, err := h.sessions.Get(m.SessionID); errors.Is(err, ErrSessionNotFound) {
		_, err = h.sessions.Create(ctx, CreateSessionParams{ID: m.SessionID, Budget: m.Budget, Restore: m.Restore})
		if err != nil && !errors.Is(err, ErrSessionExists) {
			h.metrics.RecordError("consumer_session")
			return fmt.Errorf("create session %s: %w", m.SessionID, err)
		}
	}

	start := time.Now()
	report, err := h.sessions.Run(ctx, m.SessionID, &m.Batch)
	h.metrics.RecordLatency("consumer_run", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_run")
		return fmt.Errorf("run batch for %s: %w", m.SessionID, err)
	}
	h.log.Debug("batch processed",
		logger.String("session_id", m.SessionID),
		logger.String("trace_id", pkgkafka.TraceID(ctx)),
		logger.Int("items", len(report.Outcomes)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBatchHandler)(nil)
