package usecase

import (
	"context"
	"encoding/json"

	"RewardBid/pkg/queue"
)

// BatchJobType is the Redis queue message type carrying a BatchMessage.
const BatchJobType = "bid_batch"

// BatchJob adapts the batch handler to the Redis work queue so producers
// without Kafka can still submit batches.
type BatchJob struct {
	handler *KafkaBatchHandler
}

func NewBatchJob(h *KafkaBatchHandler) *BatchJob {
	return &BatchJob{handler: h}
}

func (j *BatchJob) Name() string { return "bid-batch" }
func (j *BatchJob) Type() string { return BatchJobType }

func (j *BatchJob) Handle(ctx context.Context, payload json.RawMessage) error {
	m, err := queue.ParsePayload[BatchMessage](payload)
	if err != nil {
		j.handler.metrics.RecordError("queue_unmarshal")
		return err
	}
	return j.handler.Process(ctx, m)
}

var _ queue.Job = (*BatchJob)(nil)
