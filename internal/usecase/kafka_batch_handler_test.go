package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"RewardBid/pkg/logger"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestKafkaBatchHandler(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	metrics := newCountingMetrics()
	h := NewKafkaBatchHandler("bid.batches", m, metrics, logger.Nop())
	check.Equal(t, "bid.batches", h.Topic())

	msg, err := json.Marshal(BatchMessage{SessionID: "k1", Budget: 20, Batch: *threeItems()})
	assert.NoError(t, err)

	assert.NoError(t, h.Handle(ctx, msg))
	st, err := m.Get("k1")
	assert.NoError(t, err)
	check.Equal(t, 1, st.Runs)
	check.Equal(t, 20.0, st.InitialBudget)

	// An existing session keeps its budget; the message budget is ignored.
	msg, _ = json.Marshal(BatchMessage{SessionID: "k1", Budget: 999, Batch: *threeItems()})
	assert.NoError(t, h.Handle(ctx, msg))
	st, _ = m.Get("k1")
	check.Equal(t, 2, st.Runs)
	check.Equal(t, 20.0, st.InitialBudget)
}

func TestKafkaBatchHandlerRejects(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	metrics := newCountingMetrics()
	h := NewKafkaBatchHandler("bid.batches", m, metrics, logger.Nop())

	check.Error(t, h.Handle(ctx, []byte("{not json")))
	check.Equal(t, 1, metrics.errorCount("consumer_unmarshal"))

	check.Error(t, h.Handle(ctx, []byte(`{"budget": 5}`)))
	check.Equal(t, 1, metrics.errorCount("consumer_validate"))

	check.Error(t, h.Handle(ctx, []byte(`{"session_id": "k2", "budget": 0}`)))
	check.Equal(t, 1, metrics.errorCount("consumer_session"))
}

func TestBatchJob(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	metrics := newCountingMetrics()
	job := NewBatchJob(NewKafkaBatchHandler("bid.batches", m, metrics, nil))
	check.Equal(t, BatchJobType, job.Type())

	payload, err := json.Marshal(BatchMessage{SessionID: "q1", Budget: 20, Batch: *threeItems()})
	assert.NoError(t, err)
	assert.NoError(t, job.Handle(ctx, payload))

	st, err := m.Get("q1")
	assert.NoError(t, err)
	check.Equal(t, 3, st.Processed)

	check.Error(t, job.Handle(ctx, []byte(`"nope"`)))
	check.Equal(t, 1, metrics.errorCount("queue_unmarshal"))
}
