package usecase

import (
	"context"
	"errors"
	"testing"

	"RewardBid/internal/domain/models"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func someOutcomes() []*models.Outcome {
	return []*models.Outcome{
		{Index: 0, Bid: &models.BidResult{Category: "gas", Bid: 1}},
		{Index: 1, Error: "bid transaction 1: transaction amount is negative"},
	}
}

func TestOutcomeProcessorRouting(t *testing.T) {
	cases := []struct {
		backend   string
		published int
		stored    int
	}{
		{BackendNone, 0, 0},
		{BackendKafka, 2, 0},
		{BackendClickHouse, 0, 2},
		{BackendBoth, 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			pub, store := &memPublisher{}, &memStorage{}
			metrics := newCountingMetrics()
			p := NewOutcomeProcessor(pub, store, metrics, tc.backend)

			assert.NoError(t, p.Process(context.Background(), "s1", someOutcomes()))
			check.Equal(t, tc.published, pub.count("s1"))
			check.Equal(t, tc.stored, store.count("s1"))
			if tc.published > 0 {
				check.Equal(t, 1, metrics.sent[BackendKafka])
			}
		})
	}
}

func TestOutcomeProcessorStorage(t *testing.T) {
	store := &memStorage{}
	check.Nil(t, NewOutcomeProcessor(nil, store, nil, BackendKafka).Storage())
	check.NotNil(t, NewOutcomeProcessor(nil, store, nil, BackendBoth).Storage())
	check.Equal(t, BackendNone, NewOutcomeProcessor(nil, nil, nil, "").Backend())
}

func TestOutcomeProcessorErrors(t *testing.T) {
	ctx := context.Background()
	metrics := newCountingMetrics()

	err := NewOutcomeProcessor(nil, nil, metrics, BackendKafka).Process(ctx, "s1", someOutcomes())
	check.Error(t, err)

	store := &memStorage{}
	pub := &memPublisher{fail: errDown}
	err = NewOutcomeProcessor(pub, store, metrics, BackendBoth).Process(ctx, "s1", someOutcomes())
	check.True(t, errors.Is(err, errDown))
	// a failing publisher does not stop persistence
	check.Equal(t, 2, store.count("s1"))

	err = NewOutcomeProcessor(nil, nil, metrics, "s3").Process(ctx, "s1", someOutcomes())
	check.Error(t, err)
	check.Equal(t, 3, metrics.errorCount("process_outcomes"))

	check.NoError(t, NewOutcomeProcessor(nil, nil, metrics, BackendKafka).Process(ctx, "s1", nil))
}
