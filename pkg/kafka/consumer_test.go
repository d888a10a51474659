package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 0; attempt < 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		check.True(t, d > 0)
		check.True(t, d <= max)
	}
}

func TestEncode(t *testing.T) {
	b, err := encode([]byte("raw"))
	check.NoError(t, err)
	check.Equal(t, "raw", string(b))

	b, err = encode(map[string]int{"a": 1})
	check.NoError(t, err)
	check.Equal(t, `{"a":1}`, string(b))
}

func TestTraceHook(t *testing.T) {
	ctx, err := TraceHook.BeforeHandle(context.Background(), "bid.batches", kafka.Message{
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}},
	})
	check.NoError(t, err)
	check.Equal(t, "abc", TraceID(ctx))
	check.Equal(t, "", TraceID(context.Background()))
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	check.Error(t, err)
	_, err = NewProducer()
	check.Error(t, err)
}
