package metrics

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	domrepo "RewardBid/internal/domain/repository"
)

var (
	_ domrepo.Metrics = (*Recorder)(nil)
	_ domrepo.Metrics = Nop{}
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordBid("gas", 100, 3)
	r.RecordBid("gas", 50, 1.5)
	r.RecordJudgment("win")
	r.RecordBudget("s1", 12.5)
	r.RecordRate("s1", "gas", 0.031)
	r.RecordRate("s1", "travel", 0.029)
	r.RecordOvershoot("gas")

	check.Equal(t, 2.0, testutil.ToFloat64(r.bidsTotal.WithLabelValues("gas")))
	check.Equal(t, 1.0, testutil.ToFloat64(r.judgments.WithLabelValues("win")))
	check.Equal(t, 12.5, testutil.ToFloat64(r.budget.WithLabelValues("s1")))
	check.Equal(t, 0.031, testutil.ToFloat64(r.rate.WithLabelValues("s1", "gas")))
	check.Equal(t, 1.0, testutil.ToFloat64(r.overshoot.WithLabelValues("gas")))
	check.Equal(t, 2, testutil.CollectAndCount(r.rate))

	r.ForgetSession("s1")
	check.Equal(t, 0, testutil.CollectAndCount(r.rate))
	check.Equal(t, 0, testutil.CollectAndCount(r.budget))
}
