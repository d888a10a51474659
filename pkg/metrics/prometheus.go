package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	bidsTotal    *prometheus.CounterVec
	bidAmount    *prometheus.HistogramVec
	judgments    *prometheus.CounterVec
	rate         *prometheus.GaugeVec
	budget       *prometheus.GaugeVec
	overshoot    *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		bidsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardbid_bids_total",
				Help: "Bids placed per category",
			},
			[]string{"category"},
		),
		bidAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewardbid_bid_amount",
				Help:    "Final bid amounts",
				Buckets: []float64{0, 0.5, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"category"},
		),
		judgments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardbid_judgments_total",
				Help: "Auction judgments by result",
			},
			[]string{"result"},
		),
		rate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rewardbid_rate",
				Help: "Current learned bid rate",
			},
			[]string{"session", "category"},
		),
		budget: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rewardbid_budget_remaining",
				Help: "Remaining budget per session",
			},
			[]string{"session"},
		),
		overshoot: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardbid_pacing_overshoot_total",
				Help: "Bids whose allowed amount exceeded the remaining budget",
			},
			[]string{"category"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardbid_outcomes_sent_total",
				Help: "Outcome batches delivered per backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardbid_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewardbid_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBid(category string, amount, bid float64) {
	r.bidsTotal.WithLabelValues(category).Inc()
	r.bidAmount.WithLabelValues(category).Observe(bid)
}

func (r *Recorder) RecordJudgment(result string) {
	r.judgments.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordRate(sessionID, category string, rate float64) {
	r.rate.WithLabelValues(sessionID, category).Set(rate)
}

func (r *Recorder) RecordBudget(sessionID string, budget float64) {
	r.budget.WithLabelValues(sessionID).Set(budget)
}

func (r *Recorder) RecordOvershoot(category string) {
	r.overshoot.WithLabelValues(category).Inc()
}

// RecordMessageSent records an outcome batch delivered to a backend.
func (r *Recorder) RecordMessageSent(backend string) {
	r.messagesSent.WithLabelValues(backend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// ForgetSession drops the per-session series once a session is closed.
func (r *Recorder) ForgetSession(sessionID string) {
	r.budget.DeleteLabelValues(sessionID)
	r.rate.DeletePartialMatch(prometheus.Labels{"session": sessionID})
}
