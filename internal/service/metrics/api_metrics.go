package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rewardbid",
			Subsystem: "api",
			Name:      "stream_clients",
			Help:      "Connected websocket outcome streams",
		},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewardbid",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-session limiter",
		},
		[]string{"route"},
	)
)

// Register exposes the API metrics; activeSessions is sampled on every scrape.
func Register(activeSessions func() float64) {
	once.Do(func() {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "rewardbid",
				Subsystem: "api",
				Name:      "active_sessions",
				Help:      "Sessions currently open",
			}, activeSessions),
			StreamClients,
			RateLimited,
		)
	})
}
