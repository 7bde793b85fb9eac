package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_server"

var (
	// CacheLookups counts cache reads by entity (session, interaction) and
	// result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache reads by entity and result.",
	}, []string{"entity", "result"})

	CacheWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_write_failures_total",
		Help:      "Cache writes or deletes that failed and were absorbed.",
	}, []string{"entity"})

	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limit checks by result (allowed, denied, error).",
	}, []string{"result"})

	GeneratorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generator_requests_total",
		Help:      "Response generator calls by provider and result.",
	}, []string{"provider", "result"})

	GeneratorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generator_duration_seconds",
		Help:      "Response generator latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Message pairs persisted.",
	})
)

// RegisterSSEClients exposes the number of connected event streams.
func RegisterSSEClients(reg prometheus.Registerer, count func() int) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sse_clients",
		Help:      "Event streams connected to this instance.",
	}, func() float64 {
		return float64(count())
	})
}
