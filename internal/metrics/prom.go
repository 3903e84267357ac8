package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qflow_jobs_total", Help: "Jobs by terminal outcome"},
		[]string{"status"},
	)
	HandlerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "qflow_handler_duration_seconds", Help: "Handler execution time"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "qflow_queue_depth", Help: "Jobs waiting for dispatch"},
	)
	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "qflow_ratelimit_rejections_total", Help: "Submissions rejected by the rate limiter"},
	)
	BreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "qflow_breaker_trips_total", Help: "Circuit breaker threshold crossings"},
	)
)

// Collectors returns every collector for registration by the host.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{JobsTotal, HandlerDuration, QueueDepth, RateLimitRejections, BreakerTrips}
}
