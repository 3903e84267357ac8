package qflow

import (
	"github.com/QFlow/qflow-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors returns the engine's prometheus collectors for registration
// by the host: terminal job outcomes, handler duration, queue depth,
// rate-limit rejections and breaker trips.
func Collectors() []prometheus.Collector {
	return metrics.Collectors()
}
