package qflow

// WorkerStats is one worker's slice of a stats snapshot.
type WorkerStats struct {
	ID          string
	Type        string
	Active      int
	Concurrency int
	Weight      int
	Draining    bool
	// Utilization is Active over Concurrency.
	Utilization float64
	// Health is healthy, degraded or unhealthy.
	Health string
	// FailureRate is the decayed failure rate (0..1).
	FailureRate float64
}

// Stats is a read-only, side-effect-free snapshot of engine state.
type Stats struct {
	Waiting   int
	Delayed   int
	Active    int
	Completed int
	Failed    int

	Workers []WorkerStats

	// ThroughputPerMin counts completions inside the trailing minute.
	ThroughputPerMin int
	// ErrorRate is permanent failures over all terminal outcomes.
	ErrorRate float64
	// RateLimitRejected counts submissions rejected by the limiter.
	RateLimitRejected uint64
	// BreakerTrips counts circuit-breaker threshold crossings.
	BreakerTrips uint64
	// Retries counts attempts that were re-scheduled after a failure.
	Retries uint64
	// DegradedPicks counts dispatches that fell back to the full
	// candidate set because every worker was open or unhealthy.
	DegradedPicks uint64
}

// Stats assembles the snapshot.
func (e *Engine) Stats() Stats {
	s := e.core.Snapshot()
	out := Stats{
		Waiting:           s.Waiting,
		Delayed:           s.Delayed,
		Active:            s.Active,
		Completed:         s.Completed,
		Failed:            s.Failed,
		ThroughputPerMin:  s.ThroughputPerMin,
		ErrorRate:         s.ErrorRate,
		RateLimitRejected: s.RateLimitRejected,
		BreakerTrips:      s.BreakerTrips,
		Retries:           s.Retries,
		DegradedPicks:     s.DegradedPicks,
	}
	out.Workers = make([]WorkerStats, len(s.Workers))
	for i, w := range s.Workers {
		out.Workers[i] = WorkerStats(w)
	}
	return out
}
