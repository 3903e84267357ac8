package sched

import (
	"time"
)

// WorkerStat is one worker's slice of the stats snapshot.
type WorkerStat struct {
	ID          string
	Type        string
	Active      int
	Concurrency int
	Weight      int
	Draining    bool
	Utilization float64
	Health      string
	FailureRate float64
}

// Stats is a read-only, side-effect-free snapshot of engine state.
type Stats struct {
	Waiting   int
	Delayed   int
	Active    int
	Completed int
	Failed    int

	Workers []WorkerStat

	ThroughputPerMin  int
	ErrorRate         float64
	RateLimitRejected uint64
	BreakerTrips      uint64
	Retries           uint64
	DegradedPicks     uint64
}

// Snapshot assembles the stats view. Throughput counts completions inside
// the trailing minute; error rate is failures over all terminal outcomes.
func (e *Engine) Snapshot() Stats {
	now := time.Now()
	e.mu.Lock()
	e.doneTimes = pruneTimes(e.doneTimes, now.Add(-time.Minute))
	s := Stats{
		Waiting:           len(e.waiting),
		Delayed:           len(e.timers),
		Active:            e.active,
		Completed:         len(e.completed),
		Failed:            len(e.failed),
		ThroughputPerMin:  len(e.doneTimes),
		RateLimitRejected: e.rlRejected,
		Retries:           e.retried,
		DegradedPicks:     e.degradedPicked,
	}
	if total := e.doneTotal + e.failedTotal; total > 0 {
		s.ErrorRate = float64(e.failedTotal) / float64(total)
	}
	e.mu.Unlock()

	s.BreakerTrips = e.breakers.Trips()
	for _, w := range e.workers.Snapshot() {
		hs := e.health.Snapshot(w.ID)
		ws := WorkerStat{
			ID:          w.ID,
			Type:        w.Type,
			Active:      w.Active,
			Concurrency: w.Concurrency,
			Weight:      w.Weight,
			Draining:    w.Draining,
			Health:      string(hs.Status),
			FailureRate: hs.FailureRate,
		}
		if w.Concurrency > 0 {
			ws.Utilization = float64(w.Active) / float64(w.Concurrency)
		}
		s.Workers = append(s.Workers, ws)
	}
	return s
}

// Get returns a copy of the job record.
func (e *Engine) Get(jobID string) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns copies of every job in the given state, optionally filtered.
func (e *Engine) List(state string, filter func(*Job) bool) []Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Job, 0)
	for _, job := range e.jobs {
		if job.State != state {
			continue
		}
		if filter != nil && !filter(job) {
			continue
		}
		out = append(out, *job)
	}
	return out
}

// HoldsJob reports whether any worker currently has the job in flight.
// Exposed for invariant checks in tests.
func (e *Engine) HoldsJob(jobID string) bool {
	return e.workers.Holds(jobID)
}
