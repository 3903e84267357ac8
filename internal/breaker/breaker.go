package breaker

import (
	"sync"
	"time"
)

// Config controls when a per-worker breaker opens and how long it stays open.
type Config struct {
	// FailureThreshold is the number of failures inside MonitoringPeriod
	// that opens the breaker.
	FailureThreshold int
	// MonitoringPeriod is the rolling window failures are counted over.
	MonitoringPeriod time.Duration
	// ResetTimeout is how long dispatch to the worker stays deferred after
	// the most recent qualifying failure.
	ResetTimeout time.Duration
}

// Registry tracks failure timestamps per worker id and answers whether a
// worker's breaker is currently open. Successes do not clear the history
// outright; pruning ages it out, which gives a worker a path back without
// instantly erasing recent failures.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	failures map[string][]time.Time
	trips    uint64
}

// New creates a breaker registry with the given thresholds.
func New(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = time.Minute
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Registry{cfg: cfg, failures: make(map[string][]time.Time)}
}

// RecordFailure appends a failure timestamp for the worker, prunes entries
// older than the monitoring period and reports whether this failure crossed
// the threshold.
func (r *Registry) RecordFailure(workerID string) bool {
	now := time.Now()
	r.mu.Lock()
	pruned := prune(r.failures[workerID], now.Add(-r.cfg.MonitoringPeriod))
	pruned = append(pruned, now)
	r.failures[workerID] = pruned
	tripped := len(pruned) == r.cfg.FailureThreshold
	if tripped {
		r.trips++
	}
	r.mu.Unlock()
	return tripped
}

// RecordSuccess prunes aged failures but never clears the list outright.
func (r *Registry) RecordSuccess(workerID string) {
	now := time.Now()
	r.mu.Lock()
	if fs, ok := r.failures[workerID]; ok {
		r.failures[workerID] = prune(fs, now.Add(-r.cfg.MonitoringPeriod))
	}
	r.mu.Unlock()
}

// IsOpen reports whether dispatch to the worker should be deferred:
// the pruned failure count reached the threshold and the most recent
// failure is younger than the reset timeout.
func (r *Registry) IsOpen(workerID string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	fs := prune(r.failures[workerID], now.Add(-r.cfg.MonitoringPeriod))
	r.failures[workerID] = fs
	if len(fs) < r.cfg.FailureThreshold {
		return false
	}
	return now.Sub(fs[len(fs)-1]) < r.cfg.ResetTimeout
}

// FailureCount returns the current pruned failure count for the worker.
func (r *Registry) FailureCount(workerID string) int {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	fs := prune(r.failures[workerID], now.Add(-r.cfg.MonitoringPeriod))
	r.failures[workerID] = fs
	return len(fs)
}

// Reset clears all breaker history for the worker, closing it immediately.
func (r *Registry) Reset(workerID string) {
	r.mu.Lock()
	delete(r.failures, workerID)
	r.mu.Unlock()
}

// Remove drops all state for an unregistered worker.
func (r *Registry) Remove(workerID string) {
	r.mu.Lock()
	delete(r.failures, workerID)
	r.mu.Unlock()
}

// Trips returns how many times any breaker crossed its threshold.
func (r *Registry) Trips() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trips
}

func prune(fs []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(fs); i++ {
		if fs[i].After(cutoff) {
			break
		}
	}
	if i == 0 {
		return fs
	}
	return append(fs[:0:0], fs[i:]...)
}
