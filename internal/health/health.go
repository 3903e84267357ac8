package health

import (
	"sync"
	"time"
)

// Status is the coarse health classification of a worker.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// decay is the exponential-moving-average factor applied per observation:
// rate' = rate*decay + outcome*(1-decay), outcome being 0 (success) or 1.
const decay = 0.9

// degradedAbove is the failure-rate threshold past which a worker is
// reported degraded.
const degradedAbove = 0.5

// State is the tracked health of one worker.
type State struct {
	Status       Status
	FailureRate  float64
	LastChecked  time.Time
	ResponseTime time.Duration
}

// Tracker keeps a decayed failure rate per worker id. Successes pull the
// rate toward zero, failures toward one; probe failures force unhealthy
// until the next successful probe.
type Tracker struct {
	mu     sync.Mutex
	states map[string]*State
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{states: make(map[string]*State)}
}

// Track registers a worker as healthy with a zero failure rate.
func (t *Tracker) Track(workerID string) {
	t.mu.Lock()
	t.states[workerID] = &State{Status: StatusHealthy, LastChecked: time.Now()}
	t.mu.Unlock()
}

// Remove drops all state for an unregistered worker.
func (t *Tracker) Remove(workerID string) {
	t.mu.Lock()
	delete(t.states, workerID)
	t.mu.Unlock()
}

// ObserveSuccess decays the failure rate toward zero and records the
// handler response time.
func (t *Tracker) ObserveSuccess(workerID string, rt time.Duration) {
	t.observe(workerID, 0, rt)
}

// ObserveFailure decays the failure rate toward one.
func (t *Tracker) ObserveFailure(workerID string, rt time.Duration) {
	t.observe(workerID, 1, rt)
}

func (t *Tracker) observe(workerID string, outcome float64, rt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[workerID]
	if !ok {
		st = &State{Status: StatusHealthy}
		t.states[workerID] = st
	}
	st.FailureRate = st.FailureRate*decay + outcome*(1-decay)
	st.ResponseTime = rt
	// Probe-forced unhealthy is only lifted by RecordProbe.
	if st.Status != StatusUnhealthy {
		if st.FailureRate > degradedAbove {
			st.Status = StatusDegraded
		} else {
			st.Status = StatusHealthy
		}
	}
}

// RecordProbe applies the outcome of a health probe: a failed probe marks
// the worker unhealthy; a successful one restores the rate-derived status.
func (t *Tracker) RecordProbe(workerID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, found := t.states[workerID]
	if !found {
		st = &State{}
		t.states[workerID] = st
	}
	st.LastChecked = time.Now()
	if !ok {
		st.Status = StatusUnhealthy
		return
	}
	if st.FailureRate > degradedAbove {
		st.Status = StatusDegraded
	} else {
		st.Status = StatusHealthy
	}
}

// IsHealthy reports whether the worker may receive dispatches in normal
// (non-fallback) mode. Degraded workers still qualify; unhealthy do not.
// Untracked workers are assumed healthy.
func (t *Tracker) IsHealthy(workerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[workerID]
	if !ok {
		return true
	}
	return st.Status != StatusUnhealthy
}

// Snapshot returns a copy of the worker's health state.
func (t *Tracker) Snapshot(workerID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[workerID]; ok {
		return *st
	}
	return State{Status: StatusHealthy}
}
