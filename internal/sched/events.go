package sched

import "time"

// EventType names one engine notification.
type EventType string

const (
	EventJobAdded       EventType = "job:added"
	EventJobStarted     EventType = "job:started"
	EventJobCompleted   EventType = "job:completed"
	EventJobFailed      EventType = "job:failed"
	EventJobRetry       EventType = "job:retry"
	EventScalingNeeded  EventType = "scaling:needed"
	EventMetricsUpdated EventType = "metrics:updated"
)

// Event is a single engine notification fanned out to subscribers.
type Event struct {
	Type      EventType
	JobID     string
	JobType   string
	WorkerID  string
	Err       string
	Direction string
	Pressure  float64
	At        time.Time
}

// subscriberBuffer sizes each subscription channel. A subscriber that falls
// this far behind starts missing events rather than blocking dispatch.
const subscriberBuffer = 64

// Subscribe registers an event channel. The returned cancel detaches it;
// the channel is never closed, it simply stops receiving.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()
	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
	return ch, cancel
}

// emit fans the event out without ever blocking the caller.
func (e *Engine) emit(ev Event) {
	e.subMu.Lock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	e.subMu.Unlock()
}

// Wait returns a channel that delivers the job's terminal outcome. For a
// job already finished it delivers immediately; the second return detaches
// the waiter.
func (e *Engine) Wait(jobID string) (<-chan Outcome, func(), error) {
	ch := make(chan Outcome, 1)
	e.mu.Lock()
	job, ok := e.jobs[jobID]
	if !ok {
		e.mu.Unlock()
		return nil, nil, ErrJobNotFound
	}
	switch job.State {
	case StateCompleted:
		ch <- Outcome{Result: job.Result}
		e.mu.Unlock()
		return ch, func() {}, nil
	case StateFailed:
		ch <- Outcome{Err: terminalError(job)}
		e.mu.Unlock()
		return ch, func() {}, nil
	}
	// Registered while still holding the state lock, so a completion
	// cannot slip between the terminal check and the registration.
	e.subMu.Lock()
	e.waiters[jobID] = append(e.waiters[jobID], ch)
	e.subMu.Unlock()
	e.mu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		ws := e.waiters[jobID]
		for i := range ws {
			if ws[i] == ch {
				e.waiters[jobID] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(e.waiters[jobID]) == 0 {
			delete(e.waiters, jobID)
		}
		e.subMu.Unlock()
	}
	return ch, cancel, nil
}

func (e *Engine) notifyWaiters(jobID string, out Outcome) {
	e.subMu.Lock()
	ws := e.waiters[jobID]
	delete(e.waiters, jobID)
	e.subMu.Unlock()
	for _, ch := range ws {
		ch <- out
	}
}

func terminalError(job *Job) error {
	return &FailedError{JobID: job.ID, Attempts: job.Attempts, LastError: job.LastError}
}

// FailedError is delivered to waiters of a permanently failed job when the
// original handler error value is no longer in hand (post-hoc Wait calls).
type FailedError struct {
	JobID     string
	Attempts  int
	LastError string
}

func (e *FailedError) Error() string {
	return "qflow: job " + e.JobID + " failed permanently: " + e.LastError
}
