package qflow

import (
	"sync"
	"time"

	"github.com/QFlow/qflow-go/internal/sched"
)

// EventType names one engine notification.
type EventType string

const (
	// EventJobAdded fires when a submission is admitted and stored.
	EventJobAdded EventType = "job:added"
	// EventJobStarted fires when a job is assigned to a worker.
	EventJobStarted EventType = "job:started"
	// EventJobCompleted fires when a handler returns successfully.
	EventJobCompleted EventType = "job:completed"
	// EventJobFailed fires when a job exhausts its attempts.
	EventJobFailed EventType = "job:failed"
	// EventJobRetry fires when a failed attempt is scheduled for retry.
	EventJobRetry EventType = "job:retry"
	// EventScalingNeeded advises the host that queue pressure crossed a
	// threshold. The engine never resizes the worker pool itself.
	EventScalingNeeded EventType = "scaling:needed"
	// EventMetricsUpdated fires on each periodic metrics aggregation.
	EventMetricsUpdated EventType = "metrics:updated"
)

// Event is a single engine notification delivered to subscribers.
type Event struct {
	Type EventType
	// JobID identifies the job for job:* events.
	JobID string
	// JobType is set on job:added.
	JobType string
	// WorkerID identifies the assigned worker where applicable.
	WorkerID string
	// Err carries the handler error message on retry and failure events.
	Err string
	// Direction is "up" or "down" on scaling:needed.
	Direction string
	// Pressure is waiting count over the scale-up threshold.
	Pressure float64
	At       time.Time
}

// Subscribe registers an event channel carrying the engine's notifications.
// The channel is buffered; a subscriber that falls behind misses events
// rather than blocking dispatch. The returned cancel detaches it.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	in, coreCancel := e.core.Subscribe()
	out := make(chan Event, 64)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-in:
				select {
				case out <- eventFromSched(ev):
				default:
				}
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			coreCancel()
			close(done)
		})
	}
	return out, cancel
}

func eventFromSched(ev sched.Event) Event {
	return Event{
		Type:      EventType(ev.Type),
		JobID:     ev.JobID,
		JobType:   ev.JobType,
		WorkerID:  ev.WorkerID,
		Err:       ev.Err,
		Direction: ev.Direction,
		Pressure:  ev.Pressure,
		At:        ev.At,
	}
}
