package qflow

import (
	"time"

	"github.com/QFlow/qflow-go/internal/sched"
)

// Job is a read-only snapshot of one unit of work as seen by inspection
// APIs. The authoritative record lives inside the engine.
type Job struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Type is the category binding the job to a worker pool.
	Type string `json:"type"`
	// Payload is the encoded job data passed to the handler.
	Payload []byte `json:"payload"`
	// Priority orders dispatch; higher values are dispatched first.
	Priority int `json:"priority"`
	// Attempts is the number of dispatches made so far.
	Attempts int `json:"attempts"`
	// MaxAttempts caps dispatches before the job fails permanently.
	MaxAttempts int `json:"max_attempts"`
	// Delay is the scheduling delay and the base retry backoff.
	Delay time.Duration `json:"delay"`
	// State is the current lifecycle state.
	State JobState `json:"state"`
	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`
	// ScheduledAt is the earliest eligible dispatch time.
	ScheduledAt time.Time `json:"scheduled_at"`
	// StartedAt is when the latest attempt began.
	StartedAt time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the job finished successfully.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	// FailedAt is when the job failed permanently.
	FailedAt time.Time `json:"failed_at,omitempty"`
	// LastError is the message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`
	// RateLimitKey is the admission key the submission was counted under.
	RateLimitKey string `json:"rate_limit_key"`
	// WorkerID is the worker the latest attempt was assigned to.
	WorkerID string `json:"worker_id,omitempty"`
	// Progress is the handler-reported progress (0..100).
	Progress int `json:"progress,omitempty"`
	// Result is the handler-attached result, stored encoded.
	Result []byte `json:"result,omitempty"`
	// BreakerFailures mirrors the assigned worker's breaker failure count
	// at dispatch time; authoritative breaker state stays in the engine.
	BreakerFailures int `json:"breaker_failures,omitempty"`
}

// JobFilter selects jobs during ListJobs.
type JobFilter func(*Job) bool

func jobFromSched(j sched.Job) *Job {
	return &Job{
		ID:              j.ID,
		Type:            j.Type,
		Payload:         j.Payload,
		Priority:        j.Priority,
		Attempts:        j.Attempts,
		MaxAttempts:     j.MaxAttempts,
		Delay:           j.Delay,
		State:           JobState(j.State),
		CreatedAt:       j.CreatedAt,
		ScheduledAt:     j.ScheduledAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		FailedAt:        j.FailedAt,
		LastError:       j.LastError,
		RateLimitKey:    j.RateLimitKey,
		WorkerID:        j.WorkerID,
		Progress:        j.Progress,
		Result:          j.Result,
		BreakerFailures: j.BreakerFailures,
	}
}
