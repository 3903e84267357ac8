package qflow

import (
	"errors"

	"github.com/QFlow/qflow-go/internal/sched"
)

// ErrRateLimitExceeded is returned by Submit when the rate-limit window for
// the job's key is saturated. The job is never created; callers retry later.
var ErrRateLimitExceeded = sched.ErrRateLimitExceeded

// ErrDuplicateJob is returned by Submit when an explicit job id already
// exists in the store.
var ErrDuplicateJob = sched.ErrDuplicateJob

// ErrJobNotFound is returned when a job with the specified ID is not found.
var ErrJobNotFound = sched.ErrJobNotFound

// ErrEngineStopped is returned by Submit while the engine is draining or
// has not been started.
var ErrEngineStopped = sched.ErrStopped

// ErrWaitTimeout is returned by WaitForJob when the job does not reach a
// terminal state within the timeout.
var ErrWaitTimeout = errors.New("qflow: wait timed out")

// ErrUnknownState is returned when an invalid job state is used.
var ErrUnknownState = errors.New("qflow: unknown job state")
