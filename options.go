package qflow

import (
	"context"
	"time"
)

type options struct {
	id           string
	priority     int
	delay        time.Duration
	maxAttempts  int
	rateLimitKey string
	callerID     string
	resource     string
}

// Option is a function that configures job behavior during Submit.
type Option func(*options)

// JobID sets a custom ID for the job. If not provided, a random UUID will
// be generated. Submitting a duplicate ID fails with ErrDuplicateJob.
func JobID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// Priority sets the dispatch priority; higher values are dispatched first.
func Priority(p int) Option {
	return func(o *options) {
		o.priority = p
	}
}

// Delay schedules the job to become eligible after the specified duration.
// It also serves as the base delay for exponential retry backoff.
func Delay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// MaxAttempts caps the number of dispatch attempts before the job is
// permanently failed.
func MaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// RateLimitKey overrides the admission key. By default the key is derived
// as type:callerId:resource.
func RateLimitKey(key string) Option {
	return func(o *options) {
		o.rateLimitKey = key
	}
}

// CallerID identifies the submitting caller in the derived admission key.
func CallerID(id string) Option {
	return func(o *options) {
		o.callerID = id
	}
}

// Resource identifies the target resource in the derived admission key.
func Resource(r string) Option {
	return func(o *options) {
		o.resource = r
	}
}

type workerOptions struct {
	concurrency int
	weight      int
	probe       func(ctx context.Context) error
}

// WorkerOption configures a worker during RegisterWorker.
type WorkerOption func(*workerOptions)

// Concurrency sets the maximum number of simultaneous jobs for the worker.
// Values below 1 are clamped to 1.
func Concurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		o.concurrency = n
	}
}

// Weight sets the worker's share for the weighted balancing strategy.
func Weight(w int) WorkerOption {
	return func(o *workerOptions) {
		o.weight = w
	}
}

// HealthProbe attaches a periodic health check. A failing probe marks the
// worker unhealthy until a later probe succeeds; workers without a probe
// are assumed healthy.
func HealthProbe(fn func(ctx context.Context) error) WorkerOption {
	return func(o *workerOptions) {
		o.probe = fn
	}
}
