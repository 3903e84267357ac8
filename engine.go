package qflow

import (
	"context"
	"sync"
	"time"

	"github.com/QFlow/qflow-go/internal/breaker"
	"github.com/QFlow/qflow-go/internal/ratelimit"
	"github.com/QFlow/qflow-go/internal/sched"
	"github.com/QFlow/qflow-go/internal/worker"
)

// Strategy names a load-balancing rule for choosing among eligible workers.
type Strategy string

const (
	// RoundRobin cycles through candidates in order.
	RoundRobin Strategy = "round-robin"
	// LeastConnections prefers the worker with the fewest in-flight jobs.
	LeastConnections Strategy = "least-connections"
	// Weighted draws candidates proportionally to their configured weight.
	Weighted Strategy = "weighted"
	// PriorityStrategy is a configuration alias of LeastConnections; both
	// express "prefer the least loaded worker".
	PriorityStrategy Strategy = "priority"
)

// RateLimitConfig tunes submission admission control.
type RateLimitConfig struct {
	// Window is the counting window per key.
	Window time.Duration
	// MaxRequests is the number of submissions admitted per window.
	MaxRequests int
	// Store overrides the default in-process store, e.g. with
	// NewRedisRateLimit for replica-shared budgets.
	Store RateLimitStore
}

// BreakerConfig tunes the per-worker circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the failure count that opens a breaker.
	FailureThreshold int
	// MonitoringPeriod is the rolling window failures are counted over.
	MonitoringPeriod time.Duration
	// ResetTimeout is how long dispatch stays deferred after the most
	// recent qualifying failure.
	ResetTimeout time.Duration
}

// Config defines the configuration for a qflow engine. Zero values get
// sensible defaults in New.
type Config struct {
	// MaxConcurrency caps in-flight jobs across all workers.
	MaxConcurrency int
	// Strategy selects the load-balancing rule.
	Strategy Strategy
	// RateLimit configures submission admission control.
	RateLimit RateLimitConfig
	// Breaker configures per-worker circuit breaking.
	Breaker BreakerConfig
	// MaxAttempts is the default attempt cap for submissions without one.
	MaxAttempts int
	// RetryDelay is the backoff base for jobs submitted without a delay.
	RetryDelay time.Duration
	// BackoffMultiplier grows the retry delay per attempt (default 2).
	BackoffMultiplier float64
	// Retention bounds how long completed/failed records are kept (default 24h).
	Retention time.Duration
	// CleanupInterval is the cadence of the retention purge.
	CleanupInterval time.Duration
	// HealthCheckInterval is the cadence of worker health probes.
	HealthCheckInterval time.Duration
	// ScaleUpThreshold is the waiting count treated as queue pressure 1.0.
	ScaleUpThreshold int
	// AutoScaleInterval is the cadence of advisory pressure evaluation.
	AutoScaleInterval time.Duration
	// MetricsInterval is the cadence of metrics:updated events.
	MetricsInterval time.Duration
	// Logger receives engine diagnostics.
	Logger Logger
	// Encoder serializes payloads; defaults to JSONEncoder.
	Encoder Encoder
}

// Engine is the job scheduling and worker-coordination core: priority
// dispatch, per-key rate limiting, per-worker circuit breaking, pluggable
// load balancing, exponential-backoff retry, health tracking and graceful
// draining. It never creates or destroys worker capacity itself.
type Engine struct {
	core *sched.Engine
	enc  Encoder
	log  Logger

	mu          sync.Mutex
	middlewares []Middleware
}

// New creates an engine. Call Start before submitting work.
func New(cfg Config) *Engine {
	l := cfg.Logger
	if l == nil {
		l = NewFmtLogger()
	}
	enc := cfg.Encoder
	if enc == nil {
		enc = &JSONEncoder{}
	}
	store := cfg.RateLimit.Store
	if store == nil {
		store = ratelimit.NewMemory(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}
	core := sched.New(sched.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		Strategy:       string(cfg.Strategy),
		Limiter:        store,
		Breaker: breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MonitoringPeriod: cfg.Breaker.MonitoringPeriod,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
		},
		DefaultMaxAttempts:  cfg.MaxAttempts,
		DefaultRetryDelay:   cfg.RetryDelay,
		BackoffMultiplier:   cfg.BackoffMultiplier,
		Retention:           cfg.Retention,
		CleanupInterval:     cfg.CleanupInterval,
		HealthCheckInterval: cfg.HealthCheckInterval,
		ScaleUpThreshold:    cfg.ScaleUpThreshold,
		AutoScaleInterval:   cfg.AutoScaleInterval,
		MetricsInterval:     cfg.MetricsInterval,
		Logger:              coreLogger{Logger: l},
	})
	return &Engine{core: core, enc: enc, log: l}
}

// Start launches the dispatch loop and maintenance routines.
// It is idempotent and non-blocking.
func (e *Engine) Start() {
	e.core.Start()
}

// Submit encodes the payload, checks the rate-limit window for the job's
// admission key and, if admitted, stores the job and signals the
// dispatcher. A saturated window returns ErrRateLimitExceeded and the job
// is never created.
func (e *Engine) Submit(ctx context.Context, jobType string, payload any, opts ...Option) (string, error) {
	data, err := e.enc.Encode(payload)
	if err != nil {
		return "", err
	}
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	return e.core.Submit(ctx, sched.Spec{
		ID:           cfg.id,
		Type:         jobType,
		Payload:      data,
		Priority:     cfg.priority,
		Delay:        cfg.delay,
		MaxAttempts:  cfg.maxAttempts,
		RateLimitKey: cfg.rateLimitKey,
		CallerID:     cfg.callerID,
		Resource:     cfg.resource,
	})
}

// JobSpec describes one entry of a batch submission.
type JobSpec struct {
	Type    string
	Payload any
	Options []Option
}

// SubmitBatch submits the specs in order and returns their job ids.
// It stops at the first rejection; the returned slice covers the specs
// submitted before the error.
func (e *Engine) SubmitBatch(ctx context.Context, specs []JobSpec) ([]string, error) {
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		id, err := e.Submit(ctx, s.Type, s.Payload, s.Options...)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RegisterWorker adds a typed processing slot bound to the handler and
// returns its worker id. Engine middlewares added before this call wrap
// the handler.
func (e *Engine) RegisterWorker(jobType string, h HandlerFunc, opts ...WorkerOption) string {
	cfg := &workerOptions{concurrency: 1, weight: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	wrapped := e.wrapHandler(h)
	var probe worker.Probe
	if cfg.probe != nil {
		probe = worker.Probe(cfg.probe)
	}
	return e.core.RegisterWorker(jobType, worker.Handler(wrapped), cfg.concurrency, cfg.weight, probe)
}

// UnregisterWorker removes a worker once its active jobs drain. In-flight
// jobs are never cancelled. It reports whether the worker existed.
func (e *Engine) UnregisterWorker(workerID string) bool {
	return e.core.UnregisterWorker(workerID)
}

// WaitForJob blocks until the job reaches a terminal state, the timeout
// elapses, or ctx is done. On success it returns the handler-attached
// result bytes; a permanently failed job yields the wrapped handler error.
func (e *Engine) WaitForJob(ctx context.Context, jobID string, timeout time.Duration) ([]byte, error) {
	ch, cancel, err := e.core.Wait(jobID)
	if err != nil {
		return nil, err
	}
	defer cancel()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.Result, out.Err
	case <-timer.C:
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetJob returns a snapshot of the job record.
func (e *Engine) GetJob(jobID string) (*Job, error) {
	j, err := e.core.Get(jobID)
	if err != nil {
		return nil, err
	}
	return jobFromSched(j), nil
}

// ListJobs returns snapshots of every job in the given state, optionally
// filtered by any field.
func (e *Engine) ListJobs(state JobState, filter JobFilter) ([]*Job, error) {
	if _, err := ParseState(string(state)); err != nil {
		return nil, err
	}
	raw := e.core.List(string(state), nil)
	out := make([]*Job, 0, len(raw))
	for i := range raw {
		j := jobFromSched(raw[i])
		if filter == nil || filter(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

// ResetRateLimit clears the admission window for a key.
func (e *Engine) ResetRateLimit(key string) {
	e.core.ResetRateLimit(key)
}

// ResetCircuitBreaker closes the worker's breaker immediately and triggers
// a dispatch pass.
func (e *Engine) ResetCircuitBreaker(workerID string) {
	e.core.ResetBreaker(workerID)
}

// ShutdownSummary reports the outcome of a graceful shutdown.
type ShutdownSummary struct {
	// ActiveAtCutoff lists job ids still running when the deadline hit.
	ActiveAtCutoff []string
	// TimedOut is true when the drain deadline elapsed with jobs active.
	TimedOut bool
}

// Shutdown stops pulling new work, waits for in-flight jobs up to the
// timeout, then tears down the engine and clears the worker registry.
// Handlers still running past the deadline are reported, not killed.
func (e *Engine) Shutdown(timeout time.Duration) ShutdownSummary {
	s := e.core.Shutdown(timeout)
	return ShutdownSummary(s)
}

// coreLogger adapts the public Logger to the internal engine logger interface.
type coreLogger struct{ Logger }
