package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/QFlow/qflow-go/internal/balance"
	"github.com/QFlow/qflow-go/internal/breaker"
	"github.com/QFlow/qflow-go/internal/health"
	"github.com/QFlow/qflow-go/internal/metrics"
	"github.com/QFlow/qflow-go/internal/worker"
)

// ErrRateLimitExceeded is returned by Submit when the key's admission
// window is saturated; the job is never created.
var ErrRateLimitExceeded = errors.New("qflow: rate limit exceeded")

// ErrDuplicateJob is returned by Submit when the explicit job id is already
// present in the store.
var ErrDuplicateJob = errors.New("qflow: duplicate job id")

// ErrJobNotFound is returned when the job id is unknown.
var ErrJobNotFound = errors.New("qflow: job not found")

// ErrStopped is returned when the engine is draining or shut down.
var ErrStopped = errors.New("qflow: engine stopped")

// Logger is a minimal logging interface used internally by the engine.
// It mirrors the public logger in the root package to avoid an import cycle.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Limiter is the admission gate consulted on every submission. It mirrors
// the public RateLimitStore interface in the root package.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Config carries every engine tunable. Zero values are filled with
// defaults by New.
type Config struct {
	// MaxConcurrency caps in-flight jobs across all workers.
	MaxConcurrency int
	// Strategy names the load-balancing strategy (see internal/balance).
	Strategy string
	// Limiter is the admission store; required.
	Limiter Limiter
	// Breaker configures the per-worker circuit breakers.
	Breaker breaker.Config
	// DefaultMaxAttempts applies when a submission does not set its own.
	DefaultMaxAttempts int
	// DefaultRetryDelay is the backoff base for jobs submitted without a delay.
	DefaultRetryDelay time.Duration
	// BackoffMultiplier grows the retry delay per attempt.
	BackoffMultiplier float64
	// Retention is how long completed and failed records are kept.
	Retention time.Duration
	// CleanupInterval is the cadence of the retention purge.
	CleanupInterval time.Duration
	// HealthCheckInterval is the cadence of worker probes.
	HealthCheckInterval time.Duration
	// ScaleUpThreshold is the waiting count treated as pressure 1.0.
	ScaleUpThreshold int
	// AutoScaleInterval is the cadence of queue-pressure evaluation.
	AutoScaleInterval time.Duration
	// MetricsInterval is the cadence of metrics aggregation events.
	MetricsInterval time.Duration
	// Logger receives engine diagnostics.
	Logger Logger
}

func (c *Config) fillDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 50
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = 3
	}
	if c.DefaultRetryDelay <= 0 {
		c.DefaultRetryDelay = 100 * time.Millisecond
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 30 * time.Second
	}
	if c.ScaleUpThreshold <= 0 {
		c.ScaleUpThreshold = 20
	}
	if c.AutoScaleInterval <= 0 {
		c.AutoScaleInterval = 10 * time.Second
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Job state names.
const (
	StateWaiting   = "waiting"
	StateDelayed   = "delayed"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Job is the authoritative record for one unit of work.
type Job struct {
	ID           string
	Type         string
	Payload      []byte
	Priority     int
	Attempts     int
	MaxAttempts  int
	Delay        time.Duration
	State        string
	CreatedAt    time.Time
	ScheduledAt  time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	FailedAt     time.Time
	LastError    string
	RateLimitKey string
	WorkerID     string
	Progress     int
	Result       []byte
	// BreakerFailures mirrors the assigned worker's breaker failure count
	// at dispatch time, for inspection only.
	BreakerFailures int

	seq uint64
}

// Spec describes one submission.
type Spec struct {
	ID           string
	Type         string
	Payload      []byte
	Priority     int
	Delay        time.Duration
	MaxAttempts  int
	RateLimitKey string
	CallerID     string
	Resource     string
}

// Outcome is the terminal result of a job delivered to waiters.
type Outcome struct {
	Result []byte
	Err    error
}

// Engine is the scheduling core: job store, dispatcher, retry manager,
// lifecycle maintenance. All shared state is serialized behind mu; handler
// execution happens outside it.
type Engine struct {
	cfg Config
	log Logger

	mu         sync.Mutex
	jobs       map[string]*Job
	waiting    []*Job
	completed  []*Job
	failed     []*Job
	processing map[string]struct{}
	timers     map[string]*time.Timer
	seq        uint64
	active     int

	workers  *worker.Registry
	breakers *breaker.Registry
	health   *health.Tracker
	strategy balance.Strategy
	limiter  Limiter

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	draining bool
	kick     chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	waiters map[string][]chan Outcome

	rlRejected     uint64
	retried        uint64
	doneTotal      uint64
	failedTotal    uint64
	doneTimes      []time.Time
	degradedPicked uint64
}

// New creates an engine. Start must be called before it dispatches.
func New(cfg Config) *Engine {
	cfg.fillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		log:        cfg.Logger,
		jobs:       make(map[string]*Job),
		processing: make(map[string]struct{}),
		timers:     make(map[string]*time.Timer),
		workers:    worker.NewRegistry(),
		breakers:   breaker.New(cfg.Breaker),
		health:     health.New(),
		strategy:   balance.New(cfg.Strategy),
		limiter:    cfg.Limiter,
		ctx:        ctx,
		cancel:     cancel,
		kick:       make(chan struct{}, 1),
		subs:       make(map[int]chan Event),
		waiters:    make(map[string][]chan Outcome),
	}
}

// Start launches the dispatch loop and maintenance goroutines.
// It is idempotent and non-blocking.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.log.Warnf("engine already started; ignoring Start()")
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()
	e.log.Infof("engine starting: maxConcurrency=%d strategy=%s", e.cfg.MaxConcurrency, e.strategy.Name())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchLoop()
	}()

	// Retention cleaner for completed/failed records.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.cleanup()
			}
		}
	}()

	// Worker probe sweep.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.probeWorkers()
			}
		}
	}()

	// Queue-pressure evaluation; advisory only, never resizes the pool.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.AutoScaleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.evaluatePressure()
			}
		}
	}()

	// Periodic metrics aggregation event.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.MetricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.emit(Event{Type: EventMetricsUpdated, At: time.Now()})
			}
		}
	}()
}

// Summary reports the outcome of a graceful shutdown.
type Summary struct {
	// ActiveAtCutoff lists job ids still running when the deadline hit.
	ActiveAtCutoff []string
	// TimedOut is true when the drain deadline elapsed with jobs active.
	TimedOut bool
}

// Shutdown stops new dispatch cycles, waits for in-flight jobs up to the
// timeout, then tears down maintenance goroutines and clears the worker
// registry. In-flight handlers past the deadline are reported, not killed.
func (e *Engine) Shutdown(timeout time.Duration) Summary {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return Summary{}
	}
	e.draining = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()
	e.log.Infof("engine draining: timeout=%s", timeout)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		e.mu.Lock()
		n := e.active
		e.mu.Unlock()
		if n == 0 || time.Now().After(deadline) {
			break
		}
		<-ticker.C
	}

	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	remaining := make([]string, 0, e.active)
	for id := range e.processing {
		remaining = append(remaining, id)
	}
	e.workers.Clear()
	e.started = false
	e.mu.Unlock()

	if len(remaining) > 0 {
		e.log.Warnf("shutdown deadline reached with %d active jobs", len(remaining))
	} else {
		e.log.Infof("engine stopped cleanly")
	}
	return Summary{ActiveAtCutoff: remaining, TimedOut: len(remaining) > 0}
}

// cleanup purges completed/failed records older than the retention horizon
// from both the record lists and the job store. Active and waiting jobs are
// never purged regardless of age. Limiters that track per-key windows in
// memory get swept on the same tick.
func (e *Engine) cleanup() {
	cutoff := time.Now().Add(-e.cfg.Retention)
	e.mu.Lock()
	e.completed = e.purgeList(e.completed, cutoff)
	e.failed = e.purgeList(e.failed, cutoff)
	e.mu.Unlock()
	if s, ok := e.limiter.(interface{ Sweep() }); ok {
		s.Sweep()
	}
}

func (e *Engine) purgeList(list []*Job, cutoff time.Time) []*Job {
	kept := list[:0]
	for _, j := range list {
		done := j.CompletedAt
		if j.State == StateFailed {
			done = j.FailedAt
		}
		if done.Before(cutoff) {
			delete(e.jobs, j.ID)
			continue
		}
		kept = append(kept, j)
	}
	return kept
}

// probeWorkers runs each worker's optional health probe outside the engine
// lock; a worker without a probe is assumed healthy.
func (e *Engine) probeWorkers() {
	for _, w := range e.workers.Snapshot() {
		if w.Probe == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
		err := w.Probe(ctx)
		cancel()
		if err != nil {
			e.log.Warnf("health probe failed: worker=%s err=%v", w.ID, err)
		}
		e.health.RecordProbe(w.ID, err == nil)
	}
}

// evaluatePressure emits advisory scaling events. The engine never creates
// or destroys workers itself; the host subscribes and acts.
func (e *Engine) evaluatePressure() {
	e.mu.Lock()
	waiting := len(e.waiting)
	active := e.active
	e.mu.Unlock()

	pressure := float64(waiting) / float64(e.cfg.ScaleUpThreshold)
	if pressure > 1 {
		e.log.Infof("queue pressure %.2f exceeds threshold; advising scale-up", pressure)
		e.emit(Event{Type: EventScalingNeeded, Direction: "up", Pressure: pressure, At: time.Now()})
		return
	}
	if waiting == 0 && active == 0 && pressure < 0.25 {
		e.emit(Event{Type: EventScalingNeeded, Direction: "down", Pressure: pressure, At: time.Now()})
	}
}

// triggerDispatch coalesces dispatch requests into the 1-buffered kick
// channel; redundant triggers collapse into the pending one.
func (e *Engine) triggerDispatch() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatchLoop() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.kick:
			e.dispatch()
		}
	}
}

// snapshotQueueDepth refreshes the prometheus gauge; callers hold mu.
func (e *Engine) snapshotQueueDepth() {
	metrics.QueueDepth.Set(float64(len(e.waiting)))
}
