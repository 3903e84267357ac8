package sched

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/QFlow/qflow-go/internal/balance"
	"github.com/QFlow/qflow-go/internal/hctx"
	"github.com/QFlow/qflow-go/internal/metrics"
	"github.com/QFlow/qflow-go/internal/worker"
	"github.com/google/uuid"
)

// Submit validates the spec, checks admission for its rate-limit key and,
// if admitted, creates the job and queues it for dispatch. A saturated
// window rejects the submission outright; the job is never created.
func (e *Engine) Submit(ctx context.Context, spec Spec) (string, error) {
	e.mu.Lock()
	if !e.started || e.draining {
		e.mu.Unlock()
		return "", ErrStopped
	}
	e.mu.Unlock()

	key := spec.RateLimitKey
	if key == "" {
		key = deriveKey(spec)
	}
	ok, err := e.limiter.Allow(ctx, key)
	if err != nil {
		e.log.Warnf("rate limiter error, failing open: key=%s err=%v", key, err)
	}
	if !ok {
		e.mu.Lock()
		e.rlRejected++
		e.mu.Unlock()
		metrics.RateLimitRejections.Inc()
		return "", ErrRateLimitExceeded
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.DefaultMaxAttempts
	}
	now := time.Now()
	job := &Job{
		ID:           id,
		Type:         spec.Type,
		Payload:      spec.Payload,
		Priority:     spec.Priority,
		MaxAttempts:  maxAttempts,
		Delay:        spec.Delay,
		CreatedAt:    now,
		ScheduledAt:  now.Add(spec.Delay),
		RateLimitKey: key,
	}

	e.mu.Lock()
	// Re-checked: Shutdown may have begun while the limiter was consulted.
	if !e.started || e.draining {
		e.mu.Unlock()
		return "", ErrStopped
	}
	if _, dup := e.jobs[id]; dup {
		e.mu.Unlock()
		return "", ErrDuplicateJob
	}
	e.seq++
	job.seq = e.seq
	e.jobs[id] = job
	if spec.Delay > 0 {
		job.State = StateDelayed
		e.timers[id] = time.AfterFunc(spec.Delay, func() { e.requeue(id) })
	} else {
		job.State = StateWaiting
		e.waiting = append(e.waiting, job)
	}
	e.snapshotQueueDepth()
	e.mu.Unlock()

	e.emit(Event{Type: EventJobAdded, JobID: id, JobType: spec.Type, At: now})
	if spec.Delay <= 0 {
		e.triggerDispatch()
	}
	return id, nil
}

// deriveKey builds the default admission key as type:callerId:resource.
func deriveKey(spec Spec) string {
	caller := spec.CallerID
	if caller == "" {
		caller = "default"
	}
	resource := spec.Resource
	if resource == "" {
		resource = "default"
	}
	return spec.Type + ":" + caller + ":" + resource
}

// RegisterWorker adds a typed processing slot and returns its id.
func (e *Engine) RegisterWorker(jobType string, h worker.Handler, concurrency, weight int, probe worker.Probe) string {
	id := uuid.NewString()
	e.workers.Register(&worker.Worker{
		ID:          id,
		Type:        jobType,
		Handler:     h,
		Concurrency: concurrency,
		Weight:      weight,
		Probe:       probe,
	})
	e.health.Track(id)
	e.log.Debugf("worker registered: id=%s type=%s concurrency=%d", id, jobType, concurrency)
	e.triggerDispatch()
	return id
}

// UnregisterWorker marks the worker draining; removal happens immediately
// when idle, otherwise after its last active job releases. In-flight jobs
// are never cancelled.
func (e *Engine) UnregisterWorker(workerID string) bool {
	drained, ok := e.workers.MarkDraining(workerID)
	if !ok {
		return false
	}
	if drained {
		e.removeWorker(workerID)
	}
	return true
}

func (e *Engine) removeWorker(workerID string) {
	e.workers.Remove(workerID)
	e.breakers.Remove(workerID)
	e.health.Remove(workerID)
	e.log.Debugf("worker removed: id=%s", workerID)
}

// dispatch runs one scheduling pass. Only the dispatch loop goroutine calls
// it, so passes never overlap; all state mutation happens under mu.
func (e *Engine) dispatch() {
	type assignment struct {
		jobID    string
		workerID string
		payload  []byte
		handler  worker.Handler
	}
	var assigned []assignment

	e.mu.Lock()
	if e.draining || len(e.waiting) == 0 {
		e.snapshotQueueDepth()
		e.mu.Unlock()
		return
	}

	// Higher priority wins; equal priority keeps arrival order.
	sort.SliceStable(e.waiting, func(i, j int) bool {
		if e.waiting[i].Priority != e.waiting[j].Priority {
			return e.waiting[i].Priority > e.waiting[j].Priority
		}
		return e.waiting[i].seq < e.waiting[j].seq
	})

	i := 0
	for i < len(e.waiting) && e.active < e.cfg.MaxConcurrency {
		job := e.waiting[i]
		workerID, ok := e.pickWorker(job.Type)
		if !ok {
			// No eligible worker; the job simply keeps waiting.
			i++
			continue
		}
		if _, held := e.processing[job.ID]; held {
			// Scheduling bug: the job is in waiting while its processing
			// lock is held. Drop it from waiting and log loudly.
			e.log.Errorf("processing lock already held for waiting job: id=%s", job.ID)
			e.waiting = append(e.waiting[:i], e.waiting[i+1:]...)
			continue
		}
		if !e.workers.Assign(workerID, job.ID) {
			i++
			continue
		}
		e.waiting = append(e.waiting[:i], e.waiting[i+1:]...)
		e.processing[job.ID] = struct{}{}
		job.State = StateActive
		job.StartedAt = time.Now()
		job.Attempts++
		job.WorkerID = workerID
		job.BreakerFailures = e.breakers.FailureCount(workerID)
		e.active++
		assigned = append(assigned, assignment{
			jobID:    job.ID,
			workerID: workerID,
			payload:  job.Payload,
			handler:  e.workers.Handler(workerID),
		})
	}
	e.snapshotQueueDepth()
	e.mu.Unlock()

	for _, a := range assigned {
		e.emit(Event{Type: EventJobStarted, JobID: a.jobID, WorkerID: a.workerID, At: time.Now()})
		go e.run(a.jobID, a.workerID, a.handler, a.payload)
	}
}

// pickWorker filters the type's candidates through the breaker registry and
// health tracker, then lets the strategy choose. When every candidate is
// filtered out but the unfiltered set is non-empty, it falls back to the
// full set rather than starving the job type.
func (e *Engine) pickWorker(jobType string) (string, bool) {
	cands := e.workers.Eligible(jobType)
	if len(cands) == 0 {
		return "", false
	}
	pool := make([]worker.Info, 0, len(cands))
	for _, c := range cands {
		if e.breakers.IsOpen(c.ID) || !e.health.IsHealthy(c.ID) {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		e.log.Warnf("degraded mode: all workers for type %q are circuit-open or unhealthy, using full candidate set", jobType)
		e.degradedPicked++
		pool = cands
	}
	bcs := make([]balance.Candidate, len(pool))
	for i, c := range pool {
		bcs[i] = balance.Candidate{ID: c.ID, Active: c.Active, Weight: c.Weight}
	}
	idx := e.strategy.Pick(bcs)
	if idx < 0 {
		return "", false
	}
	return pool[idx].ID, true
}

// run executes the handler outside the engine lock. Panics are recovered at
// this boundary and funneled into the failure path; nothing a handler does
// crashes the process.
func (e *Engine) run(jobID, workerID string, h worker.Handler, payload []byte) {
	st := hctx.New()
	ctx := hctx.WithState(e.ctx, st)
	start := time.Now()
	err := safeExec(ctx, h, payload)
	elapsed := time.Since(start)
	metrics.HandlerDuration.Observe(elapsed.Seconds())
	if err != nil {
		e.onFailure(jobID, workerID, st, err, elapsed)
	} else {
		e.onSuccess(jobID, workerID, st, elapsed)
	}
}

func safeExec(ctx context.Context, h worker.Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if h == nil {
		return fmt.Errorf("worker handler missing")
	}
	return h(ctx, payload)
}

func (e *Engine) onSuccess(jobID, workerID string, st *hctx.State, elapsed time.Duration) {
	e.breakers.RecordSuccess(workerID)
	e.health.ObserveSuccess(workerID, elapsed)
	metrics.JobsTotal.WithLabelValues("completed").Inc()

	now := time.Now()
	e.mu.Lock()
	job := e.jobs[jobID]
	delete(e.processing, jobID)
	e.active--
	if job != nil {
		job.State = StateCompleted
		job.CompletedAt = now
		job.Progress = st.Progress
		job.Result = st.Result
		e.completed = append(e.completed, job)
	}
	e.doneTotal++
	e.doneTimes = append(pruneTimes(e.doneTimes, now.Add(-time.Minute)), now)
	var result []byte
	if job != nil {
		result = job.Result
	}
	e.mu.Unlock()

	if e.workers.Release(workerID, jobID) {
		e.removeWorker(workerID)
	}
	e.notifyWaiters(jobID, Outcome{Result: result})
	e.emit(Event{Type: EventJobCompleted, JobID: jobID, WorkerID: workerID, At: now})
	e.triggerDispatch()
}

func (e *Engine) onFailure(jobID, workerID string, st *hctx.State, cause error, elapsed time.Duration) {
	if e.breakers.RecordFailure(workerID) {
		metrics.BreakerTrips.Inc()
	}
	e.health.ObserveFailure(workerID, elapsed)

	now := time.Now()
	e.mu.Lock()
	job := e.jobs[jobID]
	delete(e.processing, jobID)
	e.active--
	if job == nil {
		e.mu.Unlock()
		if e.workers.Release(workerID, jobID) {
			e.removeWorker(workerID)
		}
		e.triggerDispatch()
		return
	}
	job.LastError = cause.Error()
	job.Progress = st.Progress

	if job.Attempts < job.MaxAttempts {
		attempt, maxAtt := job.Attempts, job.MaxAttempts
		backoff := e.retryDelay(job)
		job.State = StateDelayed
		job.ScheduledAt = now.Add(backoff)
		e.retried++
		if !e.draining {
			e.timers[jobID] = time.AfterFunc(backoff, func() { e.requeue(jobID) })
		}
		e.mu.Unlock()

		metrics.JobsTotal.WithLabelValues("retried").Inc()
		if e.workers.Release(workerID, jobID) {
			e.removeWorker(workerID)
		}
		e.log.Warnf("handler error, retrying: id=%s attempt=%d/%d backoff=%s err=%v",
			jobID, attempt, maxAtt, backoff, cause)
		e.emit(Event{Type: EventJobRetry, JobID: jobID, WorkerID: workerID, Err: cause.Error(), At: now})
		e.triggerDispatch()
		return
	}

	job.State = StateFailed
	job.FailedAt = now
	maxAttempts := job.MaxAttempts
	e.failed = append(e.failed, job)
	e.failedTotal++
	e.mu.Unlock()

	metrics.JobsTotal.WithLabelValues("failed").Inc()
	if e.workers.Release(workerID, jobID) {
		e.removeWorker(workerID)
	}
	e.log.Errorf("job permanently failed: id=%s attempts=%d err=%v", jobID, maxAttempts, cause)
	e.notifyWaiters(jobID, Outcome{Err: fmt.Errorf("qflow: handler failed after %d attempts: %w", maxAttempts, cause)})
	e.emit(Event{Type: EventJobFailed, JobID: jobID, WorkerID: workerID, Err: cause.Error(), At: now})
	e.triggerDispatch()
}

// retryDelay computes delay * multiplier^(attempts-1); callers hold mu.
func (e *Engine) retryDelay(job *Job) time.Duration {
	base := job.Delay
	if base <= 0 {
		base = e.cfg.DefaultRetryDelay
	}
	mult := math.Pow(e.cfg.BackoffMultiplier, float64(job.Attempts-1))
	return time.Duration(float64(base) * mult)
}

// requeue moves a delayed job into the waiting collection when its timer
// fires. The per-job processing lock prevents double dispatch when a timer
// races another trigger.
func (e *Engine) requeue(jobID string) {
	e.mu.Lock()
	delete(e.timers, jobID)
	job, ok := e.jobs[jobID]
	if !ok || !e.started || e.draining {
		e.mu.Unlock()
		return
	}
	if _, held := e.processing[jobID]; held || job.State == StateActive {
		e.log.Errorf("requeue raced an active dispatch: id=%s", jobID)
		e.mu.Unlock()
		return
	}
	if job.State != StateDelayed {
		e.mu.Unlock()
		return
	}
	job.State = StateWaiting
	e.waiting = append(e.waiting, job)
	e.snapshotQueueDepth()
	e.mu.Unlock()
	e.triggerDispatch()
}

// ResetRateLimit clears the admission window for a key.
func (e *Engine) ResetRateLimit(key string) {
	if err := e.limiter.Reset(context.Background(), key); err != nil {
		e.log.Warnf("rate limit reset failed: key=%s err=%v", key, err)
	}
}

// ResetBreaker closes the worker's circuit breaker immediately.
func (e *Engine) ResetBreaker(workerID string) {
	e.breakers.Reset(workerID)
	e.triggerDispatch()
}

func pruneTimes(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}
