package worker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handler executes one job payload. It must be safe to invoke concurrently
// across distinct jobs and must not retain the payload after returning.
type Handler func(ctx context.Context, payload []byte) error

// Probe is an optional worker health check invoked periodically.
type Probe func(ctx context.Context) error

// Worker is a named, typed processing slot. Its active set is owned by the
// Registry and must only be touched under the registry lock.
type Worker struct {
	ID          string
	Type        string
	Handler     Handler
	Concurrency int
	Weight      int
	Probe       Probe

	active   map[string]struct{}
	draining bool
	added    time.Time
}

// Info is a read-only snapshot of one worker for stats and probing.
type Info struct {
	ID          string
	Type        string
	Active      int
	Concurrency int
	Weight      int
	Draining    bool
	Probe       Probe
}

// Registry holds all registered workers scoped by job type.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Worker
	byType map[string][]*Worker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Worker),
		byType: make(map[string][]*Worker),
	}
}

// Register adds a worker. Concurrency below 1 is clamped to 1.
func (r *Registry) Register(w *Worker) {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	w.active = make(map[string]struct{})
	w.added = time.Now()
	r.mu.Lock()
	r.byID[w.ID] = w
	r.byType[w.Type] = append(r.byType[w.Type], w)
	r.mu.Unlock()
}

// MarkDraining flags a worker for removal. It reports whether the worker
// exists and whether its active set is already empty, in which case the
// caller should Remove it right away. In-flight jobs are never cancelled.
func (r *Registry) MarkDraining(id string) (drained, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, found := r.byID[id]
	if !found {
		return false, false
	}
	w.draining = true
	return len(w.active) == 0, true
}

// Remove drops the worker from both indexes.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, found := r.byID[id]
	if !found {
		return false
	}
	delete(r.byID, id)
	ws := r.byType[w.Type]
	for i := range ws {
		if ws[i].ID == id {
			r.byType[w.Type] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(r.byType[w.Type]) == 0 {
		delete(r.byType, w.Type)
	}
	return true
}

// Clear drops every worker; used by shutdown after the drain deadline.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.byID = make(map[string]*Worker)
	r.byType = make(map[string][]*Worker)
	r.mu.Unlock()
}

// Eligible returns snapshots of workers for the job type that still have
// spare capacity and are not draining, in registration order.
func (r *Registry) Eligible(jobType string) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws := r.byType[jobType]
	out := make([]Info, 0, len(ws))
	for _, w := range ws {
		if w.draining || len(w.active) >= w.Concurrency {
			continue
		}
		out = append(out, snapshot(w))
	}
	return out
}

// Assign records a job on the worker's active set. It fails when the worker
// is gone, draining, or already at capacity, or when the job id is somehow
// already held, which would mean a double dispatch.
func (r *Registry) Assign(workerID, jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[workerID]
	if !ok || w.draining || len(w.active) >= w.Concurrency {
		return false
	}
	if _, dup := w.active[jobID]; dup {
		return false
	}
	w.active[jobID] = struct{}{}
	return true
}

// Release removes a job from the worker's active set. It reports whether
// the worker is draining and now empty, so the caller can finish the
// deferred unregistration.
func (r *Registry) Release(workerID, jobID string) (drainedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[workerID]
	if !ok {
		return false
	}
	delete(w.active, jobID)
	return w.draining && len(w.active) == 0
}

// Handler returns the worker's handler, or nil if the worker is gone.
func (r *Registry) Handler(workerID string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.byID[workerID]; ok {
		return w.Handler
	}
	return nil
}

// Holds reports whether the job id is currently on any worker's active set.
func (r *Registry) Holds(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.byID {
		if _, ok := w.active[jobID]; ok {
			return true
		}
	}
	return false
}

// TotalActive counts in-flight jobs across all workers.
func (r *Registry) TotalActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, w := range r.byID {
		n += len(w.active)
	}
	return n
}

// Snapshot returns every worker ordered by id for stats and probe sweeps.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.byID))
	for _, w := range r.byID {
		out = append(out, snapshot(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func snapshot(w *Worker) Info {
	return Info{
		ID:          w.ID,
		Type:        w.Type,
		Active:      len(w.active),
		Concurrency: w.Concurrency,
		Weight:      w.Weight,
		Draining:    w.draining,
		Probe:       w.Probe,
	}
}
