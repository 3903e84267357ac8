package qflow

import "context"

// HandlerFunc is the function signature for processing a job payload.
// It must be safe to invoke concurrently across distinct jobs and must not
// retain the payload or job id beyond its own invocation.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Middleware is a function that wraps a HandlerFunc to provide
// cross-cutting concerns (logging, tracing, payload validation).
type Middleware func(HandlerFunc) HandlerFunc

// Use adds middleware to the engine. Middlewares wrap every handler
// registered afterwards, executed in the order they were added; workers
// registered before a Use call are not rewrapped.
func (e *Engine) Use(mw Middleware) {
	e.mu.Lock()
	e.middlewares = append(e.middlewares, mw)
	e.mu.Unlock()
}

func (e *Engine) wrapHandler(h HandlerFunc) HandlerFunc {
	e.mu.Lock()
	mws := make([]Middleware, len(e.middlewares))
	copy(mws, e.middlewares)
	e.mu.Unlock()
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
