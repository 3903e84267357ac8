package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is the admission gate consulted on every submission. Allow reports
// whether the caller identified by key may submit right now; Reset clears
// the window for a key.
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type window struct {
	count   int
	resetAt time.Time
}

// Memory is the default in-process store: one counting window per key,
// reset to {1, now+window} once the window elapses.
type Memory struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	windows map[string]*window
}

// NewMemory creates an in-memory store admitting max requests per window.
func NewMemory(win time.Duration, max int) *Memory {
	if win <= 0 {
		win = time.Minute
	}
	if max <= 0 {
		max = 100
	}
	return &Memory{window: win, max: max, windows: make(map[string]*window)}
}

// Allow admits the request unless the key's window is already saturated.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		m.windows[key] = &window{count: 1, resetAt: now.Add(m.window)}
		return true, nil
	}
	if w.count >= m.max {
		return false, nil
	}
	w.count++
	return true, nil
}

// Reset clears the window for the key; the next Allow starts fresh.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired windows so idle keys do not accumulate.
func (m *Memory) Sweep() {
	now := time.Now()
	m.mu.Lock()
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
	m.mu.Unlock()
}
