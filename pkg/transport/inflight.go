package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks upstream operations (connects and tool calls)
// that are still running, so that shutdown can abort the ones that outlive
// the grace period. Safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[string]context.CancelFunc)}
}

// Track derives a cancelable context for the operation identified by id.
// The returned release function must be called when the operation ends.
func (r *InFlightRegistry) Track(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.entries[id] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
		cancel()
	}
}

// Len returns the number of running operations.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CancelAll aborts every running operation and returns how many there were.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	for id, cancel := range r.entries {
		cancel()
		delete(r.entries, id)
	}
	return n
}
