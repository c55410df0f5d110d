// Package flight provides the single-flight guard shared by enrollment and
// authentication: at most one of either operation may be in flight at a time.
package flight

import "sync"

// Guard is a non-blocking mutual exclusion gate. Callers that fail to
// acquire it must fail fast rather than queue.
type Guard struct {
	mu sync.Mutex
}

// TryAcquire attempts to take the guard without blocking. Returns false if
// another operation is already in flight.
func (g *Guard) TryAcquire() bool {
	return g.mu.TryLock()
}

// Release frees the guard. Must only be called after a successful TryAcquire.
func (g *Guard) Release() {
	g.mu.Unlock()
}
