package logger

import "sync"

// RingBuffer keeps the most recent entries in a fixed-capacity window.
// Safe for concurrent use.
type RingBuffer[T any] struct {
	mu      sync.RWMutex
	entries []T
	next    int
	full    bool
}

// NewRingBuffer creates a buffer that retains the last capacity entries.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	return &RingBuffer[T]{entries: make([]T, capacity)}
}

// Push appends an entry, evicting the oldest once the window is full.
func (r *RingBuffer[T]) Push(entry T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Snapshot copies the buffered entries in oldest-to-newest order.
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]T, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]T, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len reports how many entries are currently buffered.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
