package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultCapacity = 5
	DefaultWindow   = time.Minute
)

// Limiter is a sliding-window admission controller for outbound calls.
//
// At most capacity calls are admitted in any trailing window. Entries aged
// exactly window are expired. One Limiter is shared by every client that
// draws on the same upstream quota; it is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration

	// calls holds admission timestamps, oldest first.
	calls []time.Time
	total int64
}

// Usage is a read-only view of the limiter state.
type Usage struct {
	CallsInWindow int   `json:"calls_in_window"`
	Capacity      int   `json:"window_capacity"`
	Remaining     int   `json:"remaining"`
	TotalCalls    int64 `json:"total_calls_ever"`
	WindowSeconds int   `json:"window_seconds"`
}

// New returns a limiter admitting capacity calls per window.
// Non-positive arguments fall back to DefaultCapacity and DefaultWindow.
func New(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{capacity: capacity, window: window}
}

// Check reports whether a call at now would be admitted. When it would not,
// retryAfter is the number of whole seconds until the oldest entry expires.
func (l *Limiter) Check(now time.Time) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(now)
}

// Record registers an admitted call. Callers must gate with Check first;
// Acquire does both under one lock and is preferred.
func (l *Limiter) Record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(now)
}

// Acquire checks and, when allowed, records the call as a single critical section.
func (l *Limiter) Acquire(now time.Time) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed, retryAfter = l.checkLocked(now)
	if allowed {
		l.recordLocked(now)
	}
	return allowed, retryAfter
}

// Stats prunes expired entries and reports current usage.
func (l *Limiter) Stats(now time.Time) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	n := len(l.calls)
	remaining := l.capacity - n
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		CallsInWindow: n,
		Capacity:      l.capacity,
		Remaining:     remaining,
		TotalCalls:    l.total,
		WindowSeconds: int(l.window / time.Second),
	}
}

func (l *Limiter) checkLocked(now time.Time) (bool, int) {
	l.pruneLocked(now)
	if len(l.calls) < l.capacity {
		return true, 0
	}

	age := now.Sub(l.calls[0])
	retry := int(l.window/time.Second) - int(age/time.Second)
	if retry < 0 {
		retry = 0
	}
	return false, retry
}

func (l *Limiter) recordLocked(now time.Time) {
	l.calls = append(l.calls, now)
	l.total++
}

func (l *Limiter) pruneLocked(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i == 0 {
		return
	}
	// shift in place so the backing array does not grow without bound
	n := copy(l.calls, l.calls[i:])
	l.calls = l.calls[:n]
}
