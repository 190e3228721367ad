package core

// limiter.go implements bounded concurrency for CPU-heavy work.
//
// Password hashing and spreadsheet parsing each get their own Limiter so a
// burst of one cannot starve the other. When all slots are occupied, callers
// wait up to maxWait before failing with ErrBusy.
//
// WaitForDrain lets graceful shutdown block until in-flight work finishes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when all slots are occupied and the wait timeout
// expires. Clients should retry after a short delay.
var ErrBusy = errors.New("too many requests in progress, please try again later")

// DefaultMaxConcurrent is the default limit for parallel work.
const DefaultMaxConcurrent = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// Limiter controls concurrent processing using a semaphore pattern.
type Limiter struct {
	name      string
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter that allows at most maxConcurrent holders.
// Callers that cannot acquire a slot within maxWait receive ErrBusy.
func NewLimiter(name string, maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &Limiter{
		name:      name,
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Name identifies the limiter in logs and status output.
func (l *Limiter) Name() string {
	return l.name
}

// Acquire waits for a slot. It returns ErrBusy when maxWait elapses first,
// or ctx.Err() when the caller gives up. The caller MUST call Release
// after a successful Acquire.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.TryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-timer.C:
		return ErrBusy

	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot. Must be called exactly once per successful
// Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of slots currently held.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot capacity.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no slot is held or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of a limiter's state.
type LimiterStatus struct {
	Name          string `json:"name"`
	Active        int    `json:"active"`
	Available     int    `json:"available"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// Status returns the current limiter state for health output.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Name:          l.name,
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
