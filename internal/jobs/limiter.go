package jobs

// limiter.go bounds how many pipelines run at once.
//
// A buffered channel acts as the semaphore. Submit waits up to maxWait for a
// slot and then fails with ErrTooManyJobs, so a burst of uploads queues
// briefly instead of starving the host. WaitForDrain lets serve block on
// shutdown until running pipelines finish.

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultMaxConcurrentJobs is used when the configured limit is not positive.
const DefaultMaxConcurrentJobs = 4

// DefaultMaxWait is how long Acquire waits for a slot before rejecting.
const DefaultMaxWait = 30 * time.Second

// Limiter is a counting semaphore for pipeline runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows at most maxConcurrent pipelines. Callers that cannot get
// a slot within maxWait receive ErrTooManyJobs.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, maxWait elapses or ctx is done.
// Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyJobs
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of running pipelines.
func (l *Limiter) Active() int {
	return int(l.active.Load())
}

// Capacity returns the configured concurrency limit.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no pipeline holds a slot or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
