package client

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces requests of a Client at a fixed interval with a burst
// allowance, so a short poll interval cannot flood the market service.
//
// It keeps the time at which the bucket would next be empty (nextFree).
// A request may go when nextFree is no more than burst-1 intervals ahead,
// and reserves one interval either way.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	slack    time.Duration
	nextFree time.Time
	now      func() time.Time
}

// NewRateLimiter allows bursts of burst requests and one more per interval.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &RateLimiter{
		interval: interval,
		slack:    time.Duration(burst-1) * interval,
		now:      time.Now,
	}
}

// Wait blocks until the caller's slot comes up or ctx is done. A canceled
// wait hands its slot back.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay, reserved := r.reserve()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.release(reserved)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve books the next slot and returns how long the caller must wait
// for it along with the booked nextFree value.
func (r *RateLimiter) reserve() (time.Duration, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	start := r.nextFree
	if start.Before(now) {
		start = now
	}
	r.nextFree = start.Add(r.interval)
	return start.Sub(now) - r.slack, r.nextFree
}

// release returns a slot when no later reservation was made on top of it.
func (r *RateLimiter) release(reserved time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextFree.Equal(reserved) {
		r.nextFree = r.nextFree.Add(-r.interval)
	}
}
