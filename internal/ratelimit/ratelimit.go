// Package ratelimit implements the per-source request budget (C3): a
// fixed-capacity permit pool replenished wholesale once per 60 s window,
// with a smaller per-second golang.org/x/time/rate limiter layered on top
// to prevent a caller from draining the whole window's capacity in a
// single burst. Earlier source material tried to model the window
// refill as repeatedly calling try_acquire_many(permits_consumed) on a
// token-bucket limiter, which re-grants whatever was just spent instead
// of resetting to capacity; this implementation refills to capacity on
// a fixed ticker instead (spec §9 redesign note).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const window = 60 * time.Second

// Limiter is a single source's permit pool.
type Limiter struct {
	mu         sync.Mutex
	cond       *sync.Cond
	capacity   int
	available  int
	perSecond  *rate.Limiter
	stop       chan struct{}
	rejections int64
}

// New constructs a Limiter allowing requestsPerMinute permits per 60 s
// window, burst-guarded to at most a quarter of that per second.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	perSecondBurst := requestsPerMinute/4 + 1
	l := &Limiter{
		capacity:  requestsPerMinute,
		available: requestsPerMinute,
		perSecond: rate.NewLimiter(rate.Limit(requestsPerMinute)/60.0*4.0, perSecondBurst),
		stop:      make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.refillLoop()
	return l
}

func (l *Limiter) refillLoop() {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.available = l.capacity
			l.cond.Broadcast()
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Acquire blocks until a permit is available or ctx is done. Per the
// caller contract (spec §4.3), callers always wait; the Rejections
// counter only rises when ctx ends before a permit is granted.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.perSecond.Wait(ctx); err != nil {
		l.mu.Lock()
		l.rejections++
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for l.available <= 0 {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				l.cond.Broadcast()
			case <-done:
			}
		}()
		l.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			l.rejections++
			return ctx.Err()
		}
	}
	l.available--
	return nil
}

// Available reports the current permit count, for metrics/tests.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available
}

// Rejections reports how many Acquire calls returned an error because
// ctx ended while they waited.
func (l *Limiter) Rejections() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejections
}

// Close stops the refill goroutine. Safe to call once.
func (l *Limiter) Close() {
	close(l.stop)
}

// Registry tracks one Limiter per source, created lazily.
type Registry struct {
	mu                sync.Mutex
	limiters          map[string]*Limiter
	requestsPerMinute int
}

// NewRegistry constructs a Registry whose limiters all share the same
// requests-per-minute budget.
func NewRegistry(requestsPerMinute int) *Registry {
	return &Registry{limiters: make(map[string]*Limiter), requestsPerMinute: requestsPerMinute}
}

// For returns the Limiter for source, creating it on first use.
func (r *Registry) For(source string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[source]
	if !ok {
		l = New(r.requestsPerMinute)
		r.limiters[source] = l
	}
	return l
}

// Close stops every limiter's refill goroutine.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.limiters {
		l.Close()
	}
}
