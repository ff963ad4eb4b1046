// Package progress hands dedup progress from the pass goroutine to a
// consumer without ever blocking the pass.
package progress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between delivered updates.
const DefaultInterval = 500 * time.Millisecond

// Complete is the terminal percentage.
const Complete = 100

// Func is a progress callback receiving a percentage in [0, 100].
type Func func(percent int)

// Relay is a latest-value mailbox for progress percentages.
//
// Report records the highest percentage seen and signals the consumer at
// most once per interval; intermediate values may be coalesced. The
// terminal value (100) and whatever value is current at Close are always
// delivered.
type Relay struct {
	limiter *rate.Limiter
	notify  chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	latest    int
}

// NewRelay creates a Relay delivering at most one update per interval.
// A non-positive interval disables throttling.
func NewRelay(interval time.Duration) *Relay {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Relay{
		limiter: rate.NewLimiter(limit, 1),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		latest:  -1,
	}
}

// Report records percent. It never blocks.
func (r *Relay) Report(percent int) {
	r.mu.Lock()
	if percent > r.latest {
		r.latest = percent
	}
	r.mu.Unlock()

	if percent < Complete && !r.limiter.Allow() {
		return
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Func returns Report as a progress callback.
func (r *Relay) Func() Func {
	return r.Report
}

// Close marks the producer as finished. Drain returns after delivering the
// final value. Close is idempotent.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Latest returns the highest percentage reported so far, or -1.
func (r *Relay) Latest() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Drain delivers updates to fn until Close is called or ctx is done.
// Delivered values are strictly increasing.
func (r *Relay) Drain(ctx context.Context, fn Func) error {
	last := -1
	emit := func() {
		if p := r.Latest(); p > last {
			last = p
			fn(p)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.notify:
			emit()
		case <-r.done:
			emit()
			return nil
		}
	}
}
