package footballapi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ── Limiter ────────────────────────────────────────────────
// Sliding-window log: remembers the instant of every admitted call and
// admits a new one only while fewer than Calls instants fall inside the
// trailing Period. Over any window of length Period at most Calls requests
// are sent.

// Limiter enforces a client-side call quota.
type Limiter struct {
	calls  int
	period time.Duration
	clock  Clock

	mu  sync.Mutex
	log []time.Time // admitted call instants, oldest first
}

// NewLimiter allows calls requests per period.
func NewLimiter(calls int, period time.Duration, clock Clock) (*Limiter, error) {
	if calls <= 0 {
		return nil, fmt.Errorf("rate limit calls must be positive, got %d", calls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate limit period must be positive, got %s", period)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Limiter{calls: calls, period: period, clock: clock}, nil
}

// Wait blocks until a call may be sent, then records it.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait := l.reserve()
		if wait <= 0 {
			return nil
		}
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve admits a call and returns 0, or returns how long until the oldest
// call in the window expires.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.period)
	drop := 0
	for drop < len(l.log) && !l.log[drop].After(cutoff) {
		drop++
	}
	l.log = l.log[drop:]

	if len(l.log) < l.calls {
		l.log = append(l.log, now)
		return 0
	}
	return l.log[0].Add(l.period).Sub(now)
}
