package services

import (
	"sync"
	"time"
)

// SlidingWindowLimiter counts connection attempts per client identity
// inside a sliding window. It gates connection establishment only;
// in-stream messages are never limited.
type SlidingWindowLimiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
	now     func() time.Time
}

func NewSlidingWindowLimiter(capacity int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		capacity: capacity,
		window:   window,
		history:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records one attempt for key and reports whether it fits within
// the window's capacity. A denied attempt is not recorded, so a client
// saturating its window is not punished beyond the window itself.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.history[key][:0]
	for _, t := range l.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.capacity {
		l.history[key] = kept
		return false
	}

	l.history[key] = append(kept, now)
	return true
}

// Prune drops identities with no attempts inside the window. Called
// periodically so the table does not grow with client churn.
func (l *SlidingWindowLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, attempts := range l.history {
		live := false
		for _, t := range attempts {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.history, key)
		}
	}
}
