package ratelimiter

import (
	"sync"
	"time"
)

type Limiter interface {
	// Allow reports whether the source may proceed, and if not, how long
	// until its window resets.
	Allow(source string) (bool, time.Duration)
	Close()
}

type window struct {
	count   int
	resetAt time.Time
}

// FixedWindowRateLimiter counts requests per source within fixed time
// frames. Expired windows are reaped by a background ticker.
type FixedWindowRateLimiter struct {
	windows map[string]*window
	limit   int
	frame   time.Duration
	mu      sync.Mutex
	done    chan struct{}
}

func NewFixedWindowRateLimiter(limit int, frame time.Duration) *FixedWindowRateLimiter {
	if limit <= 0 {
		limit = 20
	}
	if frame <= 0 {
		frame = 5 * time.Second
	}

	rl := &FixedWindowRateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		frame:   frame,
		done:    make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *FixedWindowRateLimiter) Allow(source string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[source]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[source] = &window{count: 1, resetAt: now.Add(rl.frame)}
		return true, 0
	}

	if w.count >= rl.limit {
		return false, time.Until(w.resetAt)
	}

	w.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for source, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, source)
		}
	}
}

func (rl *FixedWindowRateLimiter) Close() {
	close(rl.done)
}
