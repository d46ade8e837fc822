package gateway

import (
	"sync"
	"time"
)

// RateLimiter is a per-client sliding window limiter.
//
// Each client gets an independent window; one client saturating its budget
// never affects another. State lives in memory, so in a multi-gateway
// deployment the limit applies per instance.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clients map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records an attempt for the client and reports whether it fits the
// window. The boundary is exact: request max is admitted, request max+1
// inside the same window is rejected.
func (l *RateLimiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.clients[clientID]
	// Drop entries that slid out of the window.
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.clients[clientID] = kept
		return false
	}

	l.clients[clientID] = append(kept, now)
	return true
}

// Remaining reports how many requests the client has left in the current
// window.
func (l *RateLimiter) Remaining(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, ts := range l.clients[clientID] {
		if ts.After(cutoff) {
			count++
		}
	}
	if count >= l.max {
		return 0
	}
	return l.max - count
}

// Prune drops clients whose whole window has expired. Called periodically
// so long-gone clients do not pin memory.
func (l *RateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for clientID, stamps := range l.clients {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.clients, clientID)
		}
	}
}
