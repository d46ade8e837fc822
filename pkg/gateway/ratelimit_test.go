package gateway

import (
	"testing"
	"time"
)

func TestRateLimiter_ExactBoundary(t *testing.T) {
	l := NewRateLimiter(60*time.Second, 100)

	for i := 0; i < 100; i++ {
		if !l.Allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("request 101 should be rejected")
	}
	if got := l.Remaining("client-a"); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l := NewRateLimiter(60*time.Second, 2)
	l.now = func() time.Time { return current }

	if !l.Allow("client-a") || !l.Allow("client-a") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("client-a") {
		t.Error("third request inside window should be rejected")
	}

	// Still inside the window.
	current = base.Add(59 * time.Second)
	if l.Allow("client-a") {
		t.Error("request at 59s should still be rejected")
	}

	// First two stamps have slid out.
	current = base.Add(61 * time.Second)
	if !l.Allow("client-a") {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	l := NewRateLimiter(60*time.Second, 1)

	if !l.Allow("client-a") {
		t.Fatal("client-a first request should be allowed")
	}
	if l.Allow("client-a") {
		t.Error("client-a second request should be rejected")
	}
	if !l.Allow("client-b") {
		t.Error("client-b should not be affected by client-a's budget")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	l := NewRateLimiter(60*time.Second, 5)

	if got := l.Remaining("client-a"); got != 5 {
		t.Errorf("expected 5 remaining for fresh client, got %d", got)
	}
	l.Allow("client-a")
	l.Allow("client-a")
	if got := l.Remaining("client-a"); got != 3 {
		t.Errorf("expected 3 remaining, got %d", got)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l := NewRateLimiter(60*time.Second, 10)
	l.now = func() time.Time { return current }

	l.Allow("stale")
	current = base.Add(30 * time.Second)
	l.Allow("live")

	current = base.Add(70 * time.Second)
	l.Prune()

	if _, ok := l.clients["stale"]; ok {
		t.Error("stale client should have been pruned")
	}
	if _, ok := l.clients["live"]; !ok {
		t.Error("live client should survive pruning")
	}
}
