package proxy

import (
	"testing"
	"time"
)

func TestTokenBucketAllowsBurstThenThrottles(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("expected burst token %d to be allowed", i)
		}
	}
	if tb.Allow() {
		t.Fatal("expected bucket to be exhausted after burst")
	}
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	tb := NewTokenBucket(1, 100)
	if !tb.Allow() {
		t.Fatal("expected first token to be allowed")
	}
	tb.lastRefill = time.Now().Add(-1 * time.Second)
	if !tb.Allow() {
		t.Fatal("expected token to refill after enough elapsed time")
	}
}

func TestRateLimiterPerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	if !rl.Allow("1.1.1.1") {
		t.Fatal("expected first request from client A to be allowed")
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("expected second immediate request from client A to be throttled")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("expected client B to have its own bucket")
	}
}

func TestRateLimiterUnknownClientIP(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()
	if !rl.Allow("") {
		t.Fatal("expected empty client IP to fall back to a shared 'unknown' bucket and be allowed")
	}
}

func TestRateLimiterAllowSessionKeysByUserAndIP(t *testing.T) {
	rl := NewRateLimiterForCluster("sales", 1, 1)
	defer rl.Stop()

	if !rl.AllowSession("alice", "10.0.0.1") {
		t.Fatal("expected first request from alice@10.0.0.1 to be allowed")
	}
	if rl.AllowSession("alice", "10.0.0.1") {
		t.Fatal("expected second immediate request from alice@10.0.0.1 to be throttled")
	}
	// A different user behind the same IP gets its own bucket: the
	// account, not the address, is the unit of throttling.
	if !rl.AllowSession("bob", "10.0.0.1") {
		t.Fatal("expected bob@10.0.0.1 to have its own bucket despite sharing alice's IP")
	}
}

func TestRateLimiterGetStats(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{RequestsPerSecond: 5, BurstSize: 10, CleanupInterval: time.Minute})
	defer rl.Stop()
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	stats := rl.GetStats()
	if stats.ActiveClients != 2 {
		t.Fatalf("expected 2 active clients, got %d", stats.ActiveClients)
	}
	if stats.RequestsPerSecond != 5 || stats.BurstSize != 10 {
		t.Fatalf("expected config to be reflected in stats, got %+v", stats)
	}
}
