package proxy

import (
	"log"
	"sync"
	"time"
)

// TokenBucket is one session's rate-limit bucket, grounded on
// server/rate_limiter.go's TokenBucket.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// RateLimiter throttles one cluster's traffic, one token bucket per
// session key, grounded on server/rate_limiter.go's RateLimiter but
// rebucketed to this proxy's actual identity model: spec.md's rule
// engine already keys sessions as "user@host" (rules.Session.composite),
// and this limiter buckets the same way rather than by bare client IP, so
// a single noisy account can't exhaust another account's quota from
// behind the same NAT, and a single host isn't throttled as one unit when
// several distinct users connect through it.
type RateLimiter struct {
	clusterName string
	config      *RateLimiterConfig
	buckets     map[string]*TokenBucket
	mutex       sync.RWMutex
	stopCh      chan struct{}
}

// NewRateLimiterForCluster builds a RateLimiter directly from a cluster's
// config.ClusterConfig, so the rate and burst limits come from the same
// per-cluster settings the Handler, WorkerPool and Monitor already read
// rather than a config type this package re-derives on its own. Bucket
// lifetime is not configurable: cleanup runs every five minutes and drops
// buckets idle for more than ten.
func NewRateLimiterForCluster(clusterName string, requestsPerSecond, burstSize int) *RateLimiter {
	return NewRateLimiter(&RateLimiterConfig{
		ClusterName:       clusterName,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
		CleanupInterval:   5 * time.Minute,
	})
}

func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	rl := &RateLimiter{
		clusterName: config.ClusterName,
		config:      config,
		buckets:     make(map[string]*TokenBucket),
		stopCh:      make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// sessionKey composes the bucket key from a user and client IP, matching
// rules.Session's "user@host" composite. An empty user falls back to the
// bare IP (or "unknown") so anonymous/unauthenticated probes still get a
// bucket rather than being rejected outright.
func sessionKey(user, clientIP string) string {
	if clientIP == "" {
		clientIP = "unknown"
	}
	if user == "" {
		return clientIP
	}
	return user + "@" + clientIP
}

// Allow throttles by bare client IP, for callers (and tests) that have no
// authenticated user to key on.
func (rl *RateLimiter) Allow(clientIP string) bool {
	return rl.allow(sessionKey("", clientIP))
}

// AllowSession throttles an RPCRequest's (user, clientIP) pair as one
// bucket, the key a cluster's Handler actually has on hand per request.
func (rl *RateLimiter) AllowSession(user, clientIP string) bool {
	return rl.allow(sessionKey(user, clientIP))
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		bucket, exists = rl.buckets[key]
		if !exists {
			bucket = NewTokenBucket(
				float64(rl.config.BurstSize),
				float64(rl.config.RequestsPerSecond),
			)
			rl.buckets[key] = bucket
		}
		rl.mutex.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		log.Printf("[proxy] cluster %s: session %q throttled (limit %d/s, burst %d)",
			rl.clusterName, key, rl.config.RequestsPerSecond, rl.config.BurstSize)
	}
	return allowed
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) performCleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	const cutoff = 10 * time.Minute

	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		inactive := now.Sub(bucket.lastRefill) > cutoff
		bucket.mutex.Unlock()

		if inactive {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

type RateLimiterStats struct {
	ActiveClients     int
	RequestsPerSecond int
	BurstSize         int
}

func (rl *RateLimiter) GetStats() RateLimiterStats {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	return RateLimiterStats{
		ActiveClients:     len(rl.buckets),
		RequestsPerSecond: rl.config.RequestsPerSecond,
		BurstSize:         rl.config.BurstSize,
	}
}
