package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client bucket survives without requests. It is
// longer than a full bucket refill (one minute at any rpm), so an evicted
// client would have had a full bucket anyway.
const clientIdleTTL = 5 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-client and global request rate limits using
// token buckets. Buckets of clients idle for clientIdleTTL are swept on a
// later request, so the table tracks only recently active clients.
type RateLimiter struct {
	mu        sync.Mutex
	global    *rate.Limiter
	clients   map[string]*clientBucket
	perClient rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing globalRPM requests per minute in
// total and perClientRPM per client.
func NewRateLimiter(globalRPM, perClientRPM int) *RateLimiter {
	return newRateLimiter(globalRPM, perClientRPM, time.Now)
}

func newRateLimiter(globalRPM, perClientRPM int, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		global:    rate.NewLimiter(perMinute(globalRPM), max(globalRPM, 1)),
		clients:   make(map[string]*clientBucket),
		perClient: perMinute(perClientRPM),
		burst:     max(perClientRPM, 1),
		lastSweep: now(),
		now:       now,
	}
}

func perMinute(rpm int) rate.Limit {
	return rate.Limit(float64(rpm) / 60.0)
}

// Allow reports whether a request from client may proceed.
func (rl *RateLimiter) Allow(client string) bool {
	now := rl.now()
	if !rl.global.AllowN(now, 1) {
		return false
	}

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) >= clientIdleTTL {
		rl.sweepLocked(now)
	}
	b, ok := rl.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.perClient, rl.burst)}
		rl.clients[client] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for client, b := range rl.clients {
		if now.Sub(b.lastSeen) >= clientIdleTTL {
			delete(rl.clients, client)
		}
	}
	rl.lastSweep = now
}

// Clients returns the number of tracked client buckets.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
