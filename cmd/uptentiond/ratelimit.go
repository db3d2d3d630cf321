// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; idle entries are evicted first.
const maxTrackedClients = 10000

// rateLimiter keeps one token bucket per client host.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter returns nil when rps is not positive (unlimited).
func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow reports whether the client of r may proceed now.
func (rl *rateLimiter) Allow(r *http.Request) bool {
	if rl == nil {
		return true
	}
	key := clientKey(r)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxTrackedClients {
			rl.evictIdle(now)
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// evictIdle drops clients whose bucket has refilled. Must hold rl.mu.
func (rl *rateLimiter) evictIdle(now time.Time) {
	refill := time.Duration(float64(rl.burst) / float64(rl.rate) * float64(time.Second))
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > refill {
			delete(rl.limiters, key)
		}
	}
	if len(rl.limiters) >= maxTrackedClients {
		rl.limiters = make(map[string]*clientLimiter)
	}
}
