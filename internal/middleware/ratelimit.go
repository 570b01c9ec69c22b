package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	visitorIdleTTL   = 10 * time.Minute
	visitorSweepTick = 5 * time.Minute
)

// visitor is one client's token bucket.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP. The public auth
// endpoints sit behind it so credential stuffing and sign-up floods are
// rejected before they reach the identity store.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

// NewRateLimiter allows rps sustained requests per second with the
// given burst per client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.bucket
}

// sweep drops visitors idle longer than the TTL so the map does not
// grow with every IP ever seen.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(visitorSweepTick)
	for range ticker.C {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > visitorIdleTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After
// hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please slow down and try again.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
