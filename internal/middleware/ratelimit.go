package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerMin  int
	BurstSize       int
	CleanupInterval time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-client token bucket keyed on the
// remote address. Stale buckets are swept on CleanupInterval so the map
// does not grow without bound.
func RateLimitMiddleware(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 100
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	go func() {
		for range time.Tick(cfg.CleanupInterval) {
			mu.Lock()
			for addr, client := range clients {
				if time.Since(client.lastSeen) > cfg.CleanupInterval {
					delete(clients, addr)
				}
			}
			mu.Unlock()
		}
	}()

	perSecond := rate.Limit(float64(cfg.RequestsPerMin) / 60.0)

	return func(c *gin.Context) {
		addr := c.ClientIP()

		mu.Lock()
		client, ok := clients[addr]
		if !ok {
			client = &clientLimiter{limiter: rate.NewLimiter(perSecond, cfg.BurstSize)}
			clients[addr] = client
		}
		client.lastSeen = time.Now()
		mu.Unlock()

		if !client.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
