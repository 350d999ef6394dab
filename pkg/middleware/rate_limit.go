package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"timelens/pkg/utils"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 5 * time.Minute
	defaultPerMinute  = 10
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per authenticated user, falling back to
// the client IP for anonymous callers.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	b        int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultPerMinute
	}
	l := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        requestsPerMinute,
		stopCh:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *RateLimiter) cleanup() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for key, cl := range l.limiters {
				if time.Since(cl.lastSeen) > limiterIdleTTL {
					delete(l.limiters, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		reservation := l.get(key).Reserve()
		if d := reservation.Delay(); d > 0 {
			reservation.Cancel()
			retryAfter := int(math.Ceil(d.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			utils.RespondError(c, http.StatusTooManyRequests, "Too many requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
