package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterTTL           = 10 * time.Minute
	limiterCleanupPeriod = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles credential attempts per client IP.
type LoginLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu sync.Mutex
	m  map[string]*limiterEntry

	startCleanup sync.Once
	stopOnce     sync.Once
	stopCh       chan struct{}
}

// NewLoginLimiter allows rps attempts per second with the given burst. A
// non-positive rps disables limiting.
func NewLoginLimiter(rps float64, burst int) *LoginLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		rps:    rate.Limit(rps),
		burst:  burst,
		now:    time.Now,
		m:      make(map[string]*limiterEntry),
		stopCh: make(chan struct{}),
	}
}

// Allow reports whether another attempt from key may proceed now.
func (p *LoginLimiter) Allow(key string) bool {
	if p.rps <= 0 {
		return true
	}
	return p.get(key).AllowN(p.now(), 1)
}

func (p *LoginLimiter) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

// Middleware rejects requests over the limit with 429.
func (p *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !p.Allow(ip) {
			log.Warn().Str("ip", ip).Str("path", c.FullPath()).Msg("login rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, try again later"})
			return
		}
		c.Next()
	}
}

// Shutdown stops the cleanup goroutine.
func (p *LoginLimiter) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.evictIdle(p.now().Add(-limiterTTL))
		case <-p.stopCh:
			return
		}
	}
}

func (p *LoginLimiter) evictIdle(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}
