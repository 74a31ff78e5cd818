package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(c *gin.Context) string

// ClientIP keys requests by remote address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// Limiter is an in-memory token bucket per key. Tokens refill continuously at
// perMinute and cap at burst.
type Limiter struct {
	burst  float64
	perSec float64
	key    KeyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	sweptAt time.Time
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewLimiter builds a limiter. A non-positive burst defaults to perMinute and
// a nil key defaults to ClientIP.
func NewLimiter(perMinute, burst int, key KeyFunc) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	if key == nil {
		key = ClientIP
	}
	return &Limiter{
		burst:   float64(burst),
		perSec:  float64(perMinute) / 60,
		key:     key,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
// A non-positive rate disables limiting.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSec <= 0 {
			c.Next()
			return
		}
		ok, wait := l.take(l.key(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// take spends one token from key's bucket, or reports how long until one is due.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.perSec)
	b.seen = now
	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) / l.perSec * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

// prune forgets buckets idle long enough to have refilled, at most once per
// refill period. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	full := time.Duration(l.burst / l.perSec * float64(time.Second))
	if now.Sub(l.sweptAt) < full {
		return
	}
	l.sweptAt = now
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= full {
			delete(l.buckets, k)
		}
	}
}
