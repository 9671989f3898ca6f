package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// clientIdle is how long a caller may stay quiet before its allowance is
// forgotten. A forgotten caller starts again with a full burst.
const clientIdle = 10 * time.Minute

// ClientLimit throttles API callers by client address. Each caller holds an
// allowance of up to burst requests that refills continuously at perMinute.
type ClientLimit struct {
	perMinute float64
	burst     float64
	exempt    map[string]bool
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*allowance
	lastSweep time.Time
}

type allowance struct {
	tokens float64
	seen   time.Time
}

// NewClientLimit allows perMinute requests per caller with bursts of up to
// burst requests. A non-positive burst means perMinute; a non-positive
// perMinute disables limiting. Requests to the exempt paths are never
// counted.
func NewClientLimit(perMinute, burst int, exempt ...string) *ClientLimit {
	if burst <= 0 {
		burst = perMinute
	}
	l := &ClientLimit{
		perMinute: float64(perMinute),
		burst:     float64(burst),
		exempt:    make(map[string]bool, len(exempt)),
		now:       time.Now,
		clients:   make(map[string]*allowance),
	}
	for _, p := range exempt {
		l.exempt[p] = true
	}
	return l
}

// Handler rejects callers over their allowance with 429 and a Retry-After
// header.
func (l *ClientLimit) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perMinute <= 0 || l.exempt[c.Request.URL.Path] {
			c.Next()
			return
		}
		ok, wait := l.take(clientKey(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(retrySeconds(wait)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// take spends one request from the caller's allowance. When none is left it
// reports how long until one is.
func (l *ClientLimit) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	a, ok := l.clients[key]
	if !ok {
		a = &allowance{tokens: l.burst, seen: now}
		l.clients[key] = a
	}
	a.tokens = math.Min(l.burst, a.tokens+now.Sub(a.seen).Minutes()*l.perMinute)
	a.seen = now

	if a.tokens < 1 {
		missing := 1 - a.tokens
		return false, time.Duration(missing / l.perMinute * float64(time.Minute))
	}
	a.tokens--
	return true, 0
}

// sweep forgets callers idle for longer than clientIdle. It runs at most
// once per clientIdle.
func (l *ClientLimit) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < clientIdle {
		return
	}
	l.lastSweep = now
	for key, a := range l.clients {
		if now.Sub(a.seen) >= clientIdle {
			delete(l.clients, key)
		}
	}
}

func retrySeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
