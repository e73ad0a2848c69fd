package ratelimit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// An IP idle for this long has a full bucket again, so its limiter can go.
const idleTTL = 10 * time.Minute

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	perMin  int
	log     *zap.Logger
}

// New allows perMin requests per minute per IP, with a burst of perMin/4.
func New(perMin int, log *zap.Logger) *Limiter {
	if perMin <= 0 {
		perMin = 120
	}
	return &Limiter{clients: make(map[string]*client), perMin: perMin, log: log}
}

func (l *Limiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		burst := l.perMin / 4
		if burst < 1 {
			burst = 1
		}
		c = &client{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim
}

// sweep drops clients not seen since cutoff and returns how many went.
func (l *Limiter) sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for ip, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, ip)
			n++
		}
	}
	return n
}

// Run evicts idle clients every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := l.sweep(now.Add(-idleTTL)); n > 0 {
				l.log.Debug("rate limiter evicted idle clients", zap.Int("count", n))
			}
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.get(ip, time.Now()).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"rate limit exceeded, try again later"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
