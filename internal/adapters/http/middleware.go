package httpadapter

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// requestLogger logs one line per request with the chi request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Info("request")
		})
	}
}

// requireToken checks "Authorization: Bearer <token>". An empty token disables the check.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// maxLimiterEntries caps the number of tracked client addresses.
const maxLimiterEntries = 10000

// ipRateLimiter keeps one token bucket per peer address. It keys on the
// socket address only; forwarding headers are client-controlled.
type ipRateLimiter struct {
	enabled    bool
	perMinute  float64
	maxEntries int
	log        logrus.FieldLogger

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func newIPRateLimiter(enabled bool, perMinute float64, log logrus.FieldLogger) *ipRateLimiter {
	return &ipRateLimiter{
		enabled:    enabled,
		perMinute:  perMinute,
		maxEntries: maxLimiterEntries,
		log:        log,
		limiters:   make(map[string]*limiterEntry),
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.limiters) > 500 {
		for k, e := range l.limiters {
			if now.Sub(e.lastUsed) > 10*time.Minute {
				delete(l.limiters, k)
			}
		}
	}

	e, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= l.maxEntries {
			l.evictOldest()
		}
		burst := max(1, int(l.perMinute))
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.perMinute/60.0), burst)}
		l.limiters[ip] = e
	}
	e.lastUsed = now
	return e.limiter
}

// evictOldest drops the least recently used entry. Callers hold l.mu.
func (l *ipRateLimiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range l.limiters {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = k, e.lastUsed
		}
	}
	delete(l.limiters, oldestKey)
}

func (l *ipRateLimiter) middleware(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			lim := l.get(ip)
			if !lim.Allow() {
				res := lim.Reserve()
				delay := res.Delay()
				res.Cancel()
				l.log.WithFields(logrus.Fields{"ip": ip, "operation": operation}).Warn("rate limit exceeded")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(delay.Seconds())+1))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":          "rate limit exceeded for " + operation,
					"limit_per_min":  l.perMinute,
					"retry_after_ms": delay.Milliseconds(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
