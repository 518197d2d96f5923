package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/metrics"
	"github.com/baharkarakas/paycore/internal/ratelimit"
)

// RateLimit throttles the whole process to rps requests per second with a
// burst of the same size. rps <= 0 disables it.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := rate.NewLimiter(rate.Limit(rps), rps)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WebhookRateLimit applies the shared fixed-window limiter per client IP
// before the body is read. A redis failure lets the request through; the
// signature check still guards the handler.
func WebhookRateLimit(l *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			d, err := l.Allow(r.Context(), ip)
			if err != nil {
				log.WarnContext(r.Context(), "webhook rate limit unavailable", "ip", ip, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				metrics.WebhookRejected.WithLabelValues("rate_limited").Inc()
				log.WarnContext(r.Context(), "webhook.rate_limited", "ip", ip)
				h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter(time.Now())/time.Second)))
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"too many webhook requests, please try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the host part of RemoteAddr. Put chi's RealIP in front when the
// service runs behind a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
