package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/znz-systems/emailfilter/internal/logging"
	"github.com/znz-systems/emailfilter/internal/ratelimit"
)

// RateLimit rejects requests once the client's token bucket is empty. The
// client is keyed by IP; run chi's RealIP first so proxies are honoured.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				// RealIP leaves a bare address without a port.
				ip = r.RemoteAddr
			}

			if !limiter.Allow(ip) {
				logging.FromContext(r.Context()).Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
