package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/ratelimit"
	"github.com/alumni-connect/gallery-service/internal/utils/response"
	"github.com/go-redis/redis/v8"
)

// ActionUpload is shared by single and album uploads
const ActionUpload = "upload"

type RateLimitConfig struct {
	limiters       map[string]*ratelimit.TokenBucket
	trustForwarded bool
}

// NewRateLimitConfig builds the limiters. A nil client disables limiting.
func NewRateLimitConfig(redisClient *redis.Client, cfg config.RateLimit) *RateLimitConfig {
	rlc := &RateLimitConfig{
		limiters:       make(map[string]*ratelimit.TokenBucket),
		trustForwarded: cfg.TrustForwardedFor,
	}
	if redisClient == nil {
		return rlc
	}

	if cfg.UploadPerMinute > 0 {
		rlc.limiters[ActionUpload] = ratelimit.NewTokenBucket(redisClient, cfg.UploadPerMinute, cfg.UploadPerMinute)
	}

	return rlc
}

// clientKey identifies the caller: the authenticated user when known,
// otherwise the remote address. X-Forwarded-For is client controlled and
// only used when the config says a proxy sets it.
func (rlc *RateLimitConfig) clientKey(r *http.Request) string {
	if identity, ok := GetIdentityFromContext(r.Context()); ok && identity.UserID != "" {
		return "user:" + identity.UserID
	}

	if fwd := r.Header.Get("X-Forwarded-For"); rlc.trustForwarded && fwd != "" {
		return "ip:" + strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			key := rlc.clientKey(r)
			allowed, err := limiter.Allow(r.Context(), key, action)
			if err != nil {
				// an unreachable Redis should not block uploads
				slog.Warn("Rate limit check failed", slog.String("action", action), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			remaining, _ := limiter.GetRemaining(r.Context(), key, action)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limiter.Capacity(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60")

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("Too many uploads, try again in a minute")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitedHandler wraps a handler with rate limiting for a specific action
func (rlc *RateLimitConfig) RateLimitedHandler(action string, handler http.HandlerFunc) http.Handler {
	return rlc.RateLimitMiddleware(action)(handler)
}
