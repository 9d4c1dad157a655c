package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/internal/ratelimit"
	"github.com/osvaldoandrade/geoscope/pkg/config"
)

// RateLimitLaunch throttles analysis launches per bearer token. Polling
// endpoints stay unthrottled so clients can watch progress freely.
func RateLimitLaunch(lim ratelimit.Limiter, cfg *config.Config) gin.HandlerFunc {
	return rateLimitBearer(lim, "launch", "create_analysis", cfg.RateLimit.Launch)
}

func rateLimitBearer(lim ratelimit.Limiter, scope string, operation string, bcfg config.RateLimitBucketConfig) gin.HandlerFunc {
	bucket := ratelimit.Bucket{RequestsPerMinute: bcfg.RequestsPerMinute, BurstSize: bcfg.BurstSize}
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			// Auth middleware rejects these; no bucket to charge yet.
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, token, bucket)
		if err != nil {
			// Fail open so a Redis hiccup does not block launches.
			slog.Default().Warn("rate limit check failed", "scope", scope, "op", operation, "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(dec.RetryAfter.Seconds())
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues(scope, operation).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"scope":             scope,
			"operation":         operation,
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
