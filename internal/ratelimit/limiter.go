// Package ratelimit enforces per-IP limits on socket upgrades and blob
// uploads using an in-memory sliding window.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/quizbox/quizbox/internal/config"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
)

// RateLimiter holds the per-concern limiter instances.
type RateLimiter struct {
	wsIP       *limiter.Limiter
	blobUpload *limiter.Limiter
}

// New builds the limiters from the configured rate strings ("100-M" means
// 100 per minute).
func New(cfg *config.Config) (*RateLimiter, error) {
	wsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	blobRate, err := limiter.NewRateFromFormatted(cfg.RateLimitBlobUpload)
	if err != nil {
		return nil, fmt.Errorf("invalid blob upload rate: %w", err)
	}

	st := memory.NewStore()
	return &RateLimiter{
		wsIP:       limiter.New(st, wsRate),
		blobUpload: limiter.New(st, blobRate),
	}, nil
}

// CheckWebSocket reports whether a socket upgrade from this client should
// be allowed, writing the 429 response itself when it should not.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	lctx, err := rl.wsIP.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		// Fail open: a broken limiter should not take the service down.
		logging.Error("rate limiter store failed", zap.Error(err))
		return true
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect").Inc()
		c.Header("Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this address"})
		return false
	}
	return true
}

// BlobUploadMiddleware limits blob uploads per client IP.
func (rl *RateLimiter) BlobUploadMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lctx, err := rl.blobUpload.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			logging.Error("rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues("blob_upload").Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many uploads"})
			return
		}
		c.Next()
	}
}
