package server

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	"github.com/smallbiznis/eventflow/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitEndpointRegistration = "registration"
	rateLimitEndpointCheckin      = "checkin"

	rateLimitReasonUserRate  = "user-rate"
	rateLimitReasonEventRate = "event-rate"
)

// RegistrationRateLimit throttles registrations per user.
func (s *Server) RegistrationRateLimit() gin.HandlerFunc {
	return s.rateLimit(rateLimitEndpointRegistration, rateLimitReasonUserRate, func(ctx context.Context, c *gin.Context) (*ratelimit.RateLimitResult, error) {
		return s.limiter.AllowRegistration(ctx, principalFrom(c).UserID)
	})
}

// CheckinRateLimit throttles scans per event.
func (s *Server) CheckinRateLimit() gin.HandlerFunc {
	return s.rateLimit(rateLimitEndpointCheckin, rateLimitReasonEventRate, func(ctx context.Context, c *gin.Context) (*ratelimit.RateLimitResult, error) {
		eventID, err := snowflake.ParseString(c.Param("id"))
		if err != nil {
			return &ratelimit.RateLimitResult{Allowed: true}, nil
		}
		return s.limiter.AllowCheckin(ctx, eventID)
	})
}

func (s *Server) rateLimit(endpoint, reason string, allow func(context.Context, *gin.Context) (*ratelimit.RateLimitResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := allow(ctx, c)
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyRateLimit(c, endpoint, reason, result, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, endpoint, reason string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}
