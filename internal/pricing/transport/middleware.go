package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/auth"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/ratelimit"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/tracing"
)

const (
	RequestIDHeader = "X-Request-ID"
	organizerKey    = "organizer_id"
)

// RequestContext assigns a request id, opens a span and puts both into the
// request's logging context.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := log.WithRequestID(c.Request.Context(), requestID)
		ctx, span := tracing.StartSpan(ctx, "http "+c.Request.Method+" "+c.FullPath(),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()))
		defer span.End()

		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			ctx = log.WithTraceID(ctx, traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// AccessLog logs and measures every request
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if status >= http.StatusInternalServerError {
			log.Error(c.Request.Context(), "HTTP request failed", fields...)
			return
		}
		log.Info(c.Request.Context(), "HTTP request completed", fields...)
	}
}

// RequireOrganizer rejects requests without a valid organizer token
func RequireOrganizer(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			writeError(c, domain.NewUnauthorizedError("authentication is not configured"))
			return
		}

		organizerID, err := validator.Validate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			log.Debug(c.Request.Context(), "Rejected organizer token", zap.Error(err))
			writeError(c, domain.NewUnauthorizedError("invalid or missing bearer token"))
			return
		}

		c.Set(organizerKey, organizerID)
		c.Request = c.Request.WithContext(log.WithOrganizerID(c.Request.Context(), organizerID))
		c.Next()
	}
}

// RateLimit caps organizer requests per route. It runs after
// RequireOrganizer; a limiter error lets the request through.
func RateLimit(limiter ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizerID := c.GetString(organizerKey)
		if limiter == nil || organizerID == "" {
			c.Next()
			return
		}

		key := organizerID + ":" + c.Request.Method + ":" + c.FullPath()
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn(c.Request.Context(), "Rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			log.Warn(c.Request.Context(), "Rate limit exceeded", zap.String("route", c.FullPath()))
			fail(c, http.StatusTooManyRequests, domain.ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
