package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/steemit/blogd/pkg/logging"
	"github.com/steemit/blogd/pkg/telemetry"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id, runs it inside a span and
// logs it when done. The log line carries the trace id when there is one.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		parent := telemetry.ExtractHTTP(c.Request.Context(), c.Request.Header)
		ctx, span := telemetry.StartSpan(parent, c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			attribute.String("http.request_id", requestID),
			attribute.Int("http.status_code", c.Writer.Status()),
		)

		logger := logging.WithComponent("http")
		sc := span.SpanContext()
		if !sc.HasTraceID() {
			// without a tracer provider the span is a noop; keep the caller's trace
			sc = trace.SpanContextFromContext(parent)
		}
		if sc.HasTraceID() {
			logger = logging.WithTraceID(sc.TraceID().String()).With(zap.String("component", "http"))
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if caller := CallerID(c); caller != nil {
			fields = append(fields, zap.Int64("user_id", *caller))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger.Info("HTTP request", fields...)
	}
}
