package api

import (
	"strconv"
	"time"

	"market-analytics/internal/logging"
	"market-analytics/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id (taken from the header or generated) and
// stores a logger carrying it in the request context.
func requestID(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := logging.WithTraceContext(c.Request.Context(), base, c.GetHeader(requestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, logging.TraceID(ctx))
		c.Next()
	}
}

// accessLog replaces gin.Logger with a structured line per request and counts it.
func accessLog(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.HTTPRequest(route, strconv.Itoa(status))

		l := logging.FromContext(c.Request.Context())
		evt := l.Debug()
		if status >= 500 {
			evt = l.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
