package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/metrics"
)

// RequestMetrics observes request latency by route template and status class.
func RequestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, statusClass(c.Writer.Status()), time.Since(start).Seconds())
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
