package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/service"
)

const scrapePath = "/metrics"

// Metrics records latency and status per route. Scrapes of the metrics
// endpoint are not counted.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == scrapePath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
