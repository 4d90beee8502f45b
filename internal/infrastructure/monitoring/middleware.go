package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures an insert round trip
type Timer struct {
	start   time.Time
	metrics *Metrics
	data    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, data string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		data:    data,
	}
}

// Stop stops the timer and records the insert outcome
func (t *Timer) Stop(err error) {
	t.metrics.RecordInsert(t.data, err, time.Since(t.start))
}
