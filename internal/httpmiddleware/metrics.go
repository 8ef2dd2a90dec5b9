package httpmiddleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classtrack_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// SessionsStarted counts roster materializations.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_started_total",
		Help: "Attendance sessions started.",
	})

	// SessionsCompleted counts finalized sessions.
	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_completed_total",
		Help: "Attendance sessions completed.",
	})

	// RecordsMarked counts individual marks written via bulk writes.
	RecordsMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_records_marked_total",
		Help: "Attendance records written by bulk marks.",
	})
)

// Metrics records request counts and latency per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		requestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
