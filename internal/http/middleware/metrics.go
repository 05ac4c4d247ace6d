package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedPath is the path label for requests that matched no route. Raw
// URLs are never used as labels: lookup paths embed a PUK.
const UnmatchedPath = "<unmatched>"

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pukbot_http_requests_total",
		Help: "HTTP requests by method, route template and status.",
	}, []string{"method", "path", "status"})

	// No status label: latency per route is what the lookup SLO needs.
	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pukbot_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pukbot_http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})

	// Lookup bodies are tens of bytes; /metrics and swagger reach hundreds of KiB.
	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pukbot_http_response_size_bytes",
		Help:    "HTTP response size by method and route template.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics records the pukbot_http_* collectors for every request. The path
// label is the route template (c.FullPath()) or UnmatchedPath.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = UnmatchedPath
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
