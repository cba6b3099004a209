package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

var (
	reqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route template, method and status",
	}, []string{"route", "method", "status"})

	reqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "library",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route template",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "library",
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served",
	})
)

// Metrics 标签用路由模板（/api/books/:id），未匹配的路径合并成一个
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		inFlight.Inc()
		start := time.Now()
		defer func() {
			inFlight.Dec()
			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			method := c.Request.Method
			reqTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
			reqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}
