package relay

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-server registry so several servers can
// live in one process
type metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	fragments        prometheus.Counter
	activeStreams    prometheus.Gauge
	rateLimited      prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orechat",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "HTTP requests handled by the relay",
		}, []string{"route", "status"}),
		fragments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "orechat",
			Subsystem: "relay",
			Name:      "fragments_total",
			Help:      "Text fragments forwarded to clients",
		}),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "orechat",
			Subsystem: "relay",
			Name:      "active_streams",
			Help:      "Streams currently being forwarded",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "orechat",
			Subsystem: "relay",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orechat",
			Subsystem: "relay",
			Name:      "upstream_duration_seconds",
			Help:      "Time spent on upstream completions",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode", "outcome"}),
	}
}

func (m *metrics) observeUpstream(mode string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamDuration.WithLabelValues(mode, outcome).Observe(time.Since(start).Seconds())
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
