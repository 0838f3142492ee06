package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_http_requests_total",
			Help: "Total number of HTTP requests processed by the inbox service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_ws_active_sessions",
			Help: "Number of active websocket conversation sessions.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_ws_events_total",
			Help: "Total number of websocket session events.",
		},
		[]string{"event"},
	)
	feedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_feed_events_total",
			Help: "Total number of change-feed events dispatched.",
		},
		[]string{"op"},
	)
	feedDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_feed_dropped_total",
			Help: "Change-feed events dropped due to slow subscribers.",
		},
	)
	syncReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_sync_reloads_total",
			Help: "Full message reloads triggered by subscription errors.",
		},
	)
	syncDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_sync_duplicates_total",
			Help: "Feed events discarded because the message id was already rendered.",
		},
	)
	syncDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_sync_updates_dropped_total",
			Help: "Synchronizer updates dropped due to a slow consumer.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveSessions,
		wsEventsTotal,
		feedEventsTotal,
		feedDroppedTotal,
		syncReloadsTotal,
		syncDuplicatesTotal,
		syncDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveSessions.Inc()
}

func DecWSActive() {
	wsActiveSessions.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncFeedEvent(op string) {
	feedEventsTotal.WithLabelValues(op).Inc()
}

func IncFeedDropped() {
	feedDroppedTotal.Inc()
}

func IncSyncReload() {
	syncReloadsTotal.Inc()
}

func IncSyncDuplicate() {
	syncDuplicatesTotal.Inc()
}

func IncSyncDropped() {
	syncDroppedTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
