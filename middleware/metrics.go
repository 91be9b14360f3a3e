package middleware

import (
	"net/http"
	"strconv"
	"time"

	"rescuelink/models"
	"rescuelink/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the gateway's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	guardDecisions      *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	activeViews         *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescuelink_http_requests_total",
				Help: "Total number of gateway HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rescuelink_http_request_duration_seconds",
				Help:    "Gateway HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		guardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescuelink_guard_decisions_total",
				Help: "Portal guard outcomes",
			},
			[]string{"portal", "outcome"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescuelink_notifications_total",
				Help: "Notifications produced by portal actions",
			},
			[]string{"portal", "variant"},
		),
		activeViews: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rescuelink_active_views",
				Help: "Mounted portal views held by the gateway",
			},
			[]string{"portal"},
		),
	}
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveGuard(portal models.Role, outcome services.GuardOutcome) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(string(portal), outcome.String()).Inc()
}

func (m *Metrics) ObserveNotifications(portal models.Role, notifications []models.Notification) {
	if m == nil {
		return
	}
	for _, n := range notifications {
		m.notifications.WithLabelValues(string(portal), string(n.Variant)).Inc()
	}
}

func (m *Metrics) ViewMounted(portal models.Role) {
	if m == nil {
		return
	}
	m.activeViews.WithLabelValues(string(portal)).Inc()
}

func (m *Metrics) ViewClosed(portal models.Role) {
	if m == nil {
		return
	}
	m.activeViews.WithLabelValues(string(portal)).Dec()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
