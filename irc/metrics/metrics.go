// Package metrics holds the Prometheus collectors of the IRC daemon and the
// Echo middleware that instruments the admin API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the Prometheus registry used by this package
	Registry = prometheus.NewRegistry()

	// Commands counts dispatched commands by name and result
	Commands = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_commands_total",
			Help: "Dispatched commands by command and result",
		},
		[]string{"command", "result"},
	)

	// ModeChanges counts mode change attempts by mode name and outcome
	ModeChanges = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_mode_changes_total",
			Help: "Mode change attempts by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// Kicks counts members removed with KICK
	Kicks = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ircd_kicks_total",
			Help: "Members removed from channels by KICK",
		},
	)

	// Users is the number of registered users
	Users = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ircd_users",
			Help: "Registered users",
		},
	)

	// Channels is the number of existing channels
	Channels = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ircd_channels",
			Help: "Existing channels",
		},
	)

	// RequestDuration measures admin API latency
	RequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ircd_admin_request_duration_seconds",
			Help:    "Admin API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)

	// RequestsTotal counts admin API requests by method and status code
	RequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_admin_requests_total",
			Help: "Admin API requests by method and status code",
		},
		[]string{"method", "code"},
	)
)

// Handler serves the metrics of Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware returns Echo middleware which records request metrics
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			code := strconv.Itoa(status)
			method := c.Request().Method

			RequestDuration.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
			RequestsTotal.WithLabelValues(method, code).Inc()
			return err
		}
	}
}
