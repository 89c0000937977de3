// Package obs holds the ambient observability wiring shared by the HTTP
// adapter and the treeserver command: a zap logger constructor and the Prometheus
// metrics registered for every request, grounded on the same
// zap/prometheus/uuid stack Layr-Labs-eigenx-kms-go wires into its own
// server entrypoint.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger. Production builds
// use zap's JSON encoder; set development to true for the human-readable
// console encoder used in local runs.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Metrics holds the Prometheus collectors every HTTP handler reports to.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// NewMetrics registers the request-duration histogram and request counter
// with a private registry scoped to this Metrics instance, labeled by route
// and status class. A private registry (rather than the global default one)
// means constructing more than one Metrics in the same process — as every
// table-driven HTTP test that builds its own Server does — never collides
// with "duplicate metrics collector registration attempted".
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "commitree",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status_class"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commitree",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"route", "status_class"}),
	}
}

// Observe records one completed request's latency and outcome.
func (m *Metrics) Observe(route string, statusClass string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, statusClass).Observe(d.Seconds())
	m.RequestTotal.WithLabelValues(route, statusClass).Inc()
}

// StatusClass buckets an HTTP status code into Prometheus's conventional
// "2xx"/"4xx"/"5xx" label shape.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
