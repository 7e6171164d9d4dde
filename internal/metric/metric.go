// Package metric holds the gateway's Prometheus collectors.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querygate_requests_total",
		Help: "Operations processed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "querygate_request_duration_seconds",
		Help:    "End-to-end operation duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	poolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "querygate_pool_connections_in_use",
		Help: "Connections currently lent out, by backend family.",
	}, []string{"family"})
)

// ObserveRequest records one completed operation.
func ObserveRequest(kind, outcome string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(kind, outcome).Inc()
	requestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetPoolInUse updates the lent-connection gauge for a backend family.
func SetPoolInUse(family string, n int) {
	poolInUse.WithLabelValues(family).Set(float64(n))
}

// Handler serves the collectors in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
