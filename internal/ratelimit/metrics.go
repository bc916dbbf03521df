/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Outcome is a result of the permit acquisition.
type Outcome string

// Outcomes of the permit acquisition.
const (
	OutcomeAdmitted          Outcome = "admitted"
	OutcomeAdmittedFromQueue Outcome = "admitted_from_queue"
	OutcomeRejected          Outcome = "rejected"
	OutcomeQueueTimeout      Outcome = "queue_timeout"
	OutcomeCanceled          Outcome = "canceled"
	OutcomeError             Outcome = "error"
)

// MetricsCollector collects rate limiting metrics.
type MetricsCollector interface {
	IncRequests(outcome Outcome)
	AddQueued(delta int)
}

// PrometheusMetrics represents Prometheus metrics for the rate limiting.
type PrometheusMetrics struct {
	RequestsTotal  *prometheus.CounterVec
	QueuedRequests prometheus.Gauge
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_requests_total",
			Help:      "Number of rate limited requests by outcome.",
		}, []string{"outcome"}),
		QueuedRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_queued_requests",
			Help:      "Number of requests waiting in the rate limiting queues.",
		}),
	}
}

// MustRegister registers metrics in Prometheus client and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.RequestsTotal, pm.QueuedRequests)
}

// Unregister cancels registration of metrics collector in Prometheus client.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.RequestsTotal)
	prometheus.Unregister(pm.QueuedRequests)
}

// IncRequests increments the counter of requests with the given outcome.
func (pm *PrometheusMetrics) IncRequests(outcome Outcome) {
	pm.RequestsTotal.WithLabelValues(string(outcome)).Inc()
}

// AddQueued changes the number of queued requests.
func (pm *PrometheusMetrics) AddQueued(delta int) {
	pm.QueuedRequests.Add(float64(delta))
}

type disabledMetrics struct{}

func (disabledMetrics) IncRequests(Outcome) {}
func (disabledMetrics) AddQueued(int)       {}
