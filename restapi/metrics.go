/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import "github.com/prometheus/client_golang/prometheus"

var metricsResponseProblems *prometheus.CounterVec

const (
	metricsSubsystem = "restapi"

	metricsLabelResponseProblemStatus = "status"
)

// MustInitAndRegisterMetrics initializes and registers restapi global metrics. Panic will be raised in case of error.
func MustInitAndRegisterMetrics(namespace string) {
	metricsResponseProblems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystem,
		Name:      "response_problems_total",
		Help:      "The total number of problem details that were respond.",
	}, []string{metricsLabelResponseProblemStatus})
	prometheus.MustRegister(metricsResponseProblems)
}

// UnregisterMetrics unregisters restapi global metrics.
func UnregisterMetrics() {
	if metricsResponseProblems != nil {
		prometheus.Unregister(metricsResponseProblems)
	}
}
