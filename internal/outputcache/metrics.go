/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-appkit-demo/lrucache"
)

// MetricsCollector collects output cache metrics that are not covered by the LRU cache.
type MetricsCollector interface {
	AddTagEvictions(tag string, n int)
}

// PrometheusMetrics represents Prometheus metrics for the output cache.
type PrometheusMetrics struct {
	Cache             *lrucache.PrometheusMetrics
	TagEvictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		Cache: lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace:   namespace,
			ConstLabels: prometheus.Labels{"cache": "output"},
		}),
		TagEvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_cache_tag_evictions_total",
			Help:      "Number of output cache entries evicted by tag.",
		}, []string{"tag"}),
	}
}

// MustRegister registers metrics in Prometheus client and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	pm.Cache.MustRegister()
	prometheus.MustRegister(pm.TagEvictionsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus client.
func (pm *PrometheusMetrics) Unregister() {
	pm.Cache.Unregister()
	prometheus.Unregister(pm.TagEvictionsTotal)
}

// AddTagEvictions increments the number of entries evicted by the tag.
func (pm *PrometheusMetrics) AddTagEvictions(tag string, n int) {
	pm.TagEvictionsTotal.WithLabelValues(tag).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) AddTagEvictions(string, int) {}
