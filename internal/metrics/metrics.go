// Package metrics exposes Prometheus instrumentation for the anomaly
// detection engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anomaly_engine",
		Name:      "detections_total",
		Help:      "Detections performed, by method and classification.",
	}, []string{"method", "classification"})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anomaly_engine",
		Name:      "anomalies_total",
		Help:      "Detections flagged anomalous, by method.",
	}, []string{"method"})

	detectionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "anomaly_engine",
		Name:      "detection_seconds",
		Help:      "Detection latency.",
		Buckets:   prometheus.ExponentialBuckets(10e-6, 4, 8),
	}, []string{"method"})

	modelReady = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anomaly_engine",
		Name:      "model_ready",
		Help:      "1 when the reconstruction model is ready, 0 otherwise.",
	})

	trainingSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anomaly_engine",
		Name:      "training_samples",
		Help:      "Number of samples in the last training run.",
	})

	assetFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anomaly_engine",
		Name:      "asset_fetch_failures_total",
		Help:      "Model asset fetches that failed after all retries.",
	}, []string{"asset"})
)

// ObserveDetection records one detection outcome.
func ObserveDetection(method, classification string, isAnomaly bool, elapsed time.Duration) {
	detectionsTotal.WithLabelValues(method, classification).Inc()
	detectionSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
	if isAnomaly {
		anomaliesTotal.WithLabelValues(method).Inc()
	}
}

// SetModelState updates the readiness and provenance gauges.
func SetModelState(ready bool, samples int) {
	if ready {
		modelReady.Set(1)
	} else {
		modelReady.Set(0)
	}
	trainingSamples.Set(float64(samples))
}

// RecordAssetFetchFailure counts an asset fetch that exhausted its retries.
func RecordAssetFetchFailure(asset string) {
	assetFetchFailures.WithLabelValues(asset).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
