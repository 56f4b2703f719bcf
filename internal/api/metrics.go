package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sartorproj/goforecast/selector"
)

// Metrics exposes selection outcomes to Prometheus.
type Metrics struct {
	SelectionsTotal   *prometheus.CounterVec
	SelectionDuration *prometheus.HistogramVec
	InvalidRequests   *prometheus.CounterVec
	ForecastPeriods   prometheus.Histogram
}

// NewMetrics registers the service metrics with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Completed selections by state, model and metric type",
			},
			[]string{"state", "model", "metric_type"},
		),
		SelectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "selection_duration_seconds",
				Help:      "Duration of a selection run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"state"},
		),
		InvalidRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_requests_total",
				Help:      "Rejected forecast requests by reason",
			},
			[]string{"reason"},
		),
		ForecastPeriods: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "forecast_periods",
				Help:      "Requested forecast horizon",
				Buckets:   []float64{1, 7, 14, 30, 60, 90, 180, 365},
			},
		),
	}
}

// RecordSelection records one completed run.
func (m *Metrics) RecordSelection(metricType string, res *selector.Result, elapsed time.Duration) {
	state := string(res.State)
	m.SelectionsTotal.WithLabelValues(state, res.ModelUsed, metricType).Inc()
	m.SelectionDuration.WithLabelValues(state).Observe(elapsed.Seconds())
	m.ForecastPeriods.Observe(float64(len(res.Forecast)))
}

// RecordInvalid records a rejected request.
func (m *Metrics) RecordInvalid(reason string) {
	m.InvalidRequests.WithLabelValues(reason).Inc()
}
