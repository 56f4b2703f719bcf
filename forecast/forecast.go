package forecast

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sartorproj/goforecast/timeseries"
)

// MetricType describes what a series measures. It bounds the search space
// and picks the growth mode.
type MetricType string

// Supported metric types.
const (
	MetricProbability MetricType = "probability"
	MetricLoad        MetricType = "load"
	MetricGeneral     MetricType = "general"
)

// ParseMetricType returns the metric type named by s.
func ParseMetricType(s string) (MetricType, error) {
	switch mt := MetricType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MetricProbability, MetricLoad, MetricGeneral:
		return mt, nil
	}
	return "", InvalidInput("unknown metric type %q", s)
}

// Model identifiers reported in results.
const (
	ModelNaive    = "simple_forecast"
	ModelAdditive = "additive_seasonal_trend"
	ModelARIMA    = "arima"
	ModelFallback = "fallback_linear_trend"
)

// Row is one forecast step.
type Row struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"predicted_value"`
	Lower float64   `json:"lower_bound"`
	Upper float64   `json:"upper_bound"`
}

// Table is an ordered forecast.
type Table []Row

// Values returns the point forecasts.
func (t Table) Values() []float64 {
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = r.Value
	}
	return out
}

// Finite reports whether every value and bound is a finite number.
func (t Table) Finite() bool {
	for _, r := range t {
		for _, v := range [...]float64{r.Value, r.Lower, r.Upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Clamp returns a copy of the table with every value and bound inside [lo, hi].
func (t Table) Clamp(lo, hi float64) Table {
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = Row{
			Date:  r.Date,
			Value: clamp(r.Value, lo, hi),
			Lower: clamp(r.Lower, lo, hi),
			Upper: clamp(r.Upper, lo, hi),
		}
	}
	return out
}

// Tail returns the last n rows.
func (t Table) Tail(n int) Table {
	if n >= len(t) {
		return t
	}
	if n <= 0 {
		return Table{}
	}
	return t[len(t)-n:]
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// NewTable builds a table from parallel slices dated after the end of series.
func NewTable(series *timeseries.Series, values, lower, upper []float64) Table {
	dates := series.FutureTimestamps(len(values))
	t := make(Table, len(values))
	for i := range values {
		t[i] = Row{Date: dates[i], Value: values[i], Lower: lower[i], Upper: upper[i]}
	}
	return t
}

// Estimator fits one model family.
type Estimator interface {
	Name() string
	Fit(ctx context.Context, series *timeseries.Series) (Fitted, error)
}

// Fitted is a model fitted to one series. It is owned by the run that
// created it and is not safe for concurrent use.
type Fitted interface {
	Name() string
	// Forecast predicts the next periods steps after the fitted series.
	Forecast(periods int) (Table, error)
	// Params describes the fitted parameters.
	Params() map[string]any
	// AIC is the in-sample Akaike information criterion.
	AIC() float64
}
