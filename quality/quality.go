// Package quality summarises a series and scores how far it can be trusted
// for model fitting.
package quality

import (
	"math"

	"github.com/sartorproj/goforecast/stats"
	"github.com/sartorproj/goforecast/timeseries"
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// Seasonality detection defaults.
const (
	WeeklyLag            = 7
	MonthlyLag           = 30
	SeasonalityThreshold = 0.3
)

// MinViableSample is the smallest series a model is fitted to. Series
// shorter than twice this size are penalised.
const MinViableSample = 10

// Assessment is the data quality summary of one series.
type Assessment struct {
	Points              int     `json:"total_points"`
	SpanDays            float64 `json:"date_range_days"`
	Missing             int     `json:"missing_values"`
	Zeros               int     `json:"zero_values"`
	Negatives           int     `json:"negative_values"`
	Variance            float64 `json:"variance"`
	Mean                float64 `json:"mean"`
	Std                 float64 `json:"std"`
	Trend               string  `json:"trend_direction"`
	SeasonalityDetected bool    `json:"seasonality_detected"`
	Score               float64 `json:"quality_score"`
}

// Assess computes the assessment. It never fails; an empty series yields a
// zero assessment with score 0.
func Assess(series *timeseries.Series) Assessment {
	n := series.Len()
	a := Assessment{
		Points:  n,
		Missing: series.Missing,
		Trend:   TrendIncreasing,
	}
	if n == 0 {
		return a
	}

	a.SpanDays = series.SpanDays()
	for _, v := range series.Values {
		switch {
		case v == 0:
			a.Zeros++
		case v < 0:
			a.Negatives++
		}
	}
	a.Mean = series.Mean()
	a.Variance = series.Variance()
	a.Std = math.Sqrt(a.Variance)
	if series.Last() < series.First() {
		a.Trend = TrendDecreasing
	}
	a.SeasonalityDetected = detectSeasonality(series)
	a.Score = score(a, n)
	return a
}

// detectSeasonality checks the weekly and monthly lags. The monthly lag needs
// more than MonthlyLag points; lags that cannot be computed are skipped.
func detectSeasonality(series *timeseries.Series) bool {
	if r, ok := stats.AutocorrelationAt(series, WeeklyLag); ok && math.Abs(r) > SeasonalityThreshold {
		return true
	}
	if series.Len() > MonthlyLag {
		if r, ok := stats.AutocorrelationAt(series, MonthlyLag); ok && math.Abs(r) > SeasonalityThreshold {
			return true
		}
	}
	return false
}

func score(a Assessment, n int) float64 {
	s := 1.0
	if float64(a.Missing)/float64(n) > 0.1 {
		s -= 0.2
	}
	if n < 2*MinViableSample {
		s -= 0.3
	}
	if a.Variance == 0 {
		s -= 0.3
	}
	return math.Max(0, math.Min(1, s))
}
