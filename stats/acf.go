package stats

import (
	"math"

	"github.com/sartorproj/goforecast/timeseries"
)

// ACF calculates the Autocorrelation Function for the given series.
// Returns ACF values for lags 0 to maxLag, or nil when the series is
// constant or empty.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := series.Mean()
	variance := 0.0
	for _, v := range series.Values {
		diff := v - mean
		variance += diff * diff
	}

	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (series.Values[i] - mean) * (series.Values[i-k] - mean)
		}
		acf[k] = sum / variance
	}

	return acf
}

// AutocorrelationAt returns the autocorrelation at a single lag.
// ok is false when the lag cannot be computed: the series needs more than
// lag points and must not be constant.
func AutocorrelationAt(series *timeseries.Series, lag int) (value float64, ok bool) {
	if lag < 1 || series.Len() <= lag {
		return 0, false
	}
	acf := ACF(series, lag)
	if len(acf) <= lag || math.IsNaN(acf[lag]) {
		return 0, false
	}
	return acf[lag], true
}
