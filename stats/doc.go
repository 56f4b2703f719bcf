// Package stats provides statistical tests and analysis functions for time series.
//
// This package includes stationarity tests, autocorrelation functions, the
// differencing selector and diagnostic tests for model validation.
//
// # Stationarity Tests
//
// Test whether a time series is stationary:
//
//	// Augmented Dickey-Fuller test
//	// H0: Series has unit root (non-stationary)
//	adf, err := stats.ADF(series, 0)
//
//	// KPSS test
//	// H0: Series is stationary
//	kpss, err := stats.KPSS(series, "c", 0)
//
// The two nulls point in opposite directions, so TestStationarity only calls a
// series stationary when both agree. A test that cannot run (too few points,
// constant series) is recorded in the result and the series counts as
// non-stationary:
//
//	res := stats.TestStationarity(series, 0.05)
//	if !res.IsStationary && res.Err() != nil {
//	    log.Println(res.Err())
//	}
//
// # Differencing
//
// Difference until stationary, up to a maximum order:
//
//	d := stats.SelectDifferencing(series, stats.DifferencingConfig{MaxOrder: 2})
//	fmt.Println(d.Order, d.Confirmed)
//
// # Autocorrelation
//
//	acf := stats.ACF(series, 20)
//	r7, ok := stats.AutocorrelationAt(series, 7)
//
// # Residual Diagnostics
//
//	lb, err := stats.LjungBox(residuals, 10, p+q)
//	if err == nil && lb.NoAutocorrelation(0.05) {
//	    // Residuals are white noise (good)
//	}
//
// # Information Criteria
//
//	ic := stats.CalculateIC(logLik, nObs, nParams)
//	fmt.Println(ic.AIC, ic.AICc, ic.BIC)
package stats
