// Package goforecast is an adaptive forecasting engine. Given a historical
// series it decides which forecasting model to trust, fits it, measures its
// accuracy on recent history and returns point forecasts with uncertainty
// bounds and a human-readable justification.
//
// # Selection
//
// The selector picks a path from the amount of data available:
//
//   - fewer than 10 points: straight-line extrapolation
//   - 10 to 29 points: the additive seasonal-trend model, then ARIMA, fitted
//     on the full series
//   - 30 points or more: both models fitted on the oldest 80%, ranked by
//     their error on the most recent 20%, winner refitted on everything
//
// Model failures never surface as errors; they downgrade the run to a naive
// linear-trend fallback. Only invalid input is returned to the caller.
//
// # Quick Start
//
//	sel := selector.New(selector.Options{})
//	res, err := sel.Select(ctx, selector.Request{
//		Points:     points,
//		MetricType: forecast.MetricLoad,
//		Periods:    14,
//	})
//	fmt.Println(res.ModelUsed, res.Reason)
//
// # Packages
//
//   - timeseries: series cleaning and CSV loading
//   - stats: ACF, Ljung-Box, ADF/KPSS stationarity and differencing selection
//   - arima: single-order ARIMA estimated by conditional sum of squares
//   - autoarima: ARIMA order search under a metric profile
//   - additive: piecewise-linear trend plus Fourier seasonality
//   - quality: data quality assessment
//   - evaluate: train/test split, accuracy metrics and ranking
//   - forecast: shared contracts, metric profiles and naive forecasts
//   - selector: the selection state machine
//
// The forecastd command serves the selector over HTTP and the forecast
// command runs it over CSV files.
package goforecast
