// Package forecast holds the contracts shared by every forecasting model:
// metric types, per-run selection configuration, the forecast table and the
// error taxonomy.
//
// # Models
//
// A model family implements Estimator. Fitting returns a Fitted model owned by
// the caller:
//
//	fitted, err := est.Fit(ctx, series)
//	if errors.Is(err, forecast.ErrFitFailure) {
//	    // try the next candidate
//	}
//	table, err := fitted.Forecast(14)
//
// # Configuration
//
// Parameter ranges and growth modes per metric type are read from an
// embedded YAML document. A SelectionConfig is built once per run and passed
// by value:
//
//	cfg, err := forecast.DefaultProfiles().Config(forecast.MetricLoad)
package forecast
