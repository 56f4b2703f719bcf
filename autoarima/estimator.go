package autoarima

import (
	"context"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/timeseries"
)

// Estimator adapts Search to forecast.Estimator.
type Estimator struct {
	Config forecast.SelectionConfig
}

// NewEstimator returns an ARIMA estimator for the run configuration.
func NewEstimator(cfg forecast.SelectionConfig) *Estimator {
	return &Estimator{Config: cfg}
}

// Name implements forecast.Estimator.
func (e *Estimator) Name() string { return forecast.ModelARIMA }

// Fit implements forecast.Estimator.
func (e *Estimator) Fit(ctx context.Context, series *timeseries.Series) (forecast.Fitted, error) {
	res, err := Search(ctx, series, ConfigFrom(e.Config))
	if err != nil {
		return nil, err
	}
	return &Fitted{
		Result: res,
		series: series,
		z:      e.Config.ZScore(),
	}, nil
}

// Fitted is a selected ARIMA model bound to the series it was fitted on.
type Fitted struct {
	Result *Result

	series *timeseries.Series
	z      float64
}

// Name implements forecast.Fitted.
func (f *Fitted) Name() string { return forecast.ModelARIMA }

// AIC implements forecast.Fitted.
func (f *Fitted) AIC() float64 { return f.Result.AIC }

// Forecast implements forecast.Fitted.
func (f *Fitted) Forecast(periods int) (forecast.Table, error) {
	if periods <= 0 {
		return nil, forecast.InvalidInput("periods must be positive, got %d", periods)
	}
	point, lower, upper, err := f.Result.Model.PredictInterval(periods, f.z)
	if err != nil {
		return nil, forecast.NewFitError(forecast.ModelARIMA, err)
	}
	table := forecast.NewTable(f.series, point, lower, upper)
	if !table.Finite() {
		return nil, forecast.NewFitError(forecast.ModelARIMA, forecast.ErrNonFinite)
	}
	return table, nil
}

// Summary returns the diagnostics of the selected model.
func (f *Fitted) Summary() *arima.Summary {
	return f.Result.Model.Summary()
}

// Params implements forecast.Fitted.
func (f *Fitted) Params() map[string]any {
	m := f.Result.Model
	s := m.Summary()
	params := map[string]any{
		"p":                      m.Order.P,
		"d":                      m.Order.D,
		"q":                      m.Order.Q,
		"ar":                     s.ARCoeffs,
		"ma":                     s.MACoeffs,
		"intercept":              m.Intercept,
		"sigma2":                 m.Variance,
		"aic":                    m.AIC,
		"bic":                    m.BIC,
		"models_evaluated":       f.Result.ModelsEvaluated,
		"fallback_order":         f.Result.UsedFallback,
		"residuals_uncorrelated": s.ResidualsUncorrelated,
	}
	if f.Result.Differencing != nil {
		params["stationarity_confirmed"] = f.Result.Differencing.Confirmed
	}
	if s.LjungBox != nil {
		params["ljung_box_p_value"] = s.LjungBox.PValue
	}
	return params
}
