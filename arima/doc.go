// Package arima implements AutoRegressive Integrated Moving Average (ARIMA) models.
//
// ARIMA models are used for analyzing and forecasting time series data. An ARIMA(p,d,q)
// model combines:
//   - AR(p): AutoRegressive component with p lags
//   - I(d): Integration (differencing) of order d
//   - MA(q): Moving Average component with q lags
//
// Coefficients are estimated by conditional sum of squares: the AR terms
// start from Yule-Walker estimates and all coefficients are refined with
// gonum's Nelder-Mead optimizer, constrained to a stationary AR polynomial.
//
// # Basic Usage
//
//	model := arima.New(1, 1, 0)
//	if err := model.Fit(series); err != nil {
//	    return err
//	}
//
//	// Point forecasts with 95% bounds
//	point, lower, upper, _ := model.PredictInterval(10, 1.96)
//
// # Diagnostics
//
// Summary runs a Ljung-Box test on the residuals at DiagnosticLags lags.
// ResidualsUncorrelated reports a healthy fit:
//
//	if !model.Summary().ResidualsUncorrelated {
//	    // residual structure remains
//	}
//
// For automatic order selection, use the autoarima package.
package arima
