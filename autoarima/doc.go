// Package autoarima implements automatic ARIMA model selection.
//
// Search chooses the differencing order d with the ADF and KPSS tests, then
// fits every ARIMA(p,d,q) whose total order fits the budget and keeps the one
// with the lowest AIC:
//
//	cfg := autoarima.DefaultConfig()
//	cfg.MaxP, cfg.MaxQ, cfg.OrderBudget = 3, 3, 4
//
//	result, err := autoarima.Search(ctx, series, cfg)
//	if err != nil {
//	    // errors.Is(err, forecast.ErrFitFailure)
//	}
//	fmt.Println(result.Order, result.AIC)
//
// Candidates that fail to fit are skipped. If none succeeds, FallbackOrder
// is tried once before the search reports a fit failure.
//
// Estimator wraps Search for the model selector.
package autoarima
