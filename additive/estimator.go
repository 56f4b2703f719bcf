package additive

import (
	"context"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/timeseries"
)

// Estimator adapts Fit to forecast.Estimator.
type Estimator struct {
	Config forecast.SelectionConfig
}

// NewEstimator returns an additive estimator for the run configuration.
func NewEstimator(cfg forecast.SelectionConfig) *Estimator {
	return &Estimator{Config: cfg}
}

// Name implements forecast.Estimator.
func (e *Estimator) Name() string { return forecast.ModelAdditive }

// Fit implements forecast.Estimator.
func (e *Estimator) Fit(ctx context.Context, series *timeseries.Series) (forecast.Fitted, error) {
	m, err := Fit(ctx, series, OptionsFrom(e.Config))
	if err != nil {
		return nil, err
	}
	return m, nil
}
