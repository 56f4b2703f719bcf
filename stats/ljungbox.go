package stats

import (
	"errors"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goforecast/timeseries"
)

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int // Degrees of freedom
}

// NoAutocorrelation reports whether the null of no autocorrelation survives
// at significance level alpha.
func (r *LjungBoxResult) NoAutocorrelation(alpha float64) bool {
	return r.PValue > alpha
}

// LjungBox performs the Ljung-Box test for autocorrelation in residuals.
// The null hypothesis is that there is no autocorrelation up to lag h.
// If p-value < 0.05, we reject the null and conclude there is significant autocorrelation.
// fitdf is the number of parameters estimated in the model (p + q for ARIMA).
func LjungBox(series *timeseries.Series, lags, fitdf int) (*LjungBoxResult, error) {
	n := series.Len()
	if n < 10 || lags < 1 {
		return nil, errors.New("ljung-box needs at least 10 observations and one lag")
	}

	if lags >= n {
		lags = n - 1
	}

	acf := ACF(series, lags)
	if acf == nil {
		return nil, errors.New("ljung-box undefined for a constant series")
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += (acf[k] * acf[k]) / float64(n-k)
	}
	q *= float64(n * (n + 2))

	dof := lags - fitdf
	if dof < 1 {
		dof = 1
	}

	chi := distuv.ChiSquared{K: float64(dof)}
	return &LjungBoxResult{
		Statistic: q,
		PValue:    chi.Survival(q),
		Lags:      lags,
		DOF:       dof,
	}, nil
}
