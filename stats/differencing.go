package stats

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/sartorproj/goforecast/timeseries"
)

// DefaultMaxDifferencing is the largest differencing order tried by default.
const DefaultMaxDifferencing = 2

// DifferencingConfig controls SelectDifferencing.
type DifferencingConfig struct {
	MaxOrder int     // Largest order to apply (default: 2)
	Alpha    float64 // Significance level for the stationarity tests (default: 0.05)
	Logger   zerolog.Logger
}

// DifferencingResult is the outcome of SelectDifferencing.
type DifferencingResult struct {
	Series    *timeseries.Series // The series differenced Order times
	Order     int
	Confirmed bool // Whether stationarity was confirmed at Order
	Tests     []StationarityResult
}

// SelectDifferencing differences the series until both stationarity tests
// agree or the maximum order is reached. When stationarity is never
// confirmed the most differenced series is returned with Confirmed false;
// callers are expected to proceed anyway.
func SelectDifferencing(series *timeseries.Series, cfg DifferencingConfig) *DifferencingResult {
	if cfg.MaxOrder < 0 {
		cfg.MaxOrder = 0
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = DefaultAlpha
	}

	current := series
	res := &DifferencingResult{}
	for d := 0; ; d++ {
		test := TestStationarity(current, cfg.Alpha)
		res.Tests = append(res.Tests, test)

		if test.IsStationary {
			res.Series = current
			res.Order = d
			res.Confirmed = true
			cfg.Logger.Debug().Int("d", d).Msg("stationarity confirmed")
			return res
		}
		if err := test.Err(); err != nil {
			cfg.Logger.Debug().Int("d", d).Err(err).Msg("stationarity test could not run")
		}

		if d == cfg.MaxOrder || current.Len() < 2 {
			res.Series = current
			res.Order = d
			cfg.Logger.Warn().
				Int("d", d).
				Int("max_order", cfg.MaxOrder).
				Msg("stationarity not confirmed, using most differenced series")
			return res
		}
		current = current.Diff()
	}
}

// AICc calculates the corrected Akaike Information Criterion.
// AICc = AIC + 2(k)(k+1)/(n-k-1) where k is number of parameters.
func AICc(aic float64, nObs int, nParams int) float64 {
	k := float64(nParams)
	n := float64(nObs)

	if n-k-1 <= 0 {
		return math.Inf(1)
	}

	return aic + 2*k*(k+1)/(n-k-1)
}

// InformationCriteria holds AIC, AICc, and BIC for a fitted model.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	LogLik float64
}

// GaussianLogLik is the Gaussian log-likelihood of nObs residuals with the
// given sum of squares and variance estimate.
func GaussianLogLik(sse, variance float64, nObs int) float64 {
	n := float64(nObs)
	return -n/2*math.Log(2*math.Pi) - n/2*math.Log(variance) - sse/(2*variance)
}

// CalculateIC calculates all information criteria.
// logLik is the log-likelihood, nObs is the number of observations,
// nParams is the number of estimated parameters.
func CalculateIC(logLik float64, nObs int, nParams int) *InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	aic := -2*logLik + 2*k

	return &InformationCriteria{
		AIC:    aic,
		AICc:   AICc(aic, nObs, nParams),
		BIC:    -2*logLik + k*math.Log(n),
		LogLik: logLik,
	}
}
