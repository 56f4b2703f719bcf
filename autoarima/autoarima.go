// Package autoarima implements automatic ARIMA model selection.
package autoarima

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/stats"
	"github.com/sartorproj/goforecast/timeseries"
)

// FallbackOrder is tried once when no grid candidate can be fitted.
var FallbackOrder = arima.Order{P: 1, D: 1, Q: 1}

// ErrNoCandidate is wrapped into the fit failure when neither the grid nor
// the fallback order produced a model.
var ErrNoCandidate = errors.New("no ARIMA candidate could be fitted")

// Config holds configuration for auto ARIMA search.
type Config struct {
	MaxP        int     // Maximum AR order (default: 4)
	MaxD        int     // Maximum differencing order (default: 2)
	MaxQ        int     // Maximum MA order (default: 4)
	OrderBudget int     // Upper bound on p+d+q (default: 5)
	Alpha       float64 // Significance level of the stationarity tests (default: 0.05)
	Logger      zerolog.Logger
}

// DefaultConfig returns the default auto ARIMA configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxP:        4,
		MaxD:        2,
		MaxQ:        4,
		OrderBudget: 5,
		Alpha:       stats.DefaultAlpha,
		Logger:      zerolog.Nop(),
	}
}

// ConfigFrom derives the search configuration from a run's selection config.
func ConfigFrom(sel forecast.SelectionConfig) *Config {
	return &Config{
		MaxP:        sel.ARIMA.MaxP,
		MaxD:        sel.ARIMA.MaxD,
		MaxQ:        sel.ARIMA.MaxQ,
		OrderBudget: sel.ARIMA.OrderBudget,
		Alpha:       sel.Alpha,
		Logger:      sel.Logger,
	}
}

// Candidate records one attempted order.
type Candidate struct {
	Order arima.Order
	AIC   float64
	Err   error
}

// Result represents the result of auto ARIMA model selection.
type Result struct {
	Model *arima.Model
	Order arima.Order

	AIC    float64
	BIC    float64
	LogLik float64

	// Search information
	ModelsEvaluated int // successful fits
	Candidates      []Candidate
	Differencing    *stats.DifferencingResult
	UsedFallback    bool
}

// Search selects d with the stationarity tests, then fits every (p, q) with
// p+d+q within the budget and keeps the lowest AIC. Candidates that fail are
// logged and skipped. When none succeeds the fallback order is tried once.
// The context is checked between candidates.
func Search(ctx context.Context, series *timeseries.Series, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	log := config.Logger

	diff := stats.SelectDifferencing(series, stats.DifferencingConfig{
		MaxOrder: config.MaxD,
		Alpha:    config.Alpha,
		Logger:   log,
	})
	d := diff.Order

	result := &Result{
		AIC:          math.Inf(1),
		Differencing: diff,
	}

	for p := 0; p <= config.MaxP; p++ {
		for q := 0; q <= config.MaxQ; q++ {
			if p+d+q > config.OrderBudget {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, forecast.NewFitError(forecast.ModelARIMA, err)
			}

			order := arima.Order{P: p, D: d, Q: q}
			model, err := fitOrder(series, order)
			if err != nil {
				log.Debug().Stringer("order", order).Err(err).Msg("candidate failed")
				result.Candidates = append(result.Candidates, Candidate{Order: order, AIC: math.NaN(), Err: err})
				continue
			}

			result.ModelsEvaluated++
			result.Candidates = append(result.Candidates, Candidate{Order: order, AIC: model.AIC})
			log.Debug().Stringer("order", order).Float64("aic", model.AIC).Msg("candidate fitted")

			if model.AIC < result.AIC {
				result.set(model)
			}
		}
	}

	if result.Model == nil {
		if err := ctx.Err(); err != nil {
			return nil, forecast.NewFitError(forecast.ModelARIMA, err)
		}
		log.Warn().Int("d", d).Stringer("order", FallbackOrder).Msg("grid search found no model, trying fallback order")

		model, err := fitOrder(series, FallbackOrder)
		if err != nil {
			result.Candidates = append(result.Candidates, Candidate{Order: FallbackOrder, AIC: math.NaN(), Err: err})
			return nil, forecast.NewFitError(forecast.ModelARIMA, errors.Join(ErrNoCandidate, err))
		}
		result.ModelsEvaluated++
		result.Candidates = append(result.Candidates, Candidate{Order: FallbackOrder, AIC: model.AIC})
		result.set(model)
		result.UsedFallback = true
	}

	log.Info().
		Stringer("order", result.Order).
		Float64("aic", result.AIC).
		Int("models_evaluated", result.ModelsEvaluated).
		Bool("stationarity_confirmed", diff.Confirmed).
		Msg("arima order selected")

	return result, nil
}

func (r *Result) set(model *arima.Model) {
	r.Model = model
	r.Order = model.Order
	r.AIC = model.AIC
	r.BIC = model.BIC
	r.LogLik = model.LogLik
}

func fitOrder(series *timeseries.Series, order arima.Order) (*arima.Model, error) {
	model := arima.New(order.P, order.D, order.Q)
	if err := model.Fit(series); err != nil {
		return nil, err
	}
	return model, nil
}
