// Package selector decides which forecasting model to trust for a series,
// fits it and explains the choice. Every run ends with a usable forecast:
// model failures downgrade the run, they are never returned.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sartorproj/goforecast/additive"
	"github.com/sartorproj/goforecast/autoarima"
	"github.com/sartorproj/goforecast/evaluate"
	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/quality"
	"github.com/sartorproj/goforecast/timeseries"
)

// State is the path a run took.
type State string

// Selection states.
const (
	StateInsufficientData State = "insufficient_data"
	StateQuickSelection   State = "quick_selection"
	StateFullEvaluation   State = "full_evaluation"
	StateFallback         State = "fallback"
)

// Confidence tells the caller how far to trust the forecast.
type Confidence string

// Confidence levels.
const (
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// Series length thresholds.
const (
	MinModelPoints       = quality.MinViableSample
	FullEvaluationPoints = 30
)

// Request is one forecasting run.
type Request struct {
	Points              []timeseries.Point
	MetricType          forecast.MetricType
	Periods             int
	ForceFullEvaluation bool
	RunID               string // generated when empty
}

// Result is the outcome of a run.
type Result struct {
	RunID           string             `json:"run_id"`
	ModelUsed       string             `json:"model_used"`
	Reason          string             `json:"selection_reason"`
	State           State              `json:"selection_state"`
	Confidence      Confidence         `json:"confidence"`
	Forecast        forecast.Table     `json:"forecast_data"`
	Metrics         *evaluate.Metrics  `json:"accuracy_metrics"`
	Ranking         []evaluate.Ranked  `json:"model_ranking,omitempty"`
	Attempted       []string           `json:"models_attempted,omitempty"`
	Params          map[string]any     `json:"model_params,omitempty"`
	Quality         quality.Assessment `json:"data_quality"`
	Recommendations []string           `json:"recommendations"`
	Duration        time.Duration      `json:"-"`
}

// EstimatorsFunc returns the candidate models of a run in the order the
// quick path tries them.
type EstimatorsFunc func(cfg forecast.SelectionConfig) []forecast.Estimator

// DefaultEstimators tries the additive model first, then ARIMA.
func DefaultEstimators(cfg forecast.SelectionConfig) []forecast.Estimator {
	return []forecast.Estimator{
		additive.NewEstimator(cfg),
		autoarima.NewEstimator(cfg),
	}
}

// Options configures a Selector.
type Options struct {
	Profiles      forecast.Profiles // default: forecast.DefaultProfiles()
	IntervalWidth float64           // default: forecast.DefaultIntervalWidth
	Estimators    EstimatorsFunc    // default: DefaultEstimators
	Logger        zerolog.Logger
}

// Selector runs model selection. It holds no per-run state and is safe for
// concurrent use.
type Selector struct {
	opts Options
}

// New returns a Selector.
func New(opts Options) *Selector {
	if opts.Profiles == nil {
		opts.Profiles = forecast.DefaultProfiles()
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = forecast.DefaultIntervalWidth
	}
	if opts.Estimators == nil {
		opts.Estimators = DefaultEstimators
	}
	return &Selector{opts: opts}
}

// run carries the state of one selection.
type run struct {
	cfg     forecast.SelectionConfig
	series  *timeseries.Series
	periods int
	res     *Result
	log     zerolog.Logger
}

// Select runs one selection. Only invalid input is returned as an error.
func (s *Selector) Select(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	if req.Periods <= 0 {
		return nil, forecast.InvalidInput("forecast periods must be positive, got %d", req.Periods)
	}
	cfg, err := s.opts.Profiles.Config(req.MetricType)
	if err != nil {
		return nil, err
	}
	if len(req.Points) == 0 {
		return nil, forecast.InvalidInput("series is empty")
	}
	series, err := timeseries.FromPoints(req.Points)
	if err != nil {
		return nil, forecast.InvalidInput("%v", err)
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.opts.Logger.With().
		Str("run_id", runID).
		Str("metric_type", string(cfg.MetricType)).
		Int("points", series.Len()).
		Logger()
	cfg.Logger = log
	cfg.IntervalWidth = s.opts.IntervalWidth

	assessment := quality.Assess(series)
	r := &run{
		cfg:     cfg,
		series:  series,
		periods: req.Periods,
		log:     log,
		res: &Result{
			RunID:           runID,
			Quality:         assessment,
			Recommendations: Recommend(assessment, cfg.MetricType),
		},
	}

	n := series.Len()
	switch {
	case n < MinModelPoints:
		s.insufficientData(r)
	case n < FullEvaluationPoints && !req.ForceFullEvaluation:
		err = s.quickSelection(ctx, r, "")
	default:
		err = s.fullEvaluation(ctx, r)
	}
	if err != nil {
		s.fallback(r, err)
	}

	if cfg.Bounded() {
		r.res.Forecast = r.res.Forecast.Clamp(0, 1)
	}
	r.res.Duration = time.Since(started)

	log.Info().
		Str("state", string(r.res.State)).
		Str("model", r.res.ModelUsed).
		Str("confidence", string(r.res.Confidence)).
		Dur("duration", r.res.Duration).
		Msg("selection finished")
	return r.res, nil
}

func (s *Selector) insufficientData(r *run) {
	n := r.series.Len()
	method := "linear extrapolation between first and last point"
	if n == 1 {
		method = "last value carried forward"
	}

	r.res.State = StateInsufficientData
	r.res.ModelUsed = forecast.ModelNaive
	r.res.Confidence = ConfidenceLow
	r.res.Reason = fmt.Sprintf("only %d data points, at least %d are needed to fit a model; using %s",
		n, MinModelPoints, method)
	r.res.Forecast = forecast.LinearTrend(r.series, r.periods, r.cfg.ZScore())
	r.log.Debug().Msg("insufficient data for model fitting")
}

// quickSelection fits the candidates on the full series in order and keeps
// the first that succeeds.
func (s *Selector) quickSelection(ctx context.Context, r *run, note string) error {
	var errs []error
	for _, est := range s.opts.Estimators(r.cfg) {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		r.res.Attempted = append(r.res.Attempted, est.Name())

		fitted, err := est.Fit(ctx, r.series)
		if err != nil {
			r.log.Warn().Err(err).Str("model", est.Name()).Msg("quick selection candidate failed")
			errs = append(errs, err)
			continue
		}
		table, err := finiteForecast(fitted, r.periods)
		if err != nil {
			r.log.Warn().Err(err).Str("model", est.Name()).Msg("quick selection forecast failed")
			errs = append(errs, err)
			continue
		}

		r.res.State = StateQuickSelection
		r.res.ModelUsed = fitted.Name()
		r.res.Confidence = ConfidenceMedium
		r.res.Forecast = table
		r.res.Params = finiteParams(fitted.Params())
		r.res.Reason = fmt.Sprintf("%d data points are too few to hold out a test split; %s fitted on the full series",
			r.series.Len(), fitted.Name())
		if note != "" {
			r.res.Reason = note + "; " + r.res.Reason
		}
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no candidate models")
	}
	return errors.Join(errs...)
}

// fullEvaluation fits every candidate on the training split, ranks them on
// the held-out split and refits the winner on the full series.
func (s *Selector) fullEvaluation(ctx context.Context, r *run) error {
	train, test, err := evaluate.Split(r.series, evaluate.DefaultTrainRatio)
	if errors.Is(err, evaluate.ErrEvaluationSkipped) {
		r.log.Info().Err(err).Msg("evaluation skipped, degrading to quick selection")
		return s.quickSelection(ctx, r, "evaluation skipped: "+err.Error())
	}
	if err != nil {
		return err
	}

	estimators := s.opts.Estimators(r.cfg)
	byName := make(map[string]forecast.Estimator, len(estimators))
	trained := make(map[string]forecast.Fitted, len(estimators))
	metrics := make(map[string]evaluate.Metrics, len(estimators))
	var errs []error

	for _, est := range estimators {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		r.res.Attempted = append(r.res.Attempted, est.Name())
		byName[est.Name()] = est

		fitted, err := est.Fit(ctx, train)
		if err != nil {
			r.log.Warn().Err(err).Str("model", est.Name()).Msg("candidate excluded from comparison")
			errs = append(errs, err)
			continue
		}
		m, err := evaluate.Evaluate(fitted, train, test)
		if err != nil {
			r.log.Warn().Err(err).Str("model", est.Name()).Msg("candidate could not be evaluated")
			errs = append(errs, err)
			continue
		}
		trained[est.Name()] = fitted
		metrics[est.Name()] = m
		r.log.Debug().Str("model", est.Name()).Float64("mae", m.MAE).Float64("rmse", m.RMSE).Msg("candidate evaluated")
	}

	if len(metrics) == 0 {
		if len(errs) == 0 {
			return errors.New("no candidate models")
		}
		return errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ranking := evaluate.Compare(metrics)
	best := ranking[0]
	r.res.Ranking = ranking

	table, params, err := s.refit(ctx, r, byName[best.Model], trained[best.Model], test.Len())
	if err != nil {
		return err
	}

	bestMetrics := best.Metrics
	r.res.State = StateFullEvaluation
	r.res.ModelUsed = best.Model
	r.res.Confidence = ConfidenceHigh
	r.res.Forecast = table
	r.res.Metrics = &bestMetrics
	r.res.Params = finiteParams(params)
	r.res.Reason = fmt.Sprintf("%s had the lowest MAE (%.4g) of %d candidate(s) on the %d most recent points",
		best.Model, best.Metrics.MAE, len(ranking), test.Len())
	if len(ranking) > 1 {
		others := make([]string, 0, len(ranking)-1)
		for _, rk := range ranking[1:] {
			others = append(others, fmt.Sprintf("%s MAE %.4g", rk.Model, rk.Metrics.MAE))
		}
		r.res.Reason += " (" + strings.Join(others, ", ") + ")"
	}
	return nil
}

// refit fits the winning estimator on the full series. When that fails the
// training fit is extended over the test horizon and its tail is used.
func (s *Selector) refit(ctx context.Context, r *run, est forecast.Estimator, trainFit forecast.Fitted, testLen int) (forecast.Table, map[string]any, error) {
	full, err := est.Fit(ctx, r.series)
	if err == nil {
		table, ferr := finiteForecast(full, r.periods)
		if ferr == nil {
			return table, full.Params(), nil
		}
		err = ferr
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, nil, cerr
	}

	r.log.Warn().Err(err).Str("model", est.Name()).Msg("refit on full series failed, extending training fit")
	table, ferr := finiteForecast(trainFit, testLen+r.periods)
	if ferr != nil {
		return nil, nil, errors.Join(err, ferr)
	}
	tail := table.Tail(r.periods)
	dates := r.series.FutureTimestamps(r.periods)
	out := make(forecast.Table, len(tail))
	for i, row := range tail {
		row.Date = dates[i]
		out[i] = row
	}
	return out, trainFit.Params(), nil
}

func (s *Selector) fallback(r *run, cause error) {
	r.log.Error().Err(cause).Msg("all models failed, using fallback forecast")

	r.res.State = StateFallback
	r.res.ModelUsed = forecast.ModelFallback
	r.res.Confidence = ConfidenceVeryLow
	r.res.Metrics = nil
	r.res.Params = nil
	r.res.Ranking = nil
	r.res.Reason = "all models failed, using naive linear trend: " + cause.Error()
	r.res.Forecast = forecast.LinearTrend(r.series, r.periods, r.cfg.ZScore())
}

// finiteForecast rejects forecasts that JSON cannot carry.
func finiteForecast(fitted forecast.Fitted, periods int) (forecast.Table, error) {
	table, err := fitted.Forecast(periods)
	if err != nil {
		return nil, err
	}
	if !table.Finite() {
		return nil, forecast.NewFitError(fitted.Name(), forecast.ErrNonFinite)
	}
	return table, nil
}

// finiteParams drops non-finite scalar parameters, which JSON cannot carry.
func finiteParams(params map[string]any) map[string]any {
	for k, v := range params {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			delete(params, k)
		}
	}
	return params
}
