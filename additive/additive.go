// Package additive implements a decomposable trend plus seasonality
// forecasting model.
package additive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/stats"
	"github.com/sartorproj/goforecast/timeseries"
)

// logisticEps keeps probabilities away from 0 and 1 before the logit.
const logisticEps = 1e-3

// priorNoise is the noise variance, on the scaled series, against which the
// prior scales are weighed.
const priorNoise = 1e-3

// ridge regularises the intercept and slope.
const ridge = 1e-8

// minObservations is the shortest series Fit accepts.
const minObservations = 3

var (
	// ErrSingular is returned when the normal equations cannot be factorised.
	ErrSingular = errors.New("penalised normal equations are not positive definite")
	// ErrNonFinite is returned when the estimates contain NaN or Inf.
	ErrNonFinite = errors.New("estimation produced non-finite values")
)

// Model is a fitted additive model:
//
//	y(t) = k + m t + sum_j delta_j (t - c_j)+ + sum_s seasonal_s(t)
//
// fitted on the scaled series. Logistic growth fits the same model to the
// logit of the series so that forecasts map back into (0, 1).
type Model struct {
	opts          Options
	series        *timeseries.Series
	start         time.Time
	tScale        float64 // history span in days
	yScale        float64
	changepoints  []float64 // scaled time
	seasonalities []Seasonality

	beta  []float64
	cov   *mat.SymDense // (X'X + Lambda)^-1
	sigma float64       // residual standard deviation on the scaled series
	edf   float64       // effective degrees of freedom
	aic   float64
	z     float64
}

// Fit estimates the model by penalised least squares.
func Fit(ctx context.Context, series *timeseries.Series, opts Options) (*Model, error) {
	m, err := fit(ctx, series, opts)
	if err != nil {
		return nil, forecast.NewFitError(forecast.ModelAdditive, err)
	}
	return m, nil
}

func fit(ctx context.Context, series *timeseries.Series, opts Options) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	n := series.Len()
	if n < minObservations {
		return nil, fmt.Errorf("need at least %d observations, got %d", minObservations, n)
	}

	m := &Model{
		opts:   opts,
		series: series,
		start:  series.Timestamps[0],
		tScale: series.SpanDays(),
		z:      forecast.ZScore(opts.IntervalWidth),
	}
	if m.tScale <= 0 {
		m.tScale = 1
	}

	y := make([]float64, n)
	for i, v := range series.Values {
		y[i] = m.transform(v)
	}
	abs := make([]float64, n)
	for i, v := range y {
		abs[i] = math.Abs(v)
	}
	m.yScale = floats.Max(abs)
	if m.yScale == 0 {
		m.yScale = 1
	}
	floats.Scale(1/m.yScale, y)

	m.placeChangepoints()
	for _, s := range opts.Seasonalities {
		if m.tScale >= s.MinSpan && s.Order > 0 && s.Period > 0 {
			m.seasonalities = append(m.seasonalities, s)
		}
	}

	x := m.design(series.Timestamps)
	_, k := x.Dims()

	// A = X'X + Lambda
	var a mat.SymDense
	a.SymOuterK(1, x.T())
	for j, lambda := range m.penalties(k) {
		a.SetSym(j, j, a.At(j, j)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(n, y))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	m.beta = make([]float64, k)
	for j := range m.beta {
		m.beta[j] = beta.AtVec(j)
	}
	if !allFinite(m.beta) {
		return nil, ErrNonFinite
	}

	m.cov = mat.NewSymDense(k, nil)
	if err := chol.InverseTo(m.cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	// Effective degrees of freedom: trace((X'X + Lambda)^-1 X'X).
	var xtx, hat mat.Dense
	xtx.Mul(x.T(), x)
	hat.Mul(m.cov, &xtx)
	m.edf = mat.Trace(&hat)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	sse, sseOrig := 0.0, 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
		ro := series.Values[i] - m.inverse(fitted.AtVec(i))
		sseOrig += ro * ro
	}

	dof := float64(n) - m.edf
	if dof < 1 {
		dof = 1
	}
	m.sigma = math.Sqrt(math.Max(sse/dof, 1e-12))

	sigma2 := math.Max(sseOrig/float64(n), 1e-10)
	nParams := int(math.Round(m.edf)) + 1
	m.aic = stats.CalculateIC(stats.GaussianLogLik(sseOrig, sigma2, n), n, nParams).AIC
	if math.IsNaN(m.aic) || math.IsInf(m.aic, 0) || math.IsNaN(m.sigma) {
		return nil, ErrNonFinite
	}

	opts.Logger.Debug().
		Str("growth", string(opts.Growth)).
		Int("changepoints", len(m.changepoints)).
		Int("seasonalities", len(m.seasonalities)).
		Float64("edf", m.edf).
		Float64("aic", m.aic).
		Msg("additive model fitted")

	return m, nil
}

// placeChangepoints spreads potential changepoints uniformly over the first
// ChangepointRange share of the history, excluding the first point.
func (m *Model) placeChangepoints() {
	n := m.series.Len()
	hist := int(math.Floor(float64(n) * m.opts.ChangepointRange))
	count := min(m.opts.Changepoints, hist-1)
	if count <= 0 {
		return
	}

	m.changepoints = make([]float64, count)
	step := float64(hist-1) / float64(count)
	for j := 1; j <= count; j++ {
		idx := int(math.Round(float64(j) * step))
		m.changepoints[j-1] = m.scaledTime(m.series.Timestamps[idx])
	}
}

func (m *Model) days(ts time.Time) float64 {
	return ts.Sub(m.start).Hours() / 24
}

func (m *Model) scaledTime(ts time.Time) float64 {
	return m.days(ts) / m.tScale
}

// design builds the regression matrix for the given timestamps.
// Columns: intercept, slope, changepoint hinges, then sine/cosine pairs.
func (m *Model) design(timestamps []time.Time) *mat.Dense {
	k := m.columns()
	x := mat.NewDense(len(timestamps), k, nil)
	for i, ts := range timestamps {
		x.SetRow(i, m.row(ts, make([]float64, k)))
	}
	return x
}

func (m *Model) columns() int {
	k := 2 + len(m.changepoints)
	for _, s := range m.seasonalities {
		k += 2 * s.Order
	}
	return k
}

func (m *Model) row(ts time.Time, dst []float64) []float64 {
	t := m.scaledTime(ts)
	dst[0] = 1
	dst[1] = t
	j := 2
	for _, c := range m.changepoints {
		dst[j] = math.Max(0, t-c)
		j++
	}
	d := m.days(ts)
	for _, s := range m.seasonalities {
		for o := 1; o <= s.Order; o++ {
			arg := 2 * math.Pi * float64(o) * d / s.Period
			dst[j] = math.Sin(arg)
			dst[j+1] = math.Cos(arg)
			j += 2
		}
	}
	return dst
}

// penalties returns the diagonal of Lambda. Changepoint and seasonal
// coefficients get Gaussian priors with the configured scales.
func (m *Model) penalties(k int) []float64 {
	out := make([]float64, k)
	out[0], out[1] = ridge, ridge
	cp := priorNoise / (m.opts.ChangepointPriorScale * m.opts.ChangepointPriorScale)
	for j := 0; j < len(m.changepoints); j++ {
		out[2+j] = cp
	}
	seasonal := priorNoise/(m.opts.SeasonalityPriorScale*m.opts.SeasonalityPriorScale) + ridge
	for j := 2 + len(m.changepoints); j < k; j++ {
		out[j] = seasonal
	}
	return out
}

func (m *Model) transform(v float64) float64 {
	if m.opts.Growth != forecast.GrowthLogistic {
		return v
	}
	p := math.Max(logisticEps, math.Min(1-logisticEps, v))
	return math.Log(p / (1 - p))
}

// inverse maps a scaled model value back to the original units.
func (m *Model) inverse(v float64) float64 {
	v *= m.yScale
	if m.opts.Growth != forecast.GrowthLogistic {
		return v
	}
	return 1 / (1 + math.Exp(-v))
}

// Predict returns point forecasts and bounds at the given timestamps.
// Bounds combine coefficient uncertainty with residual noise.
func (m *Model) Predict(timestamps []time.Time) (point, lower, upper []float64) {
	k := len(m.beta)
	point = make([]float64, len(timestamps))
	lower = make([]float64, len(timestamps))
	upper = make([]float64, len(timestamps))

	row := make([]float64, k)
	xv := mat.NewVecDense(k, row)
	for i, ts := range timestamps {
		m.row(ts, row)
		yhat := floats.Dot(row, m.beta)
		q := mat.Inner(xv, m.cov, xv)
		se := m.sigma * math.Sqrt(1+q)

		point[i] = m.inverse(yhat)
		lower[i] = m.inverse(yhat - m.z*se)
		upper[i] = m.inverse(yhat + m.z*se)
	}
	return point, lower, upper
}

// Name implements forecast.Fitted.
func (m *Model) Name() string { return forecast.ModelAdditive }

// AIC implements forecast.Fitted.
func (m *Model) AIC() float64 { return m.aic }

// Forecast implements forecast.Fitted.
func (m *Model) Forecast(periods int) (forecast.Table, error) {
	if periods <= 0 {
		return nil, forecast.InvalidInput("periods must be positive, got %d", periods)
	}
	point, lower, upper := m.Predict(m.series.FutureTimestamps(periods))
	if !allFinite(point) || !allFinite(lower) || !allFinite(upper) {
		return nil, forecast.NewFitError(forecast.ModelAdditive, ErrNonFinite)
	}
	return forecast.NewTable(m.series, point, lower, upper), nil
}

// Params implements forecast.Fitted.
func (m *Model) Params() map[string]any {
	names := make([]string, len(m.seasonalities))
	for i, s := range m.seasonalities {
		names[i] = s.Name
	}
	params := map[string]any{
		"growth":                  string(m.opts.Growth),
		"changepoints":            len(m.changepoints),
		"changepoint_prior_scale": m.opts.ChangepointPriorScale,
		"seasonality_prior_scale": m.opts.SeasonalityPriorScale,
		"seasonalities":           names,
		"effective_df":            m.edf,
		"sigma":                   m.sigma * m.yScale,
		"aic":                     m.aic,
	}
	if m.opts.Growth == forecast.GrowthLinear {
		params["slope_per_day"] = m.beta[1] * m.yScale / m.tScale
	}
	return params
}

// Seasonalities returns the names of the seasonal components in the model.
func (m *Model) Seasonalities() []string {
	out := make([]string, len(m.seasonalities))
	for i, s := range m.seasonalities {
		out[i] = s.Name
	}
	return out
}

// Changepoints returns the number of potential trend changepoints.
func (m *Model) Changepoints() int { return len(m.changepoints) }

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
