package evaluate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/timeseries"
)

type stubFitted struct {
	values []float64
	aic    float64
	err    error
}

func (s stubFitted) Name() string           { return "stub" }
func (s stubFitted) Params() map[string]any { return nil }
func (s stubFitted) AIC() float64           { return s.aic }
func (s stubFitted) Forecast(periods int) (forecast.Table, error) {
	if s.err != nil {
		return nil, s.err
	}
	t := make(forecast.Table, periods)
	for i := range t {
		t[i].Value = s.values[i]
	}
	return t, nil
}

func seq(n int) *timeseries.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}
	return timeseries.New(values)
}

func TestSplit(t *testing.T) {
	train, test, err := Split(seq(60), 0.8)
	require.NoError(t, err)
	assert.Equal(t, 48, train.Len())
	assert.Equal(t, 12, test.Len())
	assert.Equal(t, 48.0, train.Last())
	assert.Equal(t, 49.0, test.First())
	assert.True(t, train.Timestamps[47].Before(test.Timestamps[0]))
}

func TestSplitTwelvePoints(t *testing.T) {
	train, test, err := Split(seq(12), 0.8)
	require.NoError(t, err)
	assert.Equal(t, 10, train.Len())
	assert.Equal(t, 2, test.Len())
}

func TestSplitSkipped(t *testing.T) {
	_, _, err := Split(seq(11), 0.8)
	assert.ErrorIs(t, err, ErrEvaluationSkipped)

	_, _, err = Split(seq(0), 0.8)
	assert.ErrorIs(t, err, ErrEvaluationSkipped)
}

func TestSplitDefaultRatio(t *testing.T) {
	_, test, err := Split(seq(30), 0)
	require.NoError(t, err)
	assert.Equal(t, 6, test.Len())
}

func TestScorePerfect(t *testing.T) {
	m := Score([]float64{3, 4, 5}, []float64{3, 4, 5}, []float64{1, 2, 3})
	assert.Zero(t, m.MAE)
	assert.Zero(t, m.RMSE)
	assert.Zero(t, m.MAPE)
	assert.Zero(t, m.SMAPE)
	assert.Zero(t, m.MASE)
	assert.Equal(t, 1.0, m.R2)
}

func TestScore(t *testing.T) {
	actual := []float64{10, 20, 0, 40}
	predicted := []float64{12, 18, 1, 36}
	history := []float64{1, 3, 5, 7}

	m := Score(actual, predicted, history)
	assert.InDelta(t, 2.25, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(25.0/4), m.RMSE, 1e-12)
	// Zero actual skipped: (0.2 + 0.1 + 0.1) / 3
	assert.InDelta(t, 100*0.4/3, m.MAPE, 1e-9)
	wantSMAPE := 100 * (2*2/22.0 + 2*2/38.0 + 2*1/1.0 + 2*4/76.0) / 4
	assert.InDelta(t, wantSMAPE, m.SMAPE, 1e-9)
	assert.InDelta(t, 2.25/2, m.MASE, 1e-12)
	assert.Less(t, m.R2, 1.0)
	assert.Greater(t, m.R2, 0.9)
}

func TestScoreConstantActual(t *testing.T) {
	m := Score([]float64{5, 5}, []float64{4, 6}, []float64{5, 5, 5})
	assert.Zero(t, m.R2, "constant actuals with errors score zero")
	assert.Zero(t, m.MASE, "flat history has no naive scale")
	assert.Equal(t, 1.0, m.MAE)
}

func TestEvaluate(t *testing.T) {
	train, test, err := Split(seq(20), 0.8)
	require.NoError(t, err)

	m, err := Evaluate(stubFitted{values: []float64{17, 18, 20, 20}, aic: 12.5}, train, test)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, m.MAE, 1e-12)
	assert.Equal(t, 12.5, m.AIC)
	assert.InDelta(t, 0.25, m.MASE, 1e-12)
}

func TestEvaluateErrors(t *testing.T) {
	train, test, err := Split(seq(20), 0.8)
	require.NoError(t, err)

	fitErr := forecast.NewFitError("stub", errors.New("boom"))
	_, err = Evaluate(stubFitted{err: fitErr}, train, test)
	assert.ErrorIs(t, err, forecast.ErrFitFailure)

	_, err = Evaluate(stubFitted{}, train, timeseries.New(nil))
	assert.ErrorIs(t, err, ErrEvaluationSkipped)
}

func TestEvaluateRejectsNonFiniteForecast(t *testing.T) {
	train, test, err := Split(seq(20), 0.8)
	require.NoError(t, err)

	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		_, err = Evaluate(stubFitted{values: []float64{17, v, 19, 20}}, train, test)
		assert.ErrorIs(t, err, forecast.ErrFitFailure)
		assert.ErrorIs(t, err, forecast.ErrNonFinite)
	}
}

func TestEvaluateSanitizesAIC(t *testing.T) {
	train, test, err := Split(seq(20), 0.8)
	require.NoError(t, err)

	m, err := Evaluate(stubFitted{values: []float64{17, 18, 19, 20}, aic: math.Inf(-1)}, train, test)
	require.NoError(t, err)
	assert.Zero(t, m.AIC)
}

func TestCompare(t *testing.T) {
	ranked := Compare(map[string]Metrics{
		"b": {MAE: 1, RMSE: 2, MAPE: 3},
		"a": {MAE: 1, RMSE: 2, MAPE: 3},
		"c": {MAE: 1, RMSE: 1.5, MAPE: 9},
		"d": {MAE: 0.5, RMSE: 4},
		"e": {MAE: 1, RMSE: 2, MAPE: 2},
	})

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Model
	}
	assert.Equal(t, []string{"d", "c", "e", "a", "b"}, names)
	assert.Empty(t, Compare(nil))
}
