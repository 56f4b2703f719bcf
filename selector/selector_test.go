package selector

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/timeseries"
)

var start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func points(n int, f func(i int) float64) []timeseries.Point {
	pts := make([]timeseries.Point, n)
	for i := range pts {
		pts[i] = timeseries.Point{Time: start.Add(time.Duration(i) * timeseries.Day), Value: f(i)}
	}
	return pts
}

func line(i int) float64 { return 10 + 2*float64(i) }

// stubEstimator fits series up to maxLen points (any length when zero).
// onTooLong runs before a fit on a longer series is refused.
type stubEstimator struct {
	name      string
	maxLen    int
	err       error
	value     float64
	step      float64
	onTooLong func()
}

func (e stubEstimator) Name() string { return e.name }

func (e stubEstimator) Fit(ctx context.Context, s *timeseries.Series) (forecast.Fitted, error) {
	if e.err != nil {
		return nil, forecast.NewFitError(e.name, e.err)
	}
	if e.maxLen > 0 && s.Len() > e.maxLen {
		if e.onTooLong != nil {
			e.onTooLong()
		}
		return nil, forecast.NewFitError(e.name, errors.New("series too long"))
	}
	return stubFitted{stubEstimator: e, series: s}, nil
}

type stubFitted struct {
	stubEstimator
	series *timeseries.Series
}

func (f stubFitted) AIC() float64           { return 0 }
func (f stubFitted) Params() map[string]any { return map[string]any{"value": f.value} }

func (f stubFitted) Forecast(periods int) (forecast.Table, error) {
	values := make([]float64, periods)
	for i := range values {
		values[i] = f.value + f.step*float64(i)
	}
	return forecast.NewTable(f.series, values, values, values), nil
}

func stubs(est ...forecast.Estimator) EstimatorsFunc {
	return func(forecast.SelectionConfig) []forecast.Estimator { return est }
}

func TestInsufficientData(t *testing.T) {
	s := New(Options{})
	res, err := s.Select(context.Background(), Request{
		Points:     points(5, line),
		MetricType: forecast.MetricGeneral,
		Periods:    3,
	})
	require.NoError(t, err)

	assert.Equal(t, StateInsufficientData, res.State)
	assert.Equal(t, forecast.ModelNaive, res.ModelUsed)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Nil(t, res.Metrics)
	assert.Contains(t, res.Recommendations, RecommendMoreData)
	require.Len(t, res.Forecast, 3)
	assert.InDeltaSlice(t, []float64{20, 22, 24}, res.Forecast.Values(), 1e-9)
	assert.Equal(t, start.Add(5*timeseries.Day), res.Forecast[0].Date)
	assert.NotEmpty(t, res.RunID)
}

func TestInsufficientDataSinglePoint(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     points(1, func(int) float64 { return 7 }),
		MetricType: forecast.MetricGeneral,
		Periods:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, StateInsufficientData, res.State)
	assert.Contains(t, res.Reason, "carried forward")
	assert.Equal(t, []float64{7, 7}, res.Forecast.Values())
}

func TestFullEvaluationLinearTrend(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     points(60, line),
		MetricType: forecast.MetricGeneral,
		Periods:    7,
	})
	require.NoError(t, err)

	assert.Equal(t, StateFullEvaluation, res.State)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.ElementsMatch(t, []string{forecast.ModelAdditive, forecast.ModelARIMA}, res.Attempted)
	require.NotNil(t, res.Metrics)
	assert.Less(t, res.Metrics.MAE, 0.5)
	require.NotEmpty(t, res.Ranking)
	assert.Equal(t, res.ModelUsed, res.Ranking[0].Model)
	assert.NotContains(t, res.Recommendations, RecommendMoreData)

	require.Len(t, res.Forecast, 7)
	for i := 1; i < len(res.Forecast); i++ {
		assert.Greater(t, res.Forecast[i].Value, res.Forecast[i-1].Value)
	}
	for _, row := range res.Forecast {
		assert.LessOrEqual(t, row.Lower, row.Value)
		assert.GreaterOrEqual(t, row.Upper, row.Value)
	}
	assert.InDelta(t, line(60), res.Forecast[0].Value, 1)
}

func TestQuickSelectionConstant(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     points(15, func(int) float64 { return 4 }),
		MetricType: forecast.MetricGeneral,
		Periods:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateQuickSelection, res.State)
	assert.Equal(t, forecast.ModelAdditive, res.ModelUsed)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Nil(t, res.Metrics)
	assert.Contains(t, res.Recommendations, RecommendCheckCollection)
	assert.Contains(t, res.Recommendations, RecommendMoreData)
	require.Len(t, res.Forecast, 5)
	for _, row := range res.Forecast {
		assert.InDelta(t, 4, row.Value, 1e-3)
	}
}

func TestQuickSelectionFallsThroughToSecondCandidate(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "first", err: errors.New("boom")},
		stubEstimator{name: "second", value: 3},
	)})
	res, err := s.Select(context.Background(), Request{
		Points:     points(20, line),
		MetricType: forecast.MetricGeneral,
		Periods:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, StateQuickSelection, res.State)
	assert.Equal(t, "second", res.ModelUsed)
	assert.Equal(t, []string{"first", "second"}, res.Attempted)
}

func TestForcedFullEvaluationOnTwelvePoints(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:              points(12, line),
		MetricType:          forecast.MetricGeneral,
		Periods:             3,
		ForceFullEvaluation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFullEvaluation, res.State)
	require.NotNil(t, res.Metrics)
	assert.Contains(t, res.Reason, "2 most recent points")
	assert.Len(t, res.Forecast, 3)
}

func TestForcedFullEvaluationDegradesToQuick(t *testing.T) {
	s := New(Options{Estimators: stubs(stubEstimator{name: "only", value: 1})})
	res, err := s.Select(context.Background(), Request{
		Points:              points(11, line),
		MetricType:          forecast.MetricGeneral,
		Periods:             3,
		ForceFullEvaluation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateQuickSelection, res.State)
	assert.Contains(t, res.Reason, "evaluation skipped")
}

func TestFullEvaluationRanksCandidates(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "far", value: 30},
		stubEstimator{name: "close", value: 10},
	)})
	res, err := s.Select(context.Background(), Request{
		Points:     points(40, func(int) float64 { return 10 }),
		MetricType: forecast.MetricGeneral,
		Periods:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFullEvaluation, res.State)
	assert.Equal(t, "close", res.ModelUsed)
	require.Len(t, res.Ranking, 2)
	assert.Equal(t, "far", res.Ranking[1].Model)
	assert.Equal(t, 0.0, res.Metrics.MAE)
	assert.Contains(t, res.Reason, "far MAE 20")
}

func TestFullEvaluationExcludesNonFiniteCandidate(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "good", value: 11},
		stubEstimator{name: "broken", value: math.NaN()},
	)})
	res, err := s.Select(context.Background(), Request{
		Points:     points(40, func(int) float64 { return 10 }),
		MetricType: forecast.MetricGeneral,
		Periods:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFullEvaluation, res.State)
	assert.Equal(t, "good", res.ModelUsed)
	require.Len(t, res.Ranking, 1)
	assert.Equal(t, "good", res.Ranking[0].Model)
	assert.InDelta(t, 1.0, res.Metrics.MAE, 1e-9)
	assert.Equal(t, []string{"good", "broken"}, res.Attempted)

	_, err = json.Marshal(res)
	assert.NoError(t, err)
}

func TestQuickSelectionSkipsNonFiniteCandidate(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "broken", value: math.Inf(1)},
		stubEstimator{name: "good", value: 10},
	)})
	res, err := s.Select(context.Background(), Request{
		Points:     points(15, func(int) float64 { return 10 }),
		MetricType: forecast.MetricGeneral,
		Periods:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, StateQuickSelection, res.State)
	assert.Equal(t, "good", res.ModelUsed)
	assert.True(t, res.Forecast.Finite())
}

func TestFullEvaluationExcludesFailedCandidate(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "broken", err: errors.New("singular")},
		stubEstimator{name: "working", value: 10},
	)})
	res, err := s.Select(context.Background(), Request{
		Points:     points(40, func(int) float64 { return 10 }),
		MetricType: forecast.MetricGeneral,
		Periods:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, "working", res.ModelUsed)
	assert.Len(t, res.Ranking, 1)
	assert.Equal(t, []string{"broken", "working"}, res.Attempted)
}

func TestRefitFailureUsesTrainingFitTail(t *testing.T) {
	// 40 points split 32/8; the refit on all 40 fails.
	s := New(Options{Estimators: stubs(stubEstimator{name: "short", maxLen: 32, step: 1})})
	pts := points(40, func(i int) float64 { return float64(i) })
	res, err := s.Select(context.Background(), Request{
		Points:     pts,
		MetricType: forecast.MetricGeneral,
		Periods:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateFullEvaluation, res.State)
	assert.Equal(t, []float64{8, 9, 10, 11, 12}, res.Forecast.Values())
	assert.Equal(t, pts[39].Time.Add(timeseries.Day), res.Forecast[0].Date)
}

func TestAllCandidatesFailFallsBack(t *testing.T) {
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "a", err: errors.New("first failure")},
		stubEstimator{name: "b", err: errors.New("second failure")},
	)})
	for _, n := range []int{15, 40} {
		res, err := s.Select(context.Background(), Request{
			Points:     points(n, line),
			MetricType: forecast.MetricGeneral,
			Periods:    4,
		})
		require.NoError(t, err)
		assert.Equal(t, StateFallback, res.State)
		assert.Equal(t, forecast.ModelFallback, res.ModelUsed)
		assert.Equal(t, ConfidenceVeryLow, res.Confidence)
		assert.Nil(t, res.Metrics)
		assert.Contains(t, res.Reason, "first failure")
		assert.Contains(t, res.Reason, "second failure")
		require.Len(t, res.Forecast, 4)
		assert.InDelta(t, line(n), res.Forecast[0].Value, 1e-9)
	}
}

func TestFallbackAfterRankingClearsRanking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The split fits succeed and are ranked; the refit on all 40 cancels.
	s := New(Options{Estimators: stubs(
		stubEstimator{name: "short", maxLen: 32, value: 10, onTooLong: cancel},
	)})
	res, err := s.Select(ctx, Request{
		Points:     points(40, func(int) float64 { return 10 }),
		MetricType: forecast.MetricGeneral,
		Periods:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFallback, res.State)
	assert.Nil(t, res.Ranking)
	assert.Nil(t, res.Metrics)
	assert.Contains(t, res.Reason, context.Canceled.Error())
	assert.Len(t, res.Forecast, 3)
}

func TestProbabilityBounds(t *testing.T) {
	for _, n := range []int{5, 20, 40} {
		res, err := New(Options{}).Select(context.Background(), Request{
			Points:     points(n, func(i int) float64 { return math.Min(0.5+0.03*float64(i), 0.99) }),
			MetricType: forecast.MetricProbability,
			Periods:    30,
		})
		require.NoError(t, err)
		require.Len(t, res.Forecast, 30)
		for _, row := range res.Forecast {
			for _, v := range []float64{row.Value, row.Lower, row.Upper} {
				assert.GreaterOrEqual(t, v, 0.0, "n=%d state=%s", n, res.State)
				assert.LessOrEqual(t, v, 1.0, "n=%d state=%s", n, res.State)
			}
		}
	}
}

func TestProbabilityFallbackIsClamped(t *testing.T) {
	s := New(Options{Estimators: stubs(stubEstimator{name: "a", err: errors.New("nope")})})
	res, err := s.Select(context.Background(), Request{
		Points:     points(15, func(i int) float64 { return 0.1 * float64(i) / 1.4 }),
		MetricType: forecast.MetricProbability,
		Periods:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFallback, res.State)
	for _, row := range res.Forecast {
		assert.LessOrEqual(t, row.Upper, 1.0)
		assert.GreaterOrEqual(t, row.Lower, 0.0)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	req := Request{
		Points:     points(45, func(i int) float64 { return 20 + 5*math.Sin(2*math.Pi*float64(i)/7) + 0.3*float64(i) }),
		MetricType: forecast.MetricLoad,
		Periods:    10,
		RunID:      "fixed",
	}
	s := New(Options{})
	a, err := s.Select(context.Background(), req)
	require.NoError(t, err)
	b, err := s.Select(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.ModelUsed, b.ModelUsed)
	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Forecast, b.Forecast)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, "fixed", a.RunID)
}

func TestConcurrentSelections(t *testing.T) {
	s := New(Options{})
	series := [][]timeseries.Point{
		points(5, line),
		points(15, line),
		points(35, line),
		points(50, func(i int) float64 { return 100 + 10*math.Sin(float64(i)) }),
	}
	results := make([]*Result, len(series))

	var g errgroup.Group
	for i, pts := range series {
		g.Go(func() error {
			res, err := s.Select(context.Background(), Request{
				Points:     pts,
				MetricType: forecast.MetricGeneral,
				Periods:    6,
			})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, res := range results {
		require.NotNil(t, res, "series %d", i)
		assert.Len(t, res.Forecast, 6)
		assert.Equal(t, len(series[i]), res.Quality.Points)
	}
	assert.Equal(t, StateInsufficientData, results[0].State)
}

func TestCancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, n := range []int{15, 60} {
		res, err := New(Options{}).Select(ctx, Request{
			Points:     points(n, line),
			MetricType: forecast.MetricGeneral,
			Periods:    3,
		})
		require.NoError(t, err)
		assert.Equal(t, StateFallback, res.State)
		assert.Contains(t, res.Reason, context.Canceled.Error())
		assert.Len(t, res.Forecast, 3)
	}
}

func TestTimeoutFallsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	res, err := New(Options{}).Select(ctx, Request{
		Points:     points(60, line),
		MetricType: forecast.MetricLoad,
		Periods:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFallback, res.State)
	assert.Contains(t, res.Reason, context.DeadlineExceeded.Error())
}

func TestMissingValuesAreImputed(t *testing.T) {
	pts := points(40, line)
	pts[10].Value = math.NaN()
	pts[20].Value = math.NaN()

	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     pts,
		MetricType: forecast.MetricGeneral,
		Periods:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Quality.Missing)
	assert.NotEqual(t, StateInsufficientData, res.State)
	for _, v := range res.Forecast.Values() {
		assert.False(t, math.IsNaN(v))
	}
}

func TestInvalidInput(t *testing.T) {
	s := New(Options{})
	zeroTime := points(12, line)
	zeroTime[3].Time = time.Time{}
	huge := points(5, func(i int) float64 { return math.Copysign(1e308, float64(i%2)-0.5) })

	tests := []struct {
		name string
		req  Request
	}{
		{"empty series", Request{MetricType: forecast.MetricGeneral, Periods: 3}},
		{"all missing", Request{Points: points(3, func(int) float64 { return math.NaN() }), MetricType: forecast.MetricGeneral, Periods: 3}},
		{"zero periods", Request{Points: points(12, line), MetricType: forecast.MetricGeneral}},
		{"negative periods", Request{Points: points(12, line), MetricType: forecast.MetricGeneral, Periods: -1}},
		{"unknown metric", Request{Points: points(12, line), MetricType: "latency", Periods: 3}},
		{"zero timestamp", Request{Points: zeroTime, MetricType: forecast.MetricGeneral, Periods: 3}},
		{"overflowing magnitude", Request{Points: huge, MetricType: forecast.MetricGeneral, Periods: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Select(context.Background(), tt.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, forecast.ErrInvalidInput)
		})
	}
}

func TestScenarioFivePoints(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     points(5, func(i int) float64 { return 3 + float64(i%2) }),
		MetricType: forecast.MetricGeneral,
		Periods:    7,
	})
	require.NoError(t, err)
	assert.Equal(t, StateInsufficientData, res.State)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, forecast.ModelNaive, res.ModelUsed)
	assert.Len(t, res.Forecast, 7)
	assert.Empty(t, res.Attempted)
}

func TestScenarioLoadLinearTrend(t *testing.T) {
	res, err := New(Options{}).Select(context.Background(), Request{
		Points:     points(60, func(i int) float64 { return 100 + float64(i) }),
		MetricType: forecast.MetricLoad,
		Periods:    14,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFullEvaluation, res.State)
	require.NotNil(t, res.Metrics)
	assert.Less(t, res.Metrics.MAE, 0.5)
	assert.Equal(t, "increasing", res.Quality.Trend)
	assert.Len(t, res.Forecast, 14)
}
