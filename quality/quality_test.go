package quality

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/timeseries"
)

func TestAssessSinglePoint(t *testing.T) {
	a := Assess(timeseries.New([]float64{5}))

	assert.Equal(t, 1, a.Points)
	assert.Zero(t, a.SpanDays)
	assert.Zero(t, a.Variance)
	assert.False(t, a.SeasonalityDetected)
	assert.Equal(t, TrendIncreasing, a.Trend)
	assert.InDelta(t, 0.4, a.Score, 1e-12)
}

func TestAssessEmpty(t *testing.T) {
	a := Assess(timeseries.New(nil))
	assert.Zero(t, a.Points)
	assert.Zero(t, a.Score)
}

func TestAssessLinearTrend(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = float64(i) + 1
	}
	a := Assess(timeseries.New(values))

	assert.Equal(t, 60, a.Points)
	assert.Equal(t, 59.0, a.SpanDays)
	assert.Equal(t, TrendIncreasing, a.Trend)
	assert.Equal(t, 30.5, a.Mean)
	assert.InDelta(t, 305, a.Variance, 1e-9)
	assert.InDelta(t, math.Sqrt(305), a.Std, 1e-9)
	assert.Equal(t, 1.0, a.Score)
}

func TestAssessCounts(t *testing.T) {
	a := Assess(timeseries.New([]float64{3, 0, -1, 0, -5, 2}))
	assert.Equal(t, 2, a.Zeros)
	assert.Equal(t, 2, a.Negatives)
	assert.Equal(t, TrendDecreasing, a.Trend)
}

func TestAssessConstant(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = 42
	}
	a := Assess(timeseries.New(values))

	assert.Zero(t, a.Variance)
	assert.False(t, a.SeasonalityDetected)
	assert.InDelta(t, 0.4, a.Score, 1e-12)
	assert.Less(t, a.Score, 0.7)
}

func TestAssessMissingPenalty(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, 30)
	for i := range points {
		points[i] = timeseries.Point{Time: base.AddDate(0, 0, i), Value: float64(i % 5)}
		if i%6 == 0 {
			points[i].Value = math.NaN()
		}
	}
	series, err := timeseries.FromPoints(points)
	require.NoError(t, err)

	a := Assess(series)
	assert.Equal(t, 5, a.Missing)
	assert.InDelta(t, 0.8, a.Score, 1e-12)
}

func TestAssessScoreClamped(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []timeseries.Point{
		{Time: base, Value: 1},
		{Time: base.AddDate(0, 0, 1), Value: math.NaN()},
		{Time: base.AddDate(0, 0, 2), Value: 1},
	}
	series, err := timeseries.FromPoints(points)
	require.NoError(t, err)

	// -0.2 missing, -0.3 short, -0.3 zero variance
	assert.InDelta(t, 0.2, Assess(series).Score, 1e-12)
}

func TestSeasonalityWeekly(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = 10 + 5*math.Sin(2*math.Pi*float64(i)/7)
	}
	assert.True(t, Assess(timeseries.New(values)).SeasonalityDetected)
}

func TestSeasonalityMonthlyNeedsPoints(t *testing.T) {
	// A period-30 pattern on 30 points cannot use lag 30.
	short := make([]float64, 30)
	for i := range short {
		short[i] = math.Sin(2 * math.Pi * float64(i) / 30)
	}
	assert.False(t, Assess(timeseries.New(short)).SeasonalityDetected)

	long := make([]float64, 120)
	for i := range long {
		long[i] = math.Sin(2 * math.Pi * float64(i) / 30)
	}
	assert.True(t, Assess(timeseries.New(long)).SeasonalityDetected)
}

func TestNoSeasonality(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := make([]float64, 200)
	for i := range values {
		values[i] = 20 + rng.NormFloat64()
	}
	assert.False(t, Assess(timeseries.New(values)).SeasonalityDetected)
}
