package forecast

import (
	"math"

	"github.com/sartorproj/goforecast/timeseries"
)

// LinearTrend extrapolates the straight line through the first and last
// observation. A single observation is carried forward. Bounds widen with
// the square root of the horizon using the spread of the series around that
// line.
func LinearTrend(series *timeseries.Series, periods int, z float64) Table {
	n := series.Len()
	if n == 0 || periods <= 0 {
		return Table{}
	}

	first, last := series.First(), series.Last()
	slope := 0.0
	if n > 1 {
		slope = (last - first) / float64(n-1)
	}

	sse := 0.0
	for i, v := range series.Values {
		r := v - (first + slope*float64(i))
		sse += r * r
	}
	sigma := 0.0
	if n > 2 {
		sigma = math.Sqrt(sse / float64(n-2))
	}

	values := make([]float64, periods)
	lower := make([]float64, periods)
	upper := make([]float64, periods)
	for h := 1; h <= periods; h++ {
		v := last + slope*float64(h)
		w := z * sigma * math.Sqrt(float64(h))
		values[h-1] = v
		lower[h-1] = v - w
		upper[h-1] = v + w
	}
	return NewTable(series, values, lower, upper)
}
