package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Day is the unit used for spans and seasonal periods.
const Day = 24 * time.Hour

// ErrNoObservations is returned when a series has no usable value.
var ErrNoObservations = errors.New("series has no observed values")

// epoch anchors series created without explicit timestamps so that
// repeated runs over the same values produce identical dates.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Point is a single raw observation. A NaN Value marks a missing observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series represents a time series with timestamps and values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
	// Missing is the number of values imputed while cleaning.
	Missing int
}

// New creates a new daily time series from values.
func New(values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range timestamps {
		timestamps[i] = epoch.Add(time.Duration(i) * Day)
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}
}

// NewWithTimestamps creates a time series with explicit timestamps.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// MaxMagnitude bounds observed values so that sums of squares stay finite.
const MaxMagnitude = 1e100

// FromPoints builds a clean series from raw points: it sorts by time,
// collapses duplicate timestamps (the last occurrence wins) and replaces
// missing values with the median of the observed ones. Values larger than
// MaxMagnitude are rejected.
func FromPoints(points []Point) (*Series, error) {
	if len(points) == 0 {
		return nil, ErrNoObservations
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	for i, p := range sorted {
		if p.Time.IsZero() {
			return nil, fmt.Errorf("point %d has no timestamp", i)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(p.Time) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	observed := make([]float64, 0, len(deduped))
	for _, p := range deduped {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		if math.Abs(p.Value) > MaxMagnitude {
			return nil, fmt.Errorf("value %g at %s exceeds magnitude limit %g",
				p.Value, p.Time.Format(time.RFC3339), MaxMagnitude)
		}
		observed = append(observed, p.Value)
	}
	if len(observed) == 0 {
		return nil, ErrNoObservations
	}
	fill := median(observed)

	s := &Series{
		Timestamps: make([]time.Time, len(deduped)),
		Values:     make([]float64, len(deduped)),
	}
	for i, p := range deduped {
		s.Timestamps[i] = p.Time
		v := p.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = fill
			s.Missing++
		}
		s.Values[i] = v
	}
	return s, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// Variance calculates the sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// Std calculates the standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Median returns the median value of the series.
func (s *Series) Median() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return median(s.Values)
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// First returns the first value, or NaN for an empty series.
func (s *Series) First() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[0]
}

// Last returns the last value, or NaN for an empty series.
func (s *Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// SpanDays returns the time between the first and last timestamp in days.
func (s *Series) SpanDays() float64 {
	if len(s.Timestamps) < 2 {
		return 0
	}
	return s.Timestamps[len(s.Timestamps)-1].Sub(s.Timestamps[0]).Hours() / 24
}

// Frequency returns the median spacing between consecutive timestamps.
// Series with fewer than two points are assumed to be daily.
func (s *Series) Frequency() time.Duration {
	if len(s.Timestamps) < 2 {
		return Day
	}
	steps := make([]float64, 0, len(s.Timestamps)-1)
	for i := 1; i < len(s.Timestamps); i++ {
		if d := s.Timestamps[i].Sub(s.Timestamps[i-1]); d > 0 {
			steps = append(steps, float64(d))
		}
	}
	if len(steps) == 0 {
		return Day
	}
	return time.Duration(median(steps))
}

// FutureTimestamps returns the next periods timestamps after the end of the
// series, spaced by its frequency.
func (s *Series) FutureTimestamps(periods int) []time.Time {
	if periods <= 0 {
		return nil
	}
	last := epoch
	if len(s.Timestamps) > 0 {
		last = s.Timestamps[len(s.Timestamps)-1]
	}
	step := s.Frequency()
	out := make([]time.Time, periods)
	for i := range out {
		out[i] = last.Add(time.Duration(i+1) * step)
	}
	return out
}

// Diff calculates the first difference of the series (d=1).
func (s *Series) Diff() *Series {
	return s.DiffN(1)
}

// DiffN calculates the lag-n difference of the series.
func (s *Series) DiffN(n int) *Series {
	if n <= 0 || len(s.Values) <= n {
		return &Series{Values: []float64{}}
	}

	result := make([]float64, len(s.Values)-n)
	for i := n; i < len(s.Values); i++ {
		result[i-n] = s.Values[i] - s.Values[i-n]
	}

	timestamps := make([]time.Time, len(result))
	if len(s.Timestamps) > n {
		copy(timestamps, s.Timestamps[n:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     result,
		Name:       s.Name + "_diff",
	}
}

// DropLeadingNaN returns the series without any NaN values at its start.
func (s *Series) DropLeadingNaN() *Series {
	start := 0
	for start < len(s.Values) && math.IsNaN(s.Values[start]) {
		start++
	}
	if start == 0 {
		return s
	}
	return s.Slice(start, len(s.Values))
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Values: []float64{}}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	timestamps := make([]time.Time, len(values))
	if len(s.Timestamps) >= end {
		copy(timestamps, s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	timestamps := make([]time.Time, len(s.Timestamps))
	copy(timestamps, s.Timestamps)

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
		Missing:    s.Missing,
	}
}
