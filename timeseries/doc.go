// Package timeseries provides time series data structures and utilities.
//
// This package includes the Series type for representing time series data,
// along with functions for cleaning raw observations and loading them from CSV.
//
// # Creating a Series
//
// Create a daily series from a slice:
//
//	values := []float64{100, 102, 105, 103, 108, 110}
//	series := timeseries.New(values)
//
// Build a cleaned series from raw points. Points are sorted by time,
// duplicate timestamps are collapsed and missing values (NaN) are replaced
// with the median of the observed values:
//
//	series, err := timeseries.FromPoints([]timeseries.Point{
//	    {Time: day1, Value: 10},
//	    {Time: day2, Value: math.NaN()},
//	    {Time: day3, Value: 12},
//	})
//	fmt.Println(series.Missing) // 1
//
// # Loading from CSV
//
//	points, err := timeseries.LoadCSV("data.csv", nil)
//	series, err := timeseries.FromPoints(points)
//
// Empty cells and the tokens NA, NaN and null are read as missing values.
//
// # Calendar helpers
//
//	span := series.SpanDays()              // days between first and last point
//	step := series.Frequency()             // median spacing between points
//	next := series.FutureTimestamps(7)     // the next 7 timestamps
//
// # Transformations
//
//	diff := series.Diff()        // First difference
//	subset := series.Slice(10, 50)
//	clone := series.Copy()
package timeseries
