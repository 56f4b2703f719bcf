package timeseries

import (
	"math"
	"strings"
	"testing"
)

func TestLoadCSVFromReader(t *testing.T) {
	csvData := `ds,y
2020-01-01,100
2020-01-02,101
2020-01-03,102
2020-01-04,103
2020-01-05,104`

	points, err := LoadCSVFromReader(strings.NewReader(csvData), DefaultCSVOptions())
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	if len(points) != 5 {
		t.Errorf("Expected 5 observations, got %d", len(points))
	}

	expected := []float64{100, 101, 102, 103, 104}
	for i, v := range expected {
		if points[i].Value != v {
			t.Errorf("Value at index %d: expected %f, got %f", i, v, points[i].Value)
		}
	}
	if points[0].Time.Year() != 2020 || points[4].Time.Day() != 5 {
		t.Errorf("Unexpected timestamps: %v .. %v", points[0].Time, points[4].Time)
	}
}

func TestLoadCSVMissingValues(t *testing.T) {
	csvData := `date,value
2020-01-01,1
2020-01-02,
2020-01-03,NA
2020-01-04,4`

	points, err := LoadCSVFromReader(strings.NewReader(csvData), nil)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(points))
	}
	if !math.IsNaN(points[1].Value) || !math.IsNaN(points[2].Value) {
		t.Error("Expected missing cells to load as NaN")
	}

	s, err := FromPoints(points)
	if err != nil {
		t.Fatal(err)
	}
	if s.Missing != 2 {
		t.Errorf("Expected 2 imputed values, got %d", s.Missing)
	}
}

func TestLoadCSVCustomColumns(t *testing.T) {
	csvData := `when;region;load
2020-01-01T00:00:00Z;eu;5
2020-01-01T01:00:00Z;eu;6`

	opts := DefaultCSVOptions()
	opts.DateColumn = "when"
	opts.ValueColumn = "load"
	opts.Delimiter = ';'

	points, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if len(points) != 2 || points[1].Value != 6 {
		t.Errorf("Unexpected points: %+v", points)
	}
}

func TestLoadCSVNoHeader(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.HasHeader = false

	points, err := LoadCSVFromReader(strings.NewReader("2020-01-01,7\n2020-01-02,8\n"), opts)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if len(points) != 2 || points[0].Value != 7 {
		t.Errorf("Unexpected points: %+v", points)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "ds,y\n"},
		{"bad date", "ds,y\nyesterday,1\n"},
		{"bad value", "ds,y\n2020-01-01,abc\n"},
		{"no value column", "ds,other\n2020-01-01,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCSVFromReader(strings.NewReader(tt.data), nil); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-03-05", "2024-03-05T00:00:00Z", "2024/03/05", " 2024-03-05 00:00:00 "} {
		ts, err := ParseTime(s)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", s, err)
		}
		if ts.Year() != 2024 || ts.Month() != 3 || ts.Day() != 5 {
			t.Errorf("ParseTime(%q) = %v", s, ts)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("Expected error for unparseable timestamp")
	}
}
