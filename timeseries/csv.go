package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string // Column name for timestamps (default: first of ds/date/timestamp)
	ValueColumn string // Column name for values (default: first of y/value)
	DateFormat  string // Preferred layout, tried before the built-in ones
	HasHeader   bool   // Whether CSV has header row (default: true)
	Delimiter   rune   // Field delimiter (default: ',')
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateFormat: "2006-01-02",
		HasHeader:  true,
		Delimiter:  ',',
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// missingTokens are cell values read as a missing observation.
var missingTokens = map[string]bool{"": true, "NA": true, "NaN": true, "nan": true, "null": true}

// LoadCSV loads raw points from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) ([]Point, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads raw points from an io.Reader. Missing values are
// kept as NaN so that FromPoints can count and impute them; rows whose
// timestamp cannot be parsed are rejected.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) ([]Point, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	dateIdx, valueIdx := 0, 1
	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, err
		}
		dateIdx, valueIdx = -1, -1
		for i, h := range header {
			h = strings.TrimSpace(strings.Trim(h, "\""))
			switch {
			case opts.ValueColumn != "" && h == opts.ValueColumn:
				valueIdx = i
			case opts.DateColumn != "" && h == opts.DateColumn:
				dateIdx = i
			case opts.ValueColumn == "" && valueIdx == -1 && (h == "y" || h == "value" || h == "Value"):
				valueIdx = i
			case opts.DateColumn == "" && dateIdx == -1 && (h == "ds" || h == "date" || h == "Date" || h == "timestamp"):
				dateIdx = i
			}
		}
		if dateIdx == -1 || valueIdx == -1 {
			return nil, errors.New("csv header must name a date and a value column")
		}
	}

	var points []Point
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		if dateIdx >= len(record) || valueIdx >= len(record) {
			return nil, fmt.Errorf("row %d: expected at least %d columns", row, max(dateIdx, valueIdx)+1)
		}

		ts, err := parseTime(strings.TrimSpace(strings.Trim(record[dateIdx], "\"")), opts.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		val := math.NaN()
		valStr := strings.TrimSpace(strings.Trim(record[valueIdx], "\""))
		if !missingTokens[valStr] {
			parsed, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value %q", row, valStr)
			}
			val = parsed
		}
		points = append(points, Point{Time: ts, Value: val})
	}

	if len(points) == 0 {
		return nil, errors.New("no data rows found in CSV")
	}
	return points, nil
}

// ParseTime parses a timestamp in any of the layouts accepted by the CSV
// loader.
func ParseTime(s string) (time.Time, error) {
	return parseTime(strings.TrimSpace(s), "")
}

func parseTime(s, preferred string) (time.Time, error) {
	layouts := dateLayouts
	if preferred != "" {
		layouts = append([]string{preferred}, dateLayouts...)
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
