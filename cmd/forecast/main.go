// Command forecast runs model selection over CSV files and prints the
// results as JSON.
//
//	forecast --metric load --periods 14 data/requests.csv data/errors.csv
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/internal/logging"
	"github.com/sartorproj/goforecast/selector"
	"github.com/sartorproj/goforecast/timeseries"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	File  string           `json:"file"`
	Error string           `json:"error,omitempty"`
	Run   *selector.Result `json:"result,omitempty"`
}

// Output holds all results.
type Output struct {
	Results []FileResult `json:"results"`
}

type options struct {
	metric      string
	periods     int
	full        bool
	timeout     time.Duration
	profiles    string
	width       float64
	dateColumn  string
	valueColumn string
	output      string
	parallel    int
	summary     bool
	logLevel    string
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("forecast", pflag.ExitOnError)
	flags.StringVarP(&opts.metric, "metric", "m", string(forecast.MetricGeneral), "metric type: probability, load or general")
	flags.IntVarP(&opts.periods, "periods", "p", 30, "forecast horizon")
	flags.BoolVar(&opts.full, "full", false, "force full evaluation")
	flags.DurationVar(&opts.timeout, "timeout", time.Minute, "per-file selection timeout")
	flags.StringVar(&opts.profiles, "profiles", "", "metric profile override file")
	flags.Float64Var(&opts.width, "interval-width", forecast.DefaultIntervalWidth, "forecast interval coverage")
	flags.StringVar(&opts.dateColumn, "date-column", "", "CSV date column (default: ds, date or timestamp)")
	flags.StringVar(&opts.valueColumn, "value-column", "", "CSV value column (default: y or value)")
	flags.StringVarP(&opts.output, "output", "o", "", "write JSON to this file instead of stdout")
	flags.IntVarP(&opts.parallel, "parallel", "j", 4, "files processed concurrently")
	flags.BoolVar(&opts.summary, "summary", false, "print a table summary to stderr")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: forecast [flags] file.csv...\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}
	if err := run(context.Background(), opts, flags.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "forecast: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, files []string) error {
	log, err := logging.New(opts.logLevel, logging.FormatConsole, os.Stderr)
	if err != nil {
		return err
	}
	mt, err := forecast.ParseMetricType(opts.metric)
	if err != nil {
		return err
	}
	profiles := forecast.DefaultProfiles()
	if opts.profiles != "" {
		if profiles, err = forecast.LoadProfilesFile(opts.profiles); err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
	}

	sel := selector.New(selector.Options{
		Profiles:      profiles,
		IntervalWidth: opts.width,
		Logger:        log,
	})

	output := Output{Results: make([]FileResult, len(files))}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))
	for i, file := range files {
		g.Go(func() error {
			output.Results[i] = analyze(ctx, sel, opts, mt, file, log)
			return nil
		})
	}
	_ = g.Wait()

	if opts.summary {
		printSummary(os.Stderr, output)
	}
	return export(output, opts.output)
}

// analyze runs the selector on one file. Errors are reported per file so
// that one bad input does not hide the others.
func analyze(ctx context.Context, sel *selector.Selector, opts options, mt forecast.MetricType, file string, log zerolog.Logger) FileResult {
	res := FileResult{File: file}

	csvOpts := timeseries.DefaultCSVOptions()
	csvOpts.DateColumn = opts.dateColumn
	csvOpts.ValueColumn = opts.valueColumn
	points, err := timeseries.LoadCSV(file, csvOpts)
	if err != nil {
		res.Error = err.Error()
		log.Warn().Err(err).Str("file", file).Msg("could not load file")
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	out, err := sel.Select(ctx, selector.Request{
		Points:              points,
		MetricType:          mt,
		Periods:             opts.periods,
		ForceFullEvaluation: opts.full,
		RunID:               strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Run = out
	return res
}

func export(output Output, path string) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(w io.Writer, output Output) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%-24s %-18s %-24s %-9s %10s\n", "File", "State", "Model", "Conf", "MAE")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range output.Results {
		name := filepath.Base(r.File)
		if r.Run == nil {
			fmt.Fprintf(w, "%-24s error: %s\n", name, r.Error)
			continue
		}
		mae := "-"
		if r.Run.Metrics != nil {
			mae = fmt.Sprintf("%.4f", r.Run.Metrics.MAE)
		}
		fmt.Fprintf(w, "%-24s %-18s %-24s %-9s %10s\n",
			name, r.Run.State, r.Run.ModelUsed, r.Run.Confidence, mae)
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}
