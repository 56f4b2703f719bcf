// Command forecastd serves the forecasting API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/internal/api"
	"github.com/sartorproj/goforecast/internal/config"
	"github.com/sartorproj/goforecast/internal/logging"
	"github.com/sartorproj/goforecast/selector"
)

var version = "dev"

func main() {
	flags := pflag.NewFlagSet("forecastd", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to the configuration file")
	flags.Int("port", 8080, "HTTP listen port")
	flags.Duration("request-timeout", 30*time.Second, "per-request selection timeout")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", logging.FormatJSON, "log format: json or console")
	flags.String("profiles", "", "metric profile override file")
	flags.Float64("interval-width", forecast.DefaultIntervalWidth, "forecast interval coverage")
	flags.Int("max-periods", 365, "largest accepted forecast horizon")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configFile, flags); err != nil {
		fmt.Fprintf(os.Stderr, "forecastd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	profiles, err := cfg.Profiles()
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sel := selector.New(selector.Options{
		Profiles:      profiles,
		IntervalWidth: cfg.Forecast.IntervalWidth,
		Logger:        log.With().Str("component", "selector").Logger(),
	})
	handler := api.NewHandler(sel, api.NewMetrics("goforecast", reg), api.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxPeriods:     cfg.Forecast.MaxPeriods,
		Version:        version,
		Logger:         log.With().Str("component", "api").Logger(),
	})

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, reg),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("version", version).
			Dur("request_timeout", cfg.Server.RequestTimeout).
			Msg("forecastd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(srv, cfg, log)
}

func shutdown(srv *http.Server, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
