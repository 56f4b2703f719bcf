// Package api exposes the selector over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/selector"
	"github.com/sartorproj/goforecast/timeseries"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SeriesPoint is one observation of a request. A null value is a missing
// observation.
type SeriesPoint struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// ForecastRequest is the body of POST /api/v1/forecast.
type ForecastRequest struct {
	Series              []SeriesPoint `json:"series"`
	MetricType          string        `json:"metric_type"`
	ForecastPeriods     int           `json:"forecast_periods"`
	ForceFullEvaluation bool          `json:"force_full_evaluation"`
}

// ForecastResponse is a successful selection.
type ForecastResponse struct {
	Status string `json:"status"`
	*selector.Result
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	RunID  string `json:"run_id"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Options configures a Handler.
type Options struct {
	RequestTimeout time.Duration
	MaxPeriods     int
	Version        string
	Logger         zerolog.Logger
}

// Handler serves forecast requests.
type Handler struct {
	selector *selector.Selector
	metrics  *Metrics
	opts     Options
}

// NewHandler returns a Handler.
func NewHandler(sel *selector.Selector, metrics *Metrics, opts Options) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Handler{selector: sel, metrics: metrics, opts: opts}
}

// NewRouter wires the handler, health and metrics endpoints.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(h.opts.Logger))

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/forecast", h.Forecast)
	}
	return router
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.opts.Version,
	})
}

// Forecast runs one selection.
func (h *Handler) Forecast(c *gin.Context) {
	runID := c.GetString(requestIDKey)

	var req ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, runID, "malformed_body", fmt.Errorf("%w: %v", forecast.ErrInvalidInput, err))
		return
	}
	if req.MetricType == "" {
		req.MetricType = string(forecast.MetricGeneral)
	}
	mt, err := forecast.ParseMetricType(req.MetricType)
	if err != nil {
		h.reject(c, runID, "metric_type", err)
		return
	}
	if h.opts.MaxPeriods > 0 && req.ForecastPeriods > h.opts.MaxPeriods {
		h.reject(c, runID, "forecast_periods",
			forecast.InvalidInput("forecast_periods must not exceed %d, got %d", h.opts.MaxPeriods, req.ForecastPeriods))
		return
	}
	points, err := req.points()
	if err != nil {
		h.reject(c, runID, "series", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := h.selector.Select(ctx, selector.Request{
		Points:              points,
		MetricType:          mt,
		Periods:             req.ForecastPeriods,
		ForceFullEvaluation: req.ForceFullEvaluation,
		RunID:               runID,
	})
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidInput) {
			h.reject(c, runID, "selection", err)
			return
		}
		h.opts.Logger.Error().Err(err).Str("run_id", runID).Msg("selection failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: StatusError, Error: "internal error", RunID: runID})
		return
	}

	h.metrics.RecordSelection(string(mt), res, time.Since(start))
	c.JSON(http.StatusOK, ForecastResponse{Status: StatusSuccess, Result: res})
}

func (h *Handler) reject(c *gin.Context, runID, reason string, err error) {
	h.metrics.RecordInvalid(reason)
	c.JSON(http.StatusBadRequest, ErrorResponse{Status: StatusError, Error: err.Error(), RunID: runID})
}

// points converts the request series, mapping null values to NaN.
func (r ForecastRequest) points() ([]timeseries.Point, error) {
	if len(r.Series) == 0 {
		return nil, forecast.InvalidInput("series is empty")
	}
	out := make([]timeseries.Point, len(r.Series))
	for i, sp := range r.Series {
		ts, err := timeseries.ParseTime(sp.Timestamp)
		if err != nil {
			return nil, forecast.InvalidInput("series[%d]: %v", i, err)
		}
		v := math.NaN()
		if sp.Value != nil {
			v = *sp.Value
		}
		out[i] = timeseries.Point{Time: ts, Value: v}
	}
	return out, nil
}
