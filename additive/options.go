package additive

import (
	"github.com/rs/zerolog"

	"github.com/sartorproj/goforecast/forecast"
)

// Seasonality is one Fourier-series seasonal component.
type Seasonality struct {
	Name    string
	Period  float64 // days
	Order   int     // number of sine/cosine pairs
	MinSpan float64 // days of history required to include the component
}

// DefaultSeasonalities are added when the history spans at least MinSpan days.
var DefaultSeasonalities = []Seasonality{
	{Name: "weekly", Period: 7, Order: 3, MinSpan: 14},
	{Name: "monthly", Period: 30.5, Order: 5, MinSpan: 60},
	{Name: "quarterly", Period: 91.25, Order: 5, MinSpan: 180},
}

// Options configures the additive model.
type Options struct {
	Growth                forecast.Growth
	Changepoints          int     // Potential trend changepoints (default: 25)
	ChangepointRange      float64 // Share of history that may hold changepoints (default: 0.8)
	ChangepointPriorScale float64 // Trend flexibility (default: 0.05)
	SeasonalityPriorScale float64 // Seasonal amplitude prior (default: 10)
	IntervalWidth         float64 // Coverage of the forecast bounds (default: 0.95)
	Seasonalities         []Seasonality
	Logger                zerolog.Logger
}

// DefaultOptions returns options for an unbounded metric.
func DefaultOptions() Options {
	return Options{
		Growth:                forecast.GrowthLinear,
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		IntervalWidth:         forecast.DefaultIntervalWidth,
		Seasonalities:         DefaultSeasonalities,
		Logger:                zerolog.Nop(),
	}
}

// OptionsFrom derives model options from a run's selection config.
func OptionsFrom(sel forecast.SelectionConfig) Options {
	opts := DefaultOptions()
	a := sel.Additive
	if a.Growth != "" {
		opts.Growth = a.Growth
	}
	opts.Changepoints = a.Changepoints
	if a.ChangepointRange > 0 {
		opts.ChangepointRange = a.ChangepointRange
	}
	if a.ChangepointPriorScale > 0 {
		opts.ChangepointPriorScale = a.ChangepointPriorScale
	}
	if a.SeasonalityPriorScale > 0 {
		opts.SeasonalityPriorScale = a.SeasonalityPriorScale
	}
	if sel.IntervalWidth > 0 {
		opts.IntervalWidth = sel.IntervalWidth
	}
	opts.Logger = sel.Logger
	return opts
}

func (o *Options) setDefaults() {
	d := DefaultOptions()
	if o.Growth == "" {
		o.Growth = d.Growth
	}
	if o.Changepoints < 0 {
		o.Changepoints = 0
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		o.ChangepointRange = d.ChangepointRange
	}
	if o.ChangepointPriorScale <= 0 {
		o.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		o.IntervalWidth = d.IntervalWidth
	}
	if o.Seasonalities == nil {
		o.Seasonalities = d.Seasonalities
	}
}
