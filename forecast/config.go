package forecast

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// Growth is the trend growth mode of the additive model.
type Growth string

// Growth modes.
const (
	GrowthLinear   Growth = "linear"
	GrowthLogistic Growth = "logistic"
)

// Defaults applied by Profiles.Config.
const (
	DefaultIntervalWidth = 0.95
	DefaultAlpha         = 0.05
)

// ARIMARange bounds the ARIMA grid search.
type ARIMARange struct {
	MaxP        int `yaml:"max_p" json:"max_p"`
	MaxD        int `yaml:"max_d" json:"max_d"`
	MaxQ        int `yaml:"max_q" json:"max_q"`
	OrderBudget int `yaml:"order_budget" json:"order_budget"` // upper bound on p+d+q
}

// AdditiveOptions tunes the additive seasonal-trend model.
type AdditiveOptions struct {
	Growth                Growth  `yaml:"growth" json:"growth"`
	Changepoints          int     `yaml:"changepoints" json:"changepoints"`
	ChangepointRange      float64 `yaml:"changepoint_range" json:"changepoint_range"`
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" json:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale" json:"seasonality_prior_scale"`
}

// Profile is the model configuration for one metric type.
type Profile struct {
	ARIMA    ARIMARange      `yaml:"arima"`
	Additive AdditiveOptions `yaml:"additive"`
}

func (p Profile) validate(mt MetricType) error {
	a := p.ARIMA
	if a.MaxP < 0 || a.MaxD < 0 || a.MaxQ < 0 || a.OrderBudget < 1 {
		return fmt.Errorf("profile %s: arima ranges must be non-negative with a positive budget", mt)
	}
	switch p.Additive.Growth {
	case GrowthLinear, GrowthLogistic:
	default:
		return fmt.Errorf("profile %s: unknown growth %q", mt, p.Additive.Growth)
	}
	if p.Additive.Changepoints < 0 {
		return fmt.Errorf("profile %s: changepoints must be non-negative", mt)
	}
	if r := p.Additive.ChangepointRange; r <= 0 || r > 1 {
		return fmt.Errorf("profile %s: changepoint_range must be in (0, 1]", mt)
	}
	if p.Additive.ChangepointPriorScale <= 0 || p.Additive.SeasonalityPriorScale <= 0 {
		return fmt.Errorf("profile %s: prior scales must be positive", mt)
	}
	return nil
}

// Profiles maps every metric type to its profile.
type Profiles map[MetricType]Profile

var builtinProfiles = mustParseProfiles(defaultProfilesYAML)

func mustParseProfiles(data []byte) Profiles {
	p, err := parseProfiles(bytes.NewReader(data), nil)
	if err != nil {
		panic(fmt.Sprintf("embedded profiles: %v", err))
	}
	return p
}

// DefaultProfiles returns a copy of the built-in profiles.
func DefaultProfiles() Profiles {
	out := make(Profiles, len(builtinProfiles))
	for k, v := range builtinProfiles {
		out[k] = v
	}
	return out
}

// LoadProfiles reads overrides from r on top of the built-in profiles.
// Fields missing from the document keep their built-in values.
func LoadProfiles(r io.Reader) (Profiles, error) {
	return parseProfiles(r, DefaultProfiles())
}

// LoadProfilesFile reads profile overrides from a YAML file.
func LoadProfilesFile(path string) (Profiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadProfiles(f)
}

func parseProfiles(r io.Reader, base Profiles) (Profiles, error) {
	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	out := make(Profiles, 3)
	for k, v := range base {
		out[k] = v
	}
	for name, node := range doc {
		mt, err := ParseMetricType(name)
		if err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		p := out[mt]
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("profile %s: %w", mt, err)
		}
		out[mt] = p
	}

	for _, mt := range []MetricType{MetricProbability, MetricLoad, MetricGeneral} {
		p, ok := out[mt]
		if !ok {
			return nil, fmt.Errorf("profiles: missing %s", mt)
		}
		if err := p.validate(mt); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SelectionConfig is built once per run and passed by value to every
// component of that run.
type SelectionConfig struct {
	MetricType    MetricType
	ARIMA         ARIMARange
	Additive      AdditiveOptions
	IntervalWidth float64 // Coverage of the forecast bounds (default: 0.95)
	Alpha         float64 // Significance level of the statistical tests (default: 0.05)
	Logger        zerolog.Logger
}

// Config builds the selection configuration for a metric type.
func (p Profiles) Config(mt MetricType) (SelectionConfig, error) {
	prof, ok := p[mt]
	if !ok {
		return SelectionConfig{}, InvalidInput("unknown metric type %q", mt)
	}
	return SelectionConfig{
		MetricType:    mt,
		ARIMA:         prof.ARIMA,
		Additive:      prof.Additive,
		IntervalWidth: DefaultIntervalWidth,
		Alpha:         DefaultAlpha,
		Logger:        zerolog.Nop(),
	}, nil
}

// Bounded reports whether outputs must stay inside [0, 1].
func (c SelectionConfig) Bounded() bool {
	return c.MetricType == MetricProbability
}

// ZScore returns the two-sided normal quantile for the interval width.
func (c SelectionConfig) ZScore() float64 {
	return ZScore(c.IntervalWidth)
}

// ZScore returns the two-sided standard normal quantile covering width.
// Widths outside (0, 1) use DefaultIntervalWidth.
func ZScore(width float64) float64 {
	if width <= 0 || width >= 1 {
		width = DefaultIntervalWidth
	}
	return distuv.UnitNormal.Quantile(0.5 + width/2)
}
