// Package config loads service configuration from a YAML file, a .env file,
// GOFORECAST_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOFORECAST"

// Config is the service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Forecast ForecastConfig `mapstructure:"forecast"`
}

// ServerConfig configures the HTTP listener and request deadlines.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release or test
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig sets the zerolog level and output format (json or console).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ForecastConfig holds the selection defaults applied to every request.
type ForecastConfig struct {
	ProfilesFile  string  `mapstructure:"profiles_file"` // overrides the embedded metric profiles
	IntervalWidth float64 `mapstructure:"interval_width"`
	MaxPeriods    int     `mapstructure:"max_periods"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"port":            "server.port",
	"request-timeout": "server.request_timeout",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"profiles":        "forecast.profiles_file",
	"interval-width":  "forecast.interval_width",
	"max-periods":     "forecast.max_periods",
}

// Load reads the configuration. file may be empty, in which case config.yaml
// is looked up in ./configs and the working directory. Flags that exist in
// flags and were set take precedence over everything else.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatJSON)

	v.SetDefault("forecast.profiles_file", "")
	v.SetDefault("forecast.interval_width", forecast.DefaultIntervalWidth)
	v.SetDefault("forecast.max_periods", 365)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("log.format must be %s or %s, got %q", logging.FormatJSON, logging.FormatConsole, c.Log.Format)
	}
	if w := c.Forecast.IntervalWidth; w <= 0 || w >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1), got %g", w)
	}
	if c.Forecast.MaxPeriods < 1 {
		return fmt.Errorf("forecast.max_periods must be positive, got %d", c.Forecast.MaxPeriods)
	}
	return nil
}

// Profiles returns the metric profiles, applying the override file if one is
// configured.
func (c *Config) Profiles() (forecast.Profiles, error) {
	if c.Forecast.ProfilesFile == "" {
		return forecast.DefaultProfiles(), nil
	}
	return forecast.LoadProfilesFile(c.Forecast.ProfilesFile)
}
