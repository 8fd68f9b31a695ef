// Package config loads bucketview's configuration from defaults, an
// optional YAML file, a .env file and BUCKETVIEW_ environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tomasbasham/bucketview/internal/chart"
	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/logger"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

const envPrefix = "BUCKETVIEW"

// Config is the full application configuration.
type Config struct {
	AllowedExtensions []string         `mapstructure:"allowed_extensions"`
	TimeSeries        TimeSeriesConfig `mapstructure:"time_series"`
	MaxFiles          int              `mapstructure:"max_files"`
	PreviewRows       int              `mapstructure:"preview_rows"`
	Log               logger.Config    `mapstructure:"log"`
	Server            ServerConfig     `mapstructure:"server"`
}

// TimeSeriesConfig names the columns that select a time-series chart.
type TimeSeriesConfig struct {
	X      string   `mapstructure:"x"`
	Series []string `mapstructure:"series"`
}

type ServerConfig struct {
	Port       int           `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Options selects the files Load reads.
type Options struct {
	// ConfigFile is an explicit YAML file. Optional.
	ConfigFile string

	// EnvFile is loaded into the environment if it exists. Defaults to
	// ".env".
	EnvFile string
}

// Load reads the configuration and validates it.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("allowed_extensions", listing.DefaultExtensions)
	v.SetDefault("time_series.x", chart.DefaultTimeSeriesX)
	v.SetDefault("time_series.series", chart.DefaultTimeSeriesSeries)
	v.SetDefault("max_files", visualize.DefaultMaxFiles)
	v.SetDefault("preview_rows", visualize.DefaultPreviewRows)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_ttl", 30*time.Minute)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("allowed_extensions must not be empty"))
	}
	if c.TimeSeries.X == "" || len(c.TimeSeries.Series) == 0 {
		errs = append(errs, errors.New("time_series.x and time_series.series are required"))
	}
	if c.MaxFiles < 1 {
		errs = append(errs, fmt.Errorf("max_files must be at least 1 (got: %d)", c.MaxFiles))
	}
	if c.PreviewRows < 1 {
		errs = append(errs, fmt.Errorf("preview_rows must be at least 1 (got: %d)", c.PreviewRows))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Listing returns the lister configuration.
func (c *Config) Listing() listing.Config {
	return listing.Config{AllowedExtensions: c.AllowedExtensions}
}

// Chart returns the chart selector configuration.
func (c *Config) Chart() chart.Config {
	return chart.Config{TimeSeriesX: c.TimeSeries.X, TimeSeriesSeries: c.TimeSeries.Series}
}
