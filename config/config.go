package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	DefaultIntervalMS = 10000
	DefaultTimeoutMS  = 10000
	DefaultWordWrap   = 100

	envPrefix = "ASRT"
)

var (
	ErrMissingURL      = errors.New("cannot initialize: missing URL")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrInvalidInterval = errors.New("interval must be >= 0")
	ErrInvalidTimeout  = errors.New("timeout must be >= 0")
)

type Config struct {
	URL        string `mapstructure:"url"`
	IntervalMS int    `mapstructure:"interval"`
	TimeoutMS  int    `mapstructure:"timeout"`
	LogDir     string `mapstructure:"log_dir"`
	Listen     string `mapstructure:"listen"`
	Once       bool   `mapstructure:"once"`
	OutputDir  string `mapstructure:"output_dir"`
	WordWrap   int    `mapstructure:"word_wrap"`
	Debug      bool   `mapstructure:"debug"`
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// New returns a viper instance with defaults and ASRT_* environment lookup.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "")
	v.SetDefault("interval", DefaultIntervalMS)
	v.SetDefault("timeout", DefaultTimeoutMS)
	v.SetDefault("log_dir", "")
	v.SetDefault("listen", "")
	v.SetDefault("once", false)
	v.SetDefault("output_dir", "")
	v.SetDefault("word_wrap", DefaultWordWrap)
	v.SetDefault("debug", false)
}

// ReadFile merges a config file into v. With an empty path it looks for
// asrtdash.{yaml,toml,json,...} in ./config and the working directory and
// tolerates its absence.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("asrtdash")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are reported but never fatal to the caller.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	return godotenv.Load(files...)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error

	c.URL = strings.TrimSpace(c.URL)
	if c.URL == "" {
		err = multierr.Append(err, ErrMissingURL)
	} else if u, uerr := normalizeURL(c.URL); uerr != nil {
		err = multierr.Append(err, uerr)
	} else {
		c.URL = u
	}

	switch {
	case c.IntervalMS < 0:
		err = multierr.Append(err, fmt.Errorf("%w: got %d", ErrInvalidInterval, c.IntervalMS))
	case c.IntervalMS == 0:
		c.IntervalMS = DefaultIntervalMS
	}

	switch {
	case c.TimeoutMS < 0:
		err = multierr.Append(err, fmt.Errorf("%w: got %d", ErrInvalidTimeout, c.TimeoutMS))
	case c.TimeoutMS == 0:
		c.TimeoutMS = DefaultTimeoutMS
	}

	if c.WordWrap <= 0 {
		c.WordWrap = DefaultWordWrap
	}

	return err
}

func normalizeURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return u.String(), nil
}
