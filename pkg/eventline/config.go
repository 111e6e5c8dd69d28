package eventline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RetryConfig is the file-level shape of a retry configuration. Interval
// fields are milliseconds. Any subset may be set; zero fields fall back to
// the DefaultRetry values.
type RetryConfig struct {
	InitialInterval    int64   `yaml:"initialInterval"`
	IntervalMultiplier float64 `yaml:"intervalMultiplier"`
	MaxInterval        int64   `yaml:"maxInterval"`
	MaxAttempts        int     `yaml:"maxAttempts"`
	MaxElapsedTime     int64   `yaml:"maxElapsedTime"`
}

// ToRetry converts the file shape into a GenericRetry.
func (c RetryConfig) ToRetry() GenericRetry {
	return GenericRetry{
		InitialInterval: time.Duration(c.InitialInterval) * time.Millisecond,
		Multiplier:      c.IntervalMultiplier,
		MaxInterval:     time.Duration(c.MaxInterval) * time.Millisecond,
		MaxAttempts:     c.MaxAttempts,
		MaxElapsedTime:  time.Duration(c.MaxElapsedTime) * time.Millisecond,
	}
}

// Config is the operator-level configuration file.
type Config struct {
	// Namespace restricts all controllers to one namespace. Empty watches
	// everywhere.
	Namespace string `yaml:"namespace"`

	// GenerationAware is the default for controllers that do not set
	// their own. Nil means enabled.
	GenerationAware *bool `yaml:"generationAware"`

	// Retry is the default retry configuration.
	Retry RetryConfig `yaml:"retry"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ControllerConfiguration derives a registration for crdName from the
// file-level defaults.
func (c *Config) ControllerConfiguration(crdName string) ControllerConfiguration {
	cfg := ControllerConfiguration{
		CRDName:         crdName,
		Namespace:       c.Namespace,
		GenerationAware: c.GenerationAware,
	}
	if c.Retry != (RetryConfig{}) {
		retry := c.Retry.ToRetry()
		cfg.Retry = &retry
	}
	return cfg
}
