// Package config loads the motiontrack settings file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tcolgate/motiontrack/motion"
)

// Config holds everything the watch and replay commands need. Zero values
// are replaced by defaults in ApplyDefaults.
type Config struct {
	Device string `yaml:"device" toml:"device"`
	Format string `yaml:"format" toml:"format"`
	Size   string `yaml:"size" toml:"size"`
	Listen string `yaml:"listen" toml:"listen"`

	Sensitivity   int  `yaml:"sensitivity" toml:"sensitivity"`
	MinIntervalMS int  `yaml:"min_interval_ms" toml:"min_interval_ms"`
	HistorySize   int  `yaml:"history_size" toml:"history_size"`
	StartIdle     bool `yaml:"start_idle" toml:"start_idle"`

	// ScaleWidth downsizes frames wider than this before detection.
	ScaleWidth int     `yaml:"scale_width" toml:"scale_width"`
	Blur       float64 `yaml:"blur" toml:"blur"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
	Bell      bool   `yaml:"bell" toml:"bell"`
}

// Default returns the built in configuration.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields and clamps the sensitivity.
func (c *Config) ApplyDefaults() {
	if c.Device == "" {
		c.Device = "/dev/video0"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = motion.DefaultSensitivity
	}
	c.Sensitivity = motion.ClampSensitivity(c.Sensitivity)
	if c.MinIntervalMS <= 0 {
		c.MinIntervalMS = int(motion.DefaultMinInterval / time.Millisecond)
	}
	if c.HistorySize <= 0 {
		c.HistorySize = motion.DefaultHistorySize
	}
	if c.ScaleWidth < 0 {
		c.ScaleWidth = 0
	}
	if c.Blur < 0 {
		c.Blur = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "auto"
	}
}

// MinInterval returns MinIntervalMS as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file. Fields missing from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	c := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return nil, errors.Errorf("unknown config format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	c.ApplyDefaults()
	return c, nil
}
