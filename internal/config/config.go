// Package config loads client settings from defaults, an optional YAML file
// and FANZONE_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petra184/mobile-app-sub002/internal/kv"
)

const (
	DefaultConfigDir  = ".fanzone"
	DefaultConfigFile = "config.yaml"
	envPrefix         = "FANZONE_"
)

type Config struct {
	APIURL       string        `yaml:"api_url"`
	RealtimeURL  string        `yaml:"realtime_url"`
	DeviceDBPath string        `yaml:"device_db_path"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	CartDebounce time.Duration `yaml:"cart_debounce"`
	ToastTTL     time.Duration `yaml:"toast_ttl"`
	ToastLimit   int           `yaml:"toast_limit"`
	Storage      kv.Config     `yaml:"storage"`
}

func Default() *Config {
	return &Config{
		APIURL:       "http://localhost:8090",
		RealtimeURL:  "ws://localhost:8090/ws",
		DeviceDBPath: "fanzone-device.db",
		LogLevel:     "info",
		LogFormat:    "text",
		CartDebounce: 500 * time.Millisecond,
		ToastTTL:     4 * time.Second,
		ToastLimit:   5,
		Storage:      kv.Config{Driver: kv.DriverSQLite},
	}
}

// DefaultPath returns ~/.fanzone/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("config: api_url is required")
	}
	if c.ToastLimit < 1 {
		return fmt.Errorf("config: toast_limit must be at least 1, got %d", c.ToastLimit)
	}
	if c.CartDebounce < 0 || c.ToastTTL < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	switch c.Storage.Driver {
	case kv.DriverSQLite, kv.DriverMemory, kv.DriverS3:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == kv.DriverS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("config: storage.s3.bucket is required for the s3 driver")
	}
	return nil
}

func applyEnv(c *Config) error {
	str := map[string]*string{
		"API_URL":        &c.APIURL,
		"REALTIME_URL":   &c.RealtimeURL,
		"DEVICE_DB":      &c.DeviceDBPath,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FORMAT":     &c.LogFormat,
		"STORAGE_SECRET": &c.Storage.Secret,
		"S3_ENDPOINT":    &c.Storage.S3.Endpoint,
		"S3_BUCKET":      &c.Storage.S3.Bucket,
		"S3_REGION":      &c.Storage.S3.Region,
		"S3_PREFIX":      &c.Storage.S3.Prefix,
		"S3_ACCESS_KEY":  &c.Storage.S3.AccessKey,
		"S3_SECRET_KEY":  &c.Storage.S3.SecretKey,
	}
	for name, dst := range str {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(envPrefix + "STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = kv.Driver(v)
	}

	durations := map[string]*time.Duration{
		"CART_DEBOUNCE": &c.CartDebounce,
		"TOAST_TTL":     &c.ToastTTL,
	}
	for name, dst := range durations {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v := os.Getenv(envPrefix + "TOAST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sTOAST_LIMIT: %w", envPrefix, err)
		}
		c.ToastLimit = n
	}
	return nil
}
