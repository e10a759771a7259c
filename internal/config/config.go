package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = "3000"
	defaultWeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultUVAPIURL      = "https://api.openweathermap.org/data/2.5/uvi"
	defaultRegion        = "AU"
	defaultProbeLocation = "Sydney"
	defaultServiceName   = "uv-weather-service"
)

// Config holds service configuration loaded from .env, YAML and environment.
type Config struct {
	ServerPort         string
	CORSAllowedOrigins []string

	WeatherAPIKey        string
	WeatherAPIURL        string
	WeatherAPITimeout    time.Duration
	WeatherRegion        string
	WeatherProbeLocation string

	UVAPIKey     string
	UVAPIURL     string
	UVAPITimeout time.Duration
	UVExclude    string

	RequestTimeout    time.Duration
	LocationMaxLength int

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	TrackedLocations []string

	TracingEnabled     bool
	TracingZipkinURL   string
	TracingServiceName string
	TracingSampleRatio float64
}

type fileConfig struct {
	Server struct {
		Port               string   `yaml:"port"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL           string  `yaml:"url"`
		Timeout       string  `yaml:"timeout"`
		Region        *string `yaml:"region"`
		ProbeLocation string  `yaml:"probe_location"`
	} `yaml:"weather_api"`

	UVAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Exclude string `yaml:"exclude"`
	} `yaml:"uv_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Validation struct {
		LocationMaxLength int `yaml:"location_max_length"`
	} `yaml:"validation"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"inflight_timeout"`
		InFlightCheckInterval string `yaml:"inflight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`

	Tracing struct {
		Enabled     bool     `yaml:"enabled"`
		ZipkinURL   string   `yaml:"zipkin_url"`
		ServiceName string   `yaml:"service_name"`
		SampleRatio *float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	UVAPIKey      string `yaml:"uv_api_key"`
}

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// then applies environment overrides. Call from project root.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, defaultPort)
	cfg.CORSAllowedOrigins = fc.Server.CORSAllowedOrigins
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}
	cfg.UVAPIKey = firstNonEmpty(os.Getenv("UV_API_KEY"), sec.UVAPIKey, cfg.WeatherAPIKey)

	cfg.WeatherAPIURL = firstNonEmpty(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, defaultWeatherAPIURL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)
	cfg.WeatherRegion = defaultRegion
	if fc.WeatherAPI.Region != nil {
		cfg.WeatherRegion = strings.TrimSpace(*fc.WeatherAPI.Region)
	}
	if v, ok := os.LookupEnv("WEATHER_REGION"); ok {
		cfg.WeatherRegion = strings.TrimSpace(v)
	}
	cfg.WeatherProbeLocation = firstNonEmpty(fc.WeatherAPI.ProbeLocation, defaultProbeLocation)

	cfg.UVAPIURL = firstNonEmpty(os.Getenv("UV_API_URL"), fc.UVAPI.URL, defaultUVAPIURL)
	cfg.UVAPITimeout = parseDurationOrZero(fc.UVAPI.Timeout, 2*time.Second)
	cfg.UVExclude = strings.TrimSpace(fc.UVAPI.Exclude)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.LocationMaxLength = fc.Validation.LocationMaxLength

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	cfg.TracingEnabled = fc.Tracing.Enabled
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TRACING_ENABLED: %w", err)
		}
		cfg.TracingEnabled = enabled
	}
	cfg.TracingZipkinURL = firstNonEmpty(os.Getenv("ZIPKIN_URL"), fc.Tracing.ZipkinURL)
	cfg.TracingServiceName = firstNonEmpty(fc.Tracing.ServiceName, defaultServiceName)
	cfg.TracingSampleRatio = 1
	if fc.Tracing.SampleRatio != nil {
		cfg.TracingSampleRatio = *fc.Tracing.SampleRatio
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the working directory into the process environment.
// Variables already set are kept. A missing file is not an error. main calls it before
// building the logger so LOG_LEVEL and LOG_FORMAT can come from .env.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects out-of-range values. RequestTimeout is raised above the sum of both upstream
// call timeouts when configured lower.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.UVAPITimeout <= 0 {
		return fmt.Errorf("uv_api.timeout must be positive")
	}
	if budget := cfg.WeatherAPITimeout + cfg.UVAPITimeout; cfg.RequestTimeout <= budget {
		cfg.RequestTimeout = budget + time.Second
	}
	if cfg.LocationMaxLength < 0 {
		return fmt.Errorf("validation.location_max_length must not be negative")
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.TracingSampleRatio < 0 || cfg.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", cfg.TracingSampleRatio)
	}
	if cfg.TracingEnabled && cfg.TracingZipkinURL == "" {
		return fmt.Errorf("tracing.zipkin_url (or ZIPKIN_URL) required when tracing is enabled")
	}
	return nil
}
