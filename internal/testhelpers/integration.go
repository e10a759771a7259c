//go:build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/uv-weather-service/internal/client"
	"github.com/kjstillabower/uv-weather-service/internal/service"
)

// IntegrationTestConfig holds configuration for tests against the live provider.
type IntegrationTestConfig struct {
	WeatherAPIKey string
	WeatherAPIURL string
	UVAPIKey      string
	UVAPIURL      string
	Region        string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		WeatherAPIKey: apiKey,
		WeatherAPIURL: envOr("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5/weather"),
		UVAPIKey:      envOr("UV_API_KEY", apiKey),
		UVAPIURL:      envOr("UV_API_URL", "https://api.openweathermap.org/data/2.5/uvi"),
		Region:        "AU",
	}
	if v, ok := os.LookupEnv("WEATHER_REGION"); ok {
		cfg.Region = v
	}
	return cfg
}

// SetupIntegrationClients creates live weather and UV clients.
func SetupIntegrationClients(t *testing.T, cfg IntegrationTestConfig) (*client.OpenWeatherClient, *client.OpenUVClient) {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.Region, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	uvClient, err := client.NewUVClient(cfg.UVAPIKey, cfg.UVAPIURL, 5*time.Second, "")
	if err != nil {
		t.Fatalf("NewUVClient() error = %v", err)
	}
	return weatherClient, uvClient
}

// SetupIntegrationService creates an aggregation service backed by the live provider.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.WeatherService {
	t.Helper()
	weatherClient, uvClient := SetupIntegrationClients(t, cfg)
	return service.NewWeatherService(weatherClient, uvClient, nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
