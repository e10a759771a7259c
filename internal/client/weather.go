package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/uv-weather-service/internal/models"
)

// OpenWeatherClient performs the stage-one lookup against OpenWeatherMap's current weather endpoint.
type OpenWeatherClient struct {
	upstream
	region        string
	probeLocation string
}

// NewOpenWeatherClient returns a client that appends ","+region to every place name so
// searches stay inside one country. An empty region sends the name unqualified.
func NewOpenWeatherClient(apiKey, apiURL, region string, timeout time.Duration) (*OpenWeatherClient, error) {
	u, err := newUpstream(upstreamWeather, apiKey, apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return &OpenWeatherClient{
		upstream:      u,
		region:        strings.TrimSpace(region),
		probeLocation: "Sydney",
	}, nil
}

// SetProbeLocation sets the place name used by ValidateAPIKey. The region qualifier is
// appended to it, so it must resolve inside the configured region.
func (c *OpenWeatherClient) SetProbeLocation(location string) {
	if location = strings.TrimSpace(location); location != "" {
		c.probeLocation = location
	}
}

type openWeatherResponse struct {
	Coord *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// GetCurrentWeather looks up current conditions in metric units.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, location string) (models.WeatherObservation, error) {
	var apiResp openWeatherResponse
	if err := c.getJSON(ctx, c.queryParams(location), &apiResp); err != nil {
		return models.WeatherObservation{}, err
	}

	obs, err := mapWeatherResponse(apiResp)
	if err != nil {
		return models.WeatherObservation{}, c.fail(err)
	}
	return obs, nil
}

func (c *OpenWeatherClient) queryParams(location string) url.Values {
	q := location
	if c.region != "" {
		q = location + "," + c.region
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("units", "metric")
	return params
}

func mapWeatherResponse(apiResp openWeatherResponse) (models.WeatherObservation, error) {
	if apiResp.Coord == nil || apiResp.Coord.Lat == nil || apiResp.Coord.Lon == nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: missing coord", ErrMalformedResponse)
	}
	if len(apiResp.Weather) == 0 {
		return models.WeatherObservation{}, fmt.Errorf("%w: missing weather", ErrMalformedResponse)
	}
	if apiResp.Main == nil || apiResp.Main.Temp == nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: missing main.temp", ErrMalformedResponse)
	}

	description := apiResp.Weather[0].Description
	if description == "" {
		description = apiResp.Weather[0].Main
	}

	return models.WeatherObservation{
		Temperature: *apiResp.Main.Temp,
		Description: description,
		Coord: models.Coordinates{
			Lat: *apiResp.Coord.Lat,
			Lon: *apiResp.Coord.Lon,
		},
	}, nil
}

// ValidateAPIKey issues one probe lookup. Used by /health.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, c.queryParams(c.probeLocation))
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
