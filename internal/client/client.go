package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kjstillabower/uv-weather-service/internal/models"
	"github.com/kjstillabower/uv-weather-service/internal/observability"
)

// WeatherClient resolves a place name to current conditions and coordinates (stage one).
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, location string) (models.WeatherObservation, error)
	ValidateAPIKey(ctx context.Context) error
}

// UVClient resolves a coordinate pair to a UV index (stage two).
type UVClient interface {
	GetUVIndex(ctx context.Context, coord models.Coordinates) (models.UVReading, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

const (
	upstreamWeather = "weather"
	upstreamUV      = "uv"

	maxResponseBytes = 1 << 20
)

// upstream holds what both providers share: credential, endpoint, per-call timeout.
// Each call is a single attempt.
type upstream struct {
	name    string
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

func newUpstream(name, apiKey, apiURL string, timeout time.Duration) (upstream, error) {
	if apiKey == "" {
		return upstream{}, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return upstream{}, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return upstream{}, fmt.Errorf("invalid API URL: %w", err)
	}
	return upstream{
		name:    name,
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// providerError is the error body OpenWeatherMap sends with non-2xx statuses.
// cod is sometimes a string and sometimes a number, so it is not decoded.
type providerError struct {
	Message string `json:"message"`
}

// getJSON performs one GET with params plus the credential and decodes a 2xx body into out.
func (u upstream) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := u.buildRequest(reqCtx, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.name, "error").Inc()
		return u.fail(fmt.Errorf("build request: %w", err))
	}

	resp, err := u.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.name, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(u.name, "error").Observe(time.Since(start).Seconds())

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return u.fail(fmt.Errorf("request timeout: %w", err))
		}
		return u.fail(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(u.name, status).Inc()
	observability.UpstreamDuration.WithLabelValues(u.name, status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return u.fail(fmt.Errorf("read response body: %w", err))
	}

	if err := handleErrorResponse(resp.StatusCode, body); err != nil {
		return u.fail(err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return u.fail(fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err))
	}
	return nil
}

func (u upstream) fail(err error) error {
	observability.UpstreamErrorsTotal.WithLabelValues(u.name, string(CategorizeError(err))).Inc()
	return err
}

func (u upstream) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(u.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("appid", u.apiKey)
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// handleErrorResponse maps a non-2xx status to a sentinel, carrying the provider's message when present.
func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var pe providerError
	_ = json.Unmarshal(body, &pe)

	var sentinel error
	switch statusCode {
	case http.StatusUnauthorized:
		sentinel = ErrInvalidAPIKey
	case http.StatusNotFound:
		sentinel = ErrLocationNotFound
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		sentinel = ErrUpstreamFailure
	}

	if pe.Message != "" {
		return fmt.Errorf("%w: HTTP %d: %s", sentinel, statusCode, pe.Message)
	}
	return fmt.Errorf("%w: HTTP %d", sentinel, statusCode)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
