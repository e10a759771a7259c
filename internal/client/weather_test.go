package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/uv-weather-service/internal/observability"
)

const testAPIKey = "test-api-key-12345"

func TestNewOpenWeatherClient_InvalidAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr error
	}{
		{
			name:    "empty API key",
			apiKey:  "",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "too short API key",
			apiKey:  "short",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "valid API key",
			apiKey:  testAPIKey,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenWeatherClient(tt.apiKey, "https://api.test.com", "AU", 2*time.Second)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewOpenWeatherClient() error = %v, want %v", err, tt.wantErr)
				}
				if client != nil {
					t.Errorf("NewOpenWeatherClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() unexpected error: %v", err)
			}
			if client == nil {
				t.Fatalf("NewOpenWeatherClient() expected client, got nil")
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_Success(t *testing.T) {
	apiResp := map[string]interface{}{
		"coord": map[string]interface{}{"lat": -33.8, "lon": 151.2},
		"main":  map[string]interface{}{"temp": 21.5, "humidity": 60},
		"weather": []map[string]interface{}{
			{"main": "Clear", "description": "clear sky"},
			{"main": "Haze", "description": "haze"},
		},
		"name": "Sydney",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if got := q.Get("q"); got != "Sydney,AU" {
			t.Errorf("q = %q, want Sydney,AU", got)
		}
		if got := q.Get("appid"); got != testAPIKey {
			t.Errorf("appid = %q, want %q", got, testAPIKey)
		}
		if got := q.Get("units"); got != "metric" {
			t.Errorf("units = %q, want metric", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResp)
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient(testAPIKey, server.URL, "AU", 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	got, err := client.GetCurrentWeather(context.Background(), "Sydney")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	if got.Temperature != 21.5 {
		t.Errorf("Temperature = %v, want 21.5", got.Temperature)
	}
	if got.Description != "clear sky" {
		t.Errorf("Description = %q, want first entry %q", got.Description, "clear sky")
	}
	if got.Coord.Lat != -33.8 || got.Coord.Lon != 151.2 {
		t.Errorf("Coord = %+v, want {-33.8 151.2}", got.Coord)
	}
}

func TestOpenWeatherClient_RegionQualifier(t *testing.T) {
	tests := []struct {
		name   string
		region string
		want   string
	}{
		{"default AU", "AU", "Perth,AU"},
		{"other country", "NZ", "Perth,NZ"},
		{"trimmed", "  GB ", "Perth,GB"},
		{"disabled", "", "Perth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQ string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQ = r.URL.Query().Get("q")
				_, _ = w.Write([]byte(`{"coord":{"lat":1,"lon":2},"main":{"temp":3},"weather":[{"description":"x"}]}`))
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient(testAPIKey, server.URL, tt.region, time.Second)
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}
			if _, err := client.GetCurrentWeather(context.Background(), "Perth"); err != nil {
				t.Fatalf("GetCurrentWeather() error = %v", err)
			}
			if gotQ != tt.want {
				t.Errorf("q = %q, want %q", gotQ, tt.want)
			}
		})
	}
}

func TestOpenWeatherClient_DescriptionFallsBackToMain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"coord":{"lat":0,"lon":0},"main":{"temp":0},"weather":[{"main":"Rain","description":""}]}`))
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testAPIKey, server.URL, "AU", time.Second)
	got, err := client.GetCurrentWeather(context.Background(), "Darwin")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got.Description != "Rain" {
		t.Errorf("Description = %q, want Rain", got.Description)
	}
	if got.Coord.Lat != 0 || got.Coord.Lon != 0 {
		t.Errorf("zero coordinates must be accepted, got %+v", got.Coord)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_ErrorHandling(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
	}{
		{"401 unauthorized", http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key"}`, ErrInvalidAPIKey, "Invalid API key"},
		{"404 not found", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, ErrLocationNotFound, "city not found"},
		{"429 rate limited", http.StatusTooManyRequests, ``, ErrRateLimited, "HTTP 429"},
		{"500 server error", http.StatusInternalServerError, `oops`, ErrUpstreamFailure, "HTTP 500"},
		{"502 bad gateway", http.StatusBadGateway, ``, ErrUpstreamFailure, "HTTP 502"},
		{"400 bad request", http.StatusBadRequest, `{"cod":"400","message":"Nothing to geocode"}`, ErrUpstreamFailure, "Nothing to geocode"},
		{"invalid json", http.StatusOK, `{not json`, ErrMalformedResponse, "parse response"},
		{"missing coord", http.StatusOK, `{"main":{"temp":1},"weather":[{"description":"x"}]}`, ErrMalformedResponse, "missing coord"},
		{"partial coord", http.StatusOK, `{"coord":{"lat":1},"main":{"temp":1},"weather":[{"description":"x"}]}`, ErrMalformedResponse, "missing coord"},
		{"missing weather", http.StatusOK, `{"coord":{"lat":1,"lon":2},"main":{"temp":1}}`, ErrMalformedResponse, "missing weather"},
		{"empty weather", http.StatusOK, `{"coord":{"lat":1,"lon":2},"main":{"temp":1},"weather":[]}`, ErrMalformedResponse, "missing weather"},
		{"missing temp", http.StatusOK, `{"coord":{"lat":1,"lon":2},"main":{},"weather":[{"description":"x"}]}`, ErrMalformedResponse, "missing main.temp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient(testAPIKey, server.URL, "AU", 2*time.Second)
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}

			_, err = client.GetCurrentWeather(context.Background(), "Sydney")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMessage)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Errorf("upstream called %d times, want exactly 1 (no retries)", n)
			}
		})
	}
}

func TestOpenWeatherClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, _ := NewOpenWeatherClient(testAPIKey, server.URL, "AU", 50*time.Millisecond)

	start := time.Now()
	_, err := client.GetCurrentWeather(context.Background(), "Sydney")
	if err == nil {
		t.Fatal("GetCurrentWeather() expected timeout error, got nil")
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %q, want timeout (err=%v)", CategorizeError(err), err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, want close to 50ms", elapsed)
	}
}

func TestOpenWeatherClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewOpenWeatherClient(testAPIKey, url, "AU", time.Second)
	_, err := client.GetCurrentWeather(context.Background(), "Sydney")
	if err == nil {
		t.Fatal("GetCurrentWeather() expected error for closed server")
	}
	if !strings.Contains(err.Error(), "http request failed") {
		t.Errorf("error = %v, want http request failed", err)
	}
}

func TestOpenWeatherClient_PropagatesCorrelationID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		_, _ = w.Write([]byte(`{"coord":{"lat":1,"lon":2},"main":{"temp":3},"weather":[{"description":"x"}]}`))
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testAPIKey, server.URL, "AU", time.Second)
	ctx := observability.WithCorrelationID(context.Background(), "corr-42")
	if _, err := client.GetCurrentWeather(ctx, "Sydney"); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got != "corr-42" {
		t.Errorf("X-Correlation-ID = %q, want corr-42", got)
	}
}

func TestOpenWeatherClient_ValidateAPIKey_DefaultProbe(t *testing.T) {
	var gotQ string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testAPIKey, server.URL, "AU", time.Second)
	if err := client.ValidateAPIKey(context.Background()); err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if gotQ != "Sydney,AU" {
		t.Errorf("probe q = %q, want Sydney,AU", gotQ)
	}
}

func TestOpenWeatherClient_ValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		ok      bool
	}{
		{"valid", http.StatusOK, nil, true},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidAPIKey, false},
		{"server error", http.StatusInternalServerError, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQ string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQ = r.URL.Query().Get("q")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, _ := NewOpenWeatherClient(testAPIKey, server.URL, "AU", time.Second)
			client.SetProbeLocation("Canberra")
			err := client.ValidateAPIKey(context.Background())
			if tt.ok && err != nil {
				t.Fatalf("ValidateAPIKey() error = %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("ValidateAPIKey() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAPIKey() error = %v, want %v", err, tt.wantErr)
			}
			if gotQ != "Canberra,AU" {
				t.Errorf("probe q = %q, want Canberra,AU", gotQ)
			}
		})
	}
}
