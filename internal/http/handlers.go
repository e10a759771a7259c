package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/uv-weather-service/internal/client"
	"github.com/kjstillabower/uv-weather-service/internal/degraded"
	"github.com/kjstillabower/uv-weather-service/internal/lifecycle"
	"github.com/kjstillabower/uv-weather-service/internal/observability"
	"github.com/kjstillabower/uv-weather-service/internal/service"
	"github.com/kjstillabower/uv-weather-service/internal/validation"
)

const (
	msgLocationRequired = "Location is required"
	msgLocationTooLong  = "Location is too long"
	msgFetchFailed      = "Failed to fetch weather data"
	msgInternal         = "Internal server error"

	// LivenessMessage is the body of GET /.
	LivenessMessage = "Weather service is running!"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	Version          string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService    *service.WeatherService
	client            client.WeatherClient
	healthConfig      *HealthConfig
	logger            *zap.Logger
	locationMaxLength int
	healthStatusMu    sync.Mutex
	healthStatusPrev  string
}

// NewHandler returns a new Handler. locationMaxLength of 0 disables the length bound.
func NewHandler(
	weatherService *service.WeatherService,
	client client.WeatherClient,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	locationMaxLength int,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService:    weatherService,
		client:            client,
		healthConfig:      healthConfig,
		logger:            logger,
		locationMaxLength: locationMaxLength,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetWeather handles GET /weather?location=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateLocation(r.URL.Query().Get("location"), h.locationMaxLength)
	if err != nil {
		observability.AggregationsTotal.WithLabelValues("invalid_request").Inc()
		msg := msgLocationRequired
		if errors.Is(err, validation.ErrLocationTooLong) {
			msg = msgLocationTooLong
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	result, err := h.weatherService.GetWeather(r.Context(), query)
	if err != nil {
		if countsTowardErrorRate(err) {
			degraded.RecordError()
		}
		writeUpstreamError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetRoot handles GET /, a plain-text liveness probe.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LivenessMessage))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.reason == "api_key_invalid" {
		checks["weatherApi"] = "unhealthy"
	}
	if result.reason == "error_rate_breach" {
		checks["upstreams"] = "unhealthy"
	} else {
		checks["upstreams"] = "healthy"
	}

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "uv-weather-service",
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in priority order: shutting-down > API key invalid >
// degraded error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.client != nil {
		if err := h.client.ValidateAPIKey(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
		}
	}
	if h.healthConfig != nil && degraded.IsDegraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// countsTowardErrorRate excludes failures caused by the caller: an unknown place name or a
// disconnected client says nothing about upstream health.
func countsTowardErrorRate(err error) bool {
	switch client.CategorizeError(err) {
	case client.ErrorCategoryLocationNotFound, client.ErrorCategoryCanceled:
		return false
	}
	return true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeUpstreamError writes the 500 body for either stage. details carries the upstream message.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Debug("upstream error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   msgFetchFailed,
		Details: err.Error(),
	})
}
