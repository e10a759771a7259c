package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/uv-weather-service/internal/observability"
)

// RouterConfig carries the transport settings NewRouter needs.
type RouterConfig struct {
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

// NewRouter binds the service routes: / (liveness), /weather, /health and /metrics.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(RecoverMiddleware(logger))
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(TracingMiddleware)
	router.Use(MetricsMiddleware)
	router.Use(mux.CORSMethodMiddleware(router))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigins))

	router.HandleFunc("/", h.GetRoot).Methods(http.MethodGet, http.MethodOptions)

	weather := http.Handler(http.HandlerFunc(h.GetWeather))
	if cfg.RequestTimeout > 0 {
		weather = TimeoutMiddleware(cfg.RequestTimeout)(weather)
	}
	router.Handle("/weather", weather).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet, http.MethodOptions)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return router
}
