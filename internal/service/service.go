package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/uv-weather-service/internal/client"
	"github.com/kjstillabower/uv-weather-service/internal/models"
	"github.com/kjstillabower/uv-weather-service/internal/observability"
)

const tracerName = "github.com/kjstillabower/uv-weather-service/internal/service"

// WeatherService runs the two-stage lookup: current weather by place name, then the UV
// index at the coordinates stage one returned. Stages never overlap. It holds no
// per-request state and is safe for concurrent use.
type WeatherService struct {
	weather client.WeatherClient
	uv      client.UVClient
	tracer  trace.Tracer
}

// NewWeatherService creates a WeatherService. A nil tracer provider uses the global one.
func NewWeatherService(weather client.WeatherClient, uv client.UVClient, tp trace.TracerProvider) *WeatherService {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &WeatherService{
		weather: weather,
		uv:      uv,
		tracer:  tp.Tracer(tracerName),
	}
}

// GetWeather resolves query to an AggregatedResult. A stage-one failure returns a
// *StageError for StageWeather and stage two is never attempted; a stage-two failure
// returns a *StageError for StageUV and stage-one data is dropped. The result echoes
// query.Raw, not the trimmed name.
func (s *WeatherService) GetWeather(ctx context.Context, query models.LocationQuery) (models.AggregatedResult, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx).With(zap.String("location", query.Name))

	ctx, span := s.tracer.Start(ctx, "aggregate-weather")
	defer span.End()
	span.SetAttributes(attribute.String("location", query.Name))

	observability.RecordWeatherQuery(query.Name)

	obs, err := s.lookupWeather(ctx, query.Name)
	if err != nil {
		return s.fail(span, logger, StageWeather, err)
	}

	// The caller may have gone away while stage one was in flight.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.fail(span, logger, StageUV, ctxErr)
	}

	reading, err := s.lookupUV(ctx, obs.Coord)
	if err != nil {
		return s.fail(span, logger, StageUV, err)
	}

	result := models.AggregatedResult{
		Location:    query.Raw,
		Temperature: obs.Temperature,
		Weather:     obs.Description,
		UVIndex:     reading.Value,
	}

	duration := time.Since(start)
	observability.AggregationsTotal.WithLabelValues("success").Inc()
	observability.AggregationDuration.Observe(duration.Seconds())
	logger.Debug("weather served",
		zap.Float64("temperature", result.Temperature),
		zap.Float64("uv_index", result.UVIndex),
		zap.Duration("duration", duration))
	return result, nil
}

func (s *WeatherService) lookupWeather(ctx context.Context, location string) (models.WeatherObservation, error) {
	ctx, span := s.tracer.Start(ctx, "weather-lookup")
	defer span.End()

	obs, err := s.weather.GetCurrentWeather(ctx, location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(client.CategorizeError(err)))
		return models.WeatherObservation{}, err
	}
	span.SetAttributes(
		attribute.Float64("coord.lat", obs.Coord.Lat),
		attribute.Float64("coord.lon", obs.Coord.Lon),
	)
	return obs, nil
}

func (s *WeatherService) lookupUV(ctx context.Context, coord models.Coordinates) (models.UVReading, error) {
	ctx, span := s.tracer.Start(ctx, "uv-lookup")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("coord.lat", coord.Lat),
		attribute.Float64("coord.lon", coord.Lon),
	)

	reading, err := s.uv.GetUVIndex(ctx, coord)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(client.CategorizeError(err)))
		return models.UVReading{}, err
	}
	return reading, nil
}

func (s *WeatherService) fail(span trace.Span, logger *zap.Logger, stage Stage, err error) (models.AggregatedResult, error) {
	stageErr := &StageError{Stage: stage, Err: err}
	category := client.CategorizeError(err)

	span.RecordError(stageErr)
	span.SetStatus(codes.Error, stageErr.Error())
	observability.AggregationsTotal.WithLabelValues(string(stage) + "_error").Inc()
	logger.Warn("upstream lookup failed",
		zap.String("stage", string(stage)),
		zap.String("category", string(category)),
		zap.Error(err))
	return models.AggregatedResult{}, stageErr
}
