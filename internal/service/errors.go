package service

import (
	"errors"
	"fmt"
)

// Stage names one of the two upstream lookups.
type Stage string

const (
	StageWeather Stage = "weather"
	StageUV      Stage = "uv"
)

var (
	// ErrUpstreamWeather matches any failure of stage one.
	ErrUpstreamWeather = errors.New("upstream weather error")
	// ErrUpstreamUV matches any failure of stage two.
	ErrUpstreamUV = errors.New("upstream uv error")
)

// StageError tags an upstream failure with the stage it happened in. errors.Is matches
// both the stage sentinel and whatever the client returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s lookup: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *StageError) sentinel() error {
	if e.Stage == StageUV {
		return ErrUpstreamUV
	}
	return ErrUpstreamWeather
}
