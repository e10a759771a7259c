package validation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/uv-weather-service/internal/models"
)

// ErrLocationEmpty is returned when location is absent, empty or whitespace-only.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the configured maximum.
var ErrLocationTooLong = errors.New("location too long")

var validate = validator.New()

// ValidateLocation trims raw and rejects it when nothing is left. maxLen (in runes)
// bounds the trimmed length; 0 disables the bound. Both errors mean the request must
// be rejected before any upstream call.
func ValidateLocation(raw string, maxLen int) (models.LocationQuery, error) {
	name := strings.TrimSpace(raw)
	if err := validate.Var(name, "required"); err != nil {
		return models.LocationQuery{}, ErrLocationEmpty
	}
	if maxLen > 0 {
		if err := validate.Var(name, "max="+strconv.Itoa(maxLen)); err != nil {
			return models.LocationQuery{}, ErrLocationTooLong
		}
	}
	return models.LocationQuery{Raw: raw, Name: name}, nil
}

// IsInvalidRequest reports whether err is a caller input error.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrLocationEmpty) || errors.Is(err, ErrLocationTooLong)
}
