package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/uv-weather-service/internal/models"
)

// OpenUVClient performs the stage-two lookup. It understands both the legacy
// /data/2.5/uvi body ({"value": n}) and the One Call body ({"current": {"uvi": n}}).
type OpenUVClient struct {
	upstream
	exclude string
}

// NewUVClient returns a UV client. exclude is forwarded as the One Call "exclude"
// parameter when non-empty.
func NewUVClient(apiKey, apiURL string, timeout time.Duration, exclude string) (*OpenUVClient, error) {
	u, err := newUpstream(upstreamUV, apiKey, apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return &OpenUVClient{upstream: u, exclude: strings.TrimSpace(exclude)}, nil
}

type uvResponse struct {
	Value   *float64 `json:"value"`
	Current *struct {
		UVI *float64 `json:"uvi"`
	} `json:"current"`
}

// GetUVIndex looks up the UV index at coord.
func (c *OpenUVClient) GetUVIndex(ctx context.Context, coord models.Coordinates) (models.UVReading, error) {
	params := url.Values{}
	params.Set("lat", formatCoordinate(coord.Lat))
	params.Set("lon", formatCoordinate(coord.Lon))
	if c.exclude != "" {
		params.Set("exclude", c.exclude)
	}

	var apiResp uvResponse
	if err := c.getJSON(ctx, params, &apiResp); err != nil {
		return models.UVReading{}, err
	}

	switch {
	case apiResp.Value != nil:
		return models.UVReading{Value: *apiResp.Value}, nil
	case apiResp.Current != nil && apiResp.Current.UVI != nil:
		return models.UVReading{Value: *apiResp.Current.UVI}, nil
	}
	return models.UVReading{}, c.fail(fmt.Errorf("%w: missing UV value", ErrMalformedResponse))
}

// formatCoordinate renders the shortest decimal that round-trips, so -33.8 is sent as "-33.8".
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
