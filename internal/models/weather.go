package models

// LocationQuery is the caller-supplied place name. Raw is echoed back in the
// response; Name is the trimmed form sent upstream.
type LocationQuery struct {
	Raw  string
	Name string
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherObservation is the stage-one result. Temperature is Celsius.
type WeatherObservation struct {
	Temperature float64
	Description string
	Coord       Coordinates
}

// UVReading is the stage-two result, looked up by a WeatherObservation's coordinates.
type UVReading struct {
	Value float64
}

// AggregatedResult is the response body for GET /weather. Field order is part of the wire format.
type AggregatedResult struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Weather     string  `json:"weather"`
	UVIndex     float64 `json:"uvIndex"`
}
