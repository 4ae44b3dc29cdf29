package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Found reports whether the provider matched anything.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Coordinates returns the WGS-84 pair of the result.
func (r GeocodingResult) Coordinates() Coordinates {
	return Coordinates{Lat: r.Lat, Lon: r.Lon}
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder resolves free-text US locations to coordinates.
//
// A location the provider cannot match is reported as a zero result with a
// nil error. Errors are reserved for transport and decoding failures.
type Geocoder interface {
	// Name identifies the provider; it is part of resolver cache keys.
	Name() string

	// ForwardGeocode converts a place name (and optional USPS state code) to
	// coordinates. A 5-digit ZIP may be passed as name with an empty state.
	ForwardGeocode(ctx context.Context, name, state string) (GeocodingResult, error)
}
