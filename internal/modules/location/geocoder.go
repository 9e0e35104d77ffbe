// README: Google Maps geocoding for listings created without coordinates, plus directions links.
package location

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"googlemaps.github.io/maps"

	"spotledger/internal/types"
)

var ErrNoGeocodeResult = errors.New("no geocode result")

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type MapsGeocoder struct {
	client *maps.Client
	region string
}

// NewMapsGeocoder creates a Geocoder with the given API key; region biases results (ccTLD, e.g. "in").
func NewMapsGeocoder(apiKey, region string) (*MapsGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &MapsGeocoder{client: client, region: region}, nil
}

func (g *MapsGeocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, ErrNoGeocodeResult
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// DirectionsURL builds a Google Maps directions link to address.
func DirectionsURL(address string) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", address)
	return "https://www.google.com/maps/dir/?" + q.Encode()
}
