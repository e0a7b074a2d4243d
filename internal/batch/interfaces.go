package batch

import (
	"context"
	"encoding/json"

	"github.com/samvad-hq/postcodes-geocoder/pkg/postcodes"
	"github.com/samvad-hq/postcodes-geocoder/pkg/publishers"
)

// Geocoder is the subset of the postcodes client used by jobs.
type Geocoder interface {
	Lookup(ctx context.Context, postcodeOrOutcode string) (json.RawMessage, error)
	LookupPostcode(ctx context.Context, postcode string) (json.RawMessage, error)
	LookupOutcode(ctx context.Context, outcode string) (json.RawMessage, error)
	NearPostcode(ctx context.Context, postcode string) ([]json.RawMessage, error)
	NearCoordinate(ctx context.Context, latitude, longitude float64, opts *postcodes.NearOptions) ([]json.RawMessage, error)
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (json.RawMessage, error)
	Validate(ctx context.Context, postcode string) (bool, error)
	Random(ctx context.Context) (json.RawMessage, error)
}

// EventPublisher publishes job results downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers which job keys were already published.
type Deduper interface {
	Seen(key string) (bool, error)
	Mark(key string) error
}

var _ Geocoder = (*postcodes.Client)(nil)
