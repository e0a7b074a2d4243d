package postcodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/go-querystring/query"
)

// NearOptions tunes a coordinate search. Zero values are omitted from the query.
type NearOptions struct {
	Limit      int  `url:"limit,omitempty"`
	Radius     int  `url:"radius,omitempty"`
	WideSearch bool `url:"wideSearch,omitempty"`
	// Extra carries any other query parameters verbatim.
	Extra url.Values `url:"-"`
}

// reverseGeocodeOptions widens the search so a single nearest postcode is found.
var reverseGeocodeOptions = NearOptions{Limit: 1, Radius: 20000, WideSearch: true}

// Params builds a fresh query for the given coordinate. lat and lon always win over Extra.
func (o *NearOptions) Params(latitude, longitude float64) (url.Values, error) {
	params := url.Values{}
	if o != nil {
		for k, vs := range o.Extra {
			params[k] = append([]string(nil), vs...)
		}
		encoded, err := query.Values(o)
		if err != nil {
			return nil, fmt.Errorf("encode near options: %w", err)
		}
		for k, vs := range encoded {
			params[k] = vs
		}
	}
	params.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	return params, nil
}

// NearCoordinate lists postcodes around a coordinate. It never returns a nil slice on success.
func (c *Client) NearCoordinate(ctx context.Context, latitude, longitude float64, opts *NearOptions) ([]json.RawMessage, error) {
	params, err := opts.Params(latitude, longitude)
	if err != nil {
		return nil, err
	}
	raw, err := c.Request(ctx, http.MethodGet, "postcodes", params)
	if err != nil {
		return nil, err
	}
	return decodeList(raw)
}

// NearPostcode lists postcodes around an existing postcode.
func (c *Client) NearPostcode(ctx context.Context, postcode string) ([]json.RawMessage, error) {
	raw, err := c.Request(ctx, http.MethodGet, "postcodes/"+url.PathEscape(postcode)+"/nearest", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(raw)
}

// Near accepts either (latitude, longitude) as numbers or a single postcode string.
// Any other argument shape fails with ErrInvalidArguments before a request is made.
func (c *Client) Near(ctx context.Context, args ...any) ([]json.RawMessage, error) {
	switch len(args) {
	case 1:
		if postcode, ok := args[0].(string); ok {
			return c.NearPostcode(ctx, postcode)
		}
	case 2:
		lat, latOK := toFloat(args[0])
		lon, lonOK := toFloat(args[1])
		if latOK && lonOK {
			return c.NearCoordinate(ctx, lat, lon, nil)
		}
	}
	return nil, fmt.Errorf("%w: near expects (latitude, longitude) or (postcode), got %d args %v", ErrInvalidArguments, len(args), args)
}

// ReverseGeocode returns the nearest postcode to a coordinate, or nil when none is within range.
func (c *Client) ReverseGeocode(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	opts := reverseGeocodeOptions
	list, err := c.NearCoordinate(ctx, latitude, longitude, &opts)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func decodeList(raw json.RawMessage) ([]json.RawMessage, error) {
	if raw == nil {
		return []json.RawMessage{}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: expected a list result: %w", ErrMalformedResponse, err)
	}
	if list == nil {
		list = []json.RawMessage{}
	}
	return list, nil
}

// toFloat accepts any Go numeric type plus json.Number.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
