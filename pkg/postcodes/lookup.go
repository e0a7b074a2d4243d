package postcodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// outcodePattern matches the outward half of a postcode ("EC1V", "M1", "SW1A").
var outcodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9][A-Za-z0-9]?$`)

// IsOutcode reports whether s is a bare outcode with no inward code.
func IsOutcode(s string) bool {
	return outcodePattern.MatchString(strings.TrimSpace(s))
}

// LookupPostcode fetches a single postcode. A nil result means it does not exist.
func (c *Client) LookupPostcode(ctx context.Context, postcode string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, "postcodes/"+url.PathEscape(postcode), nil)
}

// LookupOutcode fetches an outward code.
func (c *Client) LookupOutcode(ctx context.Context, outcode string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, "outcodes/"+url.PathEscape(outcode), nil)
}

// Lookup routes bare outcodes to LookupOutcode and everything else to LookupPostcode.
func (c *Client) Lookup(ctx context.Context, postcodeOrOutcode string) (json.RawMessage, error) {
	if strings.TrimSpace(postcodeOrOutcode) == "" {
		return nil, fmt.Errorf("%w: lookup needs a postcode or outcode", ErrInvalidArguments)
	}
	if IsOutcode(postcodeOrOutcode) {
		return c.LookupOutcode(ctx, postcodeOrOutcode)
	}
	return c.LookupPostcode(ctx, postcodeOrOutcode)
}

// Validate asks the API whether postcode is valid. An absent result counts as invalid.
func (c *Client) Validate(ctx context.Context, postcode string) (bool, error) {
	raw, err := c.Request(ctx, http.MethodGet, "postcodes/"+url.PathEscape(postcode)+"/validate", nil)
	if err != nil || raw == nil {
		return false, err
	}
	var valid bool
	if err := json.Unmarshal(raw, &valid); err != nil {
		return false, fmt.Errorf("%w: validate result: %w", ErrMalformedResponse, err)
	}
	return valid, nil
}

// Random returns a random postcode.
func (c *Client) Random(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, "random/postcodes", nil)
}
