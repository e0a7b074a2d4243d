package postcodes

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
)

func TestIsOutcode(t *testing.T) {
	for _, s := range []string{"EC1V", "M1", "sw1a", " B33 ", "W1A"} {
		if !IsOutcode(s) {
			t.Errorf("IsOutcode(%q) = false", s)
		}
	}
	for _, s := range []string{"EC1V 9LB", "EC1V9LB", "", "1ABC", "ABC1", "M"} {
		if IsOutcode(s) {
			t.Errorf("IsOutcode(%q) = true", s)
		}
	}
}

func TestLookupRoutesOutcodeAndPostcode(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/outcodes/EC1V":        {status: 200, body: `{"status":200,"result":{"outcode":"EC1V"}}`},
		base + "/postcodes/EC1V%209LB": {status: 200, body: `{"status":200,"result":{"postcode":"EC1V 9LB"}}`},
	}}
	c := newStubClient(t, stub)

	if _, err := c.Lookup(context.Background(), "EC1V"); err != nil {
		t.Fatalf("Lookup outcode: %v", err)
	}
	if _, err := c.Lookup(context.Background(), "EC1V 9LB"); err != nil {
		t.Fatalf("Lookup postcode: %v", err)
	}
	if stub.calls[0] != "GET "+base+"/outcodes/EC1V" {
		t.Fatalf("outcode routed to %s", stub.calls[0])
	}
	if stub.calls[1] != "GET "+base+"/postcodes/EC1V%209LB" {
		t.Fatalf("postcode routed to %s", stub.calls[1])
	}
}

func TestLookupRejectsEmpty(t *testing.T) {
	stub := &stubHTTPClient{}
	if _, err := newStubClient(t, stub).Lookup(context.Background(), "  "); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("no request expected, got %v", stub.calls)
	}
}

func TestPathSegmentsArePercentEncoded(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes/A%2FB%20C/validate": {status: 200, body: `{"status":200,"result":false}`},
	}}
	valid, err := newStubClient(t, stub).Validate(context.Background(), "A/B C")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if valid {
		t.Fatalf("expected invalid postcode")
	}
}

func TestValidate(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes/EC1V%209LB/validate": {status: 200, body: `{"status":200,"result":true}`},
		base + "/postcodes/nope/validate":       {status: 200, body: `{"status":200,"result":"yes"}`},
	}}
	c := newStubClient(t, stub)

	valid, err := c.Validate(context.Background(), "EC1V 9LB")
	if err != nil || !valid {
		t.Fatalf("expected valid, got %v err=%v", valid, err)
	}
	if _, err := c.Validate(context.Background(), "nope"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse for non-bool result, got %v", err)
	}
}

func TestNearCoordinateAbsentIsEmpty(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes?lat=51.5&lon=-0.1": {status: 200, body: `{"status":200,"result":null}`},
	}}
	list, err := newStubClient(t, stub).NearCoordinate(context.Background(), 51.5, -0.1, nil)
	if err != nil {
		t.Fatalf("NearCoordinate: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", list)
	}
}

func TestNearCoordinateMergesOptionsWithoutMutation(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes?lat=51.5&limit=5&lon=-0.1&radius=500&wideSearch=true": {status: 200, body: `{"status":200,"result":[{"postcode":"A"},{"postcode":"B"}]}`},
	}}
	opts := &NearOptions{Limit: 5, Radius: 500, WideSearch: true, Extra: url.Values{"lat": {"0"}}}

	list, err := newStubClient(t, stub).NearCoordinate(context.Background(), 51.5, -0.1, opts)
	if err != nil {
		t.Fatalf("NearCoordinate: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 results, got %d", len(list))
	}
	if opts.Extra.Get("lat") != "0" || opts.Extra.Get("lon") != "" {
		t.Fatalf("caller options were mutated: %#v", opts.Extra)
	}
}

func TestNearPostcodeAbsentIsEmpty(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes/ZZ1%201ZZ/nearest": {status: 404, body: `{"status":404,"error":"Postcode not found"}`},
	}}
	list, err := newStubClient(t, stub).NearPostcode(context.Background(), "ZZ1 1ZZ")
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty slice, got %#v err=%v", list, err)
	}
}

func TestNearDispatch(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes?lat=51.5&lon=-0.1":  {status: 200, body: `{"status":200,"result":[]}`},
		base + "/postcodes/EC1V%209LB/nearest": {status: 200, body: `{"status":200,"result":[]}`},
	}}
	c := newStubClient(t, stub)

	if _, err := c.Near(context.Background(), 51.5, -0.1); err != nil {
		t.Fatalf("Near(lat, lon): %v", err)
	}
	if _, err := c.Near(context.Background(), "EC1V 9LB"); err != nil {
		t.Fatalf("Near(postcode): %v", err)
	}
	if stub.calls[0] != "GET "+base+"/postcodes?lat=51.5&lon=-0.1" {
		t.Fatalf("coordinate call = %s", stub.calls[0])
	}
	if stub.calls[1] != "GET "+base+"/postcodes/EC1V%209LB/nearest" {
		t.Fatalf("postcode call = %s", stub.calls[1])
	}
}

func TestNearRejectsMismatchedArgumentsWithoutRequest(t *testing.T) {
	stub := &stubHTTPClient{}
	c := newStubClient(t, stub)

	cases := [][]any{
		{51.5, "x"},
		{"EC1V", "extra"},
		{},
		{51.5},
		{1.0, 2.0, 3.0},
	}
	for _, args := range cases {
		if _, err := c.Near(context.Background(), args...); !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("Near(%v) err = %v, want ErrInvalidArguments", args, err)
		}
	}
	if len(stub.calls) != 0 {
		t.Fatalf("no request expected, got %v", stub.calls)
	}
}

func TestReverseGeocode(t *testing.T) {
	query := "/postcodes?lat=51.5&limit=1&lon=-0.1&radius=20000&wideSearch=true"
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + query: {status: 200, body: `{"status":200,"result":[{"postcode":"FIRST"},{"postcode":"SECOND"}]}`},
	}}
	raw, err := newStubClient(t, stub).ReverseGeocode(context.Background(), 51.5, -0.1)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	var got struct {
		Postcode string `json:"postcode"`
	}
	if err := json.Unmarshal(raw, &got); err != nil || got.Postcode != "FIRST" {
		t.Fatalf("expected first element, got %s err=%v", raw, err)
	}

	empty := &stubHTTPClient{responses: map[string]stubResponse{
		base + query: {status: 200, body: `{"status":200,"result":null}`},
	}}
	raw, err = newStubClient(t, empty).ReverseGeocode(context.Background(), 51.5, -0.1)
	if err != nil || raw != nil {
		t.Fatalf("expected absent result, got %s err=%v", raw, err)
	}
}

func TestNearCoordinateNonListIsMalformed(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes?lat=1&lon=2": {status: 200, body: `{"status":200,"result":{"postcode":"X"}}`},
	}}
	if _, err := newStubClient(t, stub).NearCoordinate(context.Background(), 1, 2, nil); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestNearAcceptsAnyNumericType(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]stubResponse{
		base + "/postcodes?lat=51&lon=0": {status: 200, body: `{"status":200,"result":[]}`},
	}}
	c := newStubClient(t, stub)

	pairs := [][]any{
		{uint(51), int8(0)},
		{int16(51), uint8(0)},
		{uint16(51), uint32(0)},
		{uint64(51), float32(0)},
		{json.Number("51"), int64(0)},
	}
	for _, args := range pairs {
		if _, err := c.Near(context.Background(), args...); err != nil {
			t.Fatalf("Near(%T, %T): %v", args[0], args[1], err)
		}
	}
	if len(stub.calls) != len(pairs) {
		t.Fatalf("expected %d requests, got %v", len(pairs), stub.calls)
	}
}
