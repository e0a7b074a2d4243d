package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/postcodes-geocoder/internal/config"
	"github.com/samvad-hq/postcodes-geocoder/pkg/postcodes"
)

type recordedRequest struct {
	path  string
	query string
	trace string
}

func newTestServer(t *testing.T, reqs *[]recordedRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*reqs = append(*reqs, recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, trace: r.Header.Get("X-Trace")})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/postcodes/ZZ1 1ZZ":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404,"error":"Postcode not found"}`))
		case strings.HasSuffix(r.URL.Path, "/nearest"):
			_, _ = w.Write([]byte(`{"status":200,"result":[{"postcode":"EC1V 9LB","country":"England"},{"postcode":"EC1V 9LA","country":"England"}]}`))
		case r.URL.Path == "/postcodes/EC1V 9LB/validate":
			_, _ = w.Write([]byte(`{"status":200,"result":true}`))
		case r.URL.Path == "/postcodes" && r.URL.Query().Get("lat") != "":
			_, _ = w.Write([]byte(`{"status":200,"result":[{"postcode":"EC1V 9LB"}]}`))
		default:
			_, _ = w.Write([]byte(`{"status":200,"result":{"postcode":"EC1V 9LB"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := &config.Config{
		AppName:        "postcodes-geocoder",
		LogLevel:       "error",
		PostcodesHost:  "https://api.postcodes.io",
		RequestTimeout: 2 * time.Second,
		MaxRedirects:   5,
	}
	var out bytes.Buffer
	root := newRootCmd(cfg, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLookupPrintsIndentedJSON(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "--header", "X-Trace=abc", "lookup", "EC1V", "9LB")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if want := "{\n  \"postcode\": \"EC1V 9LB\"\n}\n"; out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	if len(reqs) != 1 || reqs[0].path != "/postcodes/EC1V 9LB" || reqs[0].trace != "abc" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestLookupAbsentPrintsNull(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "lookup-postcode", "ZZ1 1ZZ")
	if err != nil {
		t.Fatalf("lookup-postcode: %v", err)
	}
	if out != "null\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestValidatePrintsBool(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "validate", "EC1V 9LB")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out != "true\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestNearCoordinateForwardsOptions(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "near", "--limit", "2", "--", "51.5", "-0.1")
	if err != nil {
		t.Fatalf("near: %v", err)
	}
	if !strings.Contains(out, `"postcode": "EC1V 9LB"`) {
		t.Fatalf("output = %q", out)
	}
	if len(reqs) != 1 || reqs[0].query != "lat=51.5&limit=2&lon=-0.1" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestNearPostcodeWhenArgsAreNotNumeric(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "near", "EC1V", "9LB")
	if err != nil {
		t.Fatalf("near: %v", err)
	}
	if !strings.Contains(out, `"postcode": "EC1V 9LA"`) {
		t.Fatalf("output = %q", out)
	}
	if len(reqs) != 1 || reqs[0].path != "/postcodes/EC1V 9LB/nearest" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestCommandArgumentErrors(t *testing.T) {
	if _, err := execute(t, "reverse", "--", "north", "-0.1"); !errors.Is(err, postcodes.ErrInvalidArguments) {
		t.Fatalf("reverse: expected ErrInvalidArguments, got %v", err)
	}
	if _, err := execute(t, "--header", "broken", "random"); !errors.Is(err, postcodes.ErrInvalidArguments) {
		t.Fatalf("header: expected ErrInvalidArguments, got %v", err)
	}
	if _, err := execute(t, "--host", "ftp://example.com", "random"); !errors.Is(err, postcodes.ErrInvalidConfiguration) {
		t.Fatalf("host: expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"X-A = 1", "X-B=a=b"})
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	if got["X-A"] != "1" || got["X-B"] != "a=b" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestSummaryFlagPrintsOneLinePerResult(t *testing.T) {
	var reqs []recordedRequest
	srv := newTestServer(t, &reqs)

	out, err := execute(t, "--host", srv.URL, "--summary", "near", "EC1V 9LB")
	if err != nil {
		t.Fatalf("near: %v", err)
	}
	if want := "EC1V 9LB, England\nEC1V 9LA, England\n"; out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}

	out, err = execute(t, "--host", srv.URL, "--summary", "lookup-postcode", "ZZ1 1ZZ")
	if err != nil {
		t.Fatalf("lookup-postcode: %v", err)
	}
	if out != "null\n" {
		t.Fatalf("absent result should still print null, got %q", out)
	}
}
