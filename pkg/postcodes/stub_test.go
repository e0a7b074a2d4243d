package postcodes

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/samvad-hq/postcodes-geocoder/pkg/httpclient"
)

// stubResponse implements httpclient.Response.
type stubResponse struct {
	status  int
	body    string
	headers map[string]string
}

func (s stubResponse) Body() []byte    { return []byte(s.body) }
func (s stubResponse) StatusCode() int { return s.status }
func (s stubResponse) Header(key string) string {
	return s.headers[http.CanonicalHeaderKey(key)]
}

// stubHTTPClient returns canned responses per URL and records every call.
type stubHTTPClient struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	err       error
	calls     []string
	headers   []map[string]string
}

func (s *stubHTTPClient) Do(_ context.Context, method, url string, headers map[string]string) (httpclient.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, method+" "+url)
	s.headers = append(s.headers, headers)
	if s.err != nil {
		return nil, s.err
	}
	resp, ok := s.responses[url]
	if !ok {
		return nil, errors.New("no stubbed response for " + url)
	}
	return resp, nil
}

func newStubClient(t *testing.T, stub *stubHTTPClient, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithHTTPClient(stub)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
