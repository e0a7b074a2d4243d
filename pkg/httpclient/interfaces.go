package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header(key string) string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Implementations must not follow redirects; callers decide what to do with 3xx responses.
type Client interface {
	Do(ctx context.Context, method, url string, headers map[string]string) (Response, error)
}
