package postcodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// envelope is the JSON wrapper postcodes.io puts around every response.
// Only result and error are read; status mirrors the HTTP status.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Request issues method against path (leading slash optional) with params as
// the query string and returns the normalized result. A nil result with a nil
// error means the upstream answered 404 or returned a null result.
func (c *Client) Request(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, method, c.buildURL(path, params), 0)
}

func (c *Client) buildURL(path string, params url.Values) string {
	path = strings.TrimPrefix(path, "/")
	target := c.base + "/" + path
	if q := params.Encode(); q != "" {
		target += "?" + q
	}
	return target
}

func (c *Client) do(ctx context.Context, method, target string, hops int) (json.RawMessage, error) {
	c.log.DebugObj("postcodes request", "postcodes_request", map[string]any{
		"method": method,
		"url":    target,
		"hop":    hops,
	})

	resp, err := c.http.Do(ctx, method, target, c.cfg.Headers)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}

	status := resp.StatusCode()
	env, err := decodeEnvelope(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: status %d from %s: %w", ErrMalformedResponse, status, target, err)
	}

	switch {
	case status >= 300 && status < 400:
		return c.follow(ctx, target, resp.Header("Location"), status, hops)
	case status == http.StatusNotFound:
		return nil, nil
	case status >= 200 && status < 300:
		return nullable(env.Result), nil
	default:
		return nil, &APIError{Message: errorMessage(env.Error), StatusCode: status}
	}
}

func (c *Client) follow(ctx context.Context, from, location string, status, hops int) (json.RawMessage, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: status %d from %s without Location header", ErrMalformedResponse, status, from)
	}
	if hops >= c.maxRedirects {
		return nil, fmt.Errorf("%w: stopped after %d hops at %s", ErrTooManyRedirects, hops, from)
	}
	next, err := c.resolveLocation(location)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Location %q: %w", ErrMalformedResponse, location, err)
	}
	c.log.DebugObj("postcodes redirect", "postcodes_redirect", map[string]any{
		"from":   from,
		"to":     next,
		"status": status,
	})
	return c.do(ctx, http.MethodGet, next, hops+1)
}

// resolveLocation keeps absolute locations and resolves relative ones against the configured host.
func (c *Client) resolveLocation(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.base + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// decodeEnvelope fails only on invalid JSON; valid JSON that is not an object yields an empty envelope.
func decodeEnvelope(body []byte) (envelope, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return envelope{}, err
	}
	var env envelope
	if _, ok := doc.(map[string]any); !ok {
		return env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func nullable(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

func errorMessage(raw json.RawMessage) string {
	raw = nullable(raw)
	if raw == nil {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}
