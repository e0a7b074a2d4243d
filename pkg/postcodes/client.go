// Package postcodes is a client for the postcodes.io UK postcode lookup and
// geocoding API.
//
// Every operation funnels through Client.Request, which applies the same
// response normalization: 3xx responses are followed (bounded), 404 becomes an
// absent result, 2xx yields the envelope's result field and anything else is
// an *APIError. Results are returned as raw JSON; the client does not validate
// the upstream schema.
package postcodes

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/postcodes-geocoder/pkg/httpclient"
)

const (
	// DefaultHostname is the public postcodes.io API host.
	DefaultHostname = "api.postcodes.io"
	// DefaultMaxRedirects bounds how many 3xx hops a single call may follow.
	DefaultMaxRedirects = 5

	defaultSecurePort   = 443
	defaultInsecurePort = 80
	acceptHeader        = "Accept"
	jsonMediaType       = "application/json"
)

// Config describes where the client connects and which headers it sends.
type Config struct {
	Secure   *bool             `json:"secure,omitempty" yaml:"secure"`
	Hostname string            `json:"hostname" yaml:"hostname"`
	Port     int               `json:"port" yaml:"port"`
	Headers  map[string]string `json:"headers" yaml:"headers"`
}

// SecureValue returns the secure flag defaulting to true.
func (c Config) SecureValue() bool {
	if c.Secure == nil {
		return true
	}
	return *c.Secure
}

// Scheme returns "https" or "http" depending on the secure flag.
func (c Config) Scheme() string {
	if c.SecureValue() {
		return "https"
	}
	return "http"
}

// Client talks to a postcodes.io compatible API. It is safe for concurrent use.
type Client struct {
	cfg          Config
	base         string
	http         httpclient.Client
	timeout      time.Duration
	maxRedirects int
	log          Logger
}

// Option configures a Client during construction.
type Option func(*Client) error

// WithHTTPClient replaces the default resty-backed transport.
// The transport must not follow redirects on its own.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("%w: http client is nil", ErrInvalidConfiguration)
		}
		c.http = hc
		return nil
	}
}

// WithTimeout bounds each round trip of the default transport.
// It has no effect when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfiguration)
		}
		c.timeout = d
		return nil
	}
}

// WithMaxRedirects sets the redirect hop limit. Zero rejects every redirect.
func WithMaxRedirects(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("%w: max redirects must be >= 0", ErrInvalidConfiguration)
		}
		c.maxRedirects = n
		return nil
	}
}

// WithLogger installs a logger for request tracing.
func WithLogger(log Logger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// WithHeaders merges extra headers on top of the configured ones.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) error {
		c.cfg.Headers = mergeHeaders(c.cfg.Headers, headers)
		return nil
	}
}

// New returns a client for the public API over HTTPS.
func New(opts ...Option) (*Client, error) {
	return NewWithConfig(Config{}, opts...)
}

// NewFromURL builds a client from a host URL such as "http://localhost:8000".
// Only the scheme, hostname and port are used.
func NewFromURL(rawURL string, opts ...Option) (*Client, error) {
	cfg, err := ParseHostURL(rawURL)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

// NewWithConfig builds a client from explicit settings, filling defaults for zero values.
func NewWithConfig(cfg Config, opts ...Option) (*Client, error) {
	normalized, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:          normalized,
		maxRedirects: DefaultMaxRedirects,
		log:          noopLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(c.timeout)
	}
	c.base = baseURL(c.cfg)
	return c, nil
}

// ParseHostURL extracts scheme, hostname and port from a host URL.
func ParseHostURL(rawURL string) (Config, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Config{}, fmt.Errorf("%w: host url is empty", ErrInvalidConfiguration)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: parse host url: %w", ErrInvalidConfiguration, err)
	}

	var secure bool
	switch strings.ToLower(u.Scheme) {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return Config{}, fmt.Errorf("%w: unsupported scheme %q (expected http or https)", ErrInvalidConfiguration, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Config{}, fmt.Errorf("%w: host url %q has no hostname", ErrInvalidConfiguration, rawURL)
	}

	cfg := Config{Secure: &secure, Hostname: host}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, fmt.Errorf("%w: invalid port %q", ErrInvalidConfiguration, p)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	secure := c.cfg.SecureValue()
	headers := make(map[string]string, len(c.cfg.Headers))
	for k, v := range c.cfg.Headers {
		headers[k] = v
	}
	return Config{
		Secure:   &secure,
		Hostname: c.cfg.Hostname,
		Port:     c.cfg.Port,
		Headers:  headers,
	}
}

// BaseURL returns the scheme://host[:port] prefix every request is built on.
func (c *Client) BaseURL() string { return c.base }

func normalizeConfig(cfg Config) (Config, error) {
	secure := cfg.SecureValue()
	out := Config{
		Secure:   &secure,
		Hostname: strings.TrimSpace(cfg.Hostname),
		Port:     cfg.Port,
	}
	if out.Hostname == "" {
		out.Hostname = DefaultHostname
	}
	if strings.ContainsAny(out.Hostname, "/?#@") {
		return Config{}, fmt.Errorf("%w: hostname %q must not contain a scheme or path", ErrInvalidConfiguration, out.Hostname)
	}
	if out.Port == 0 {
		out.Port = defaultPort(secure)
	}
	if out.Port < 0 || out.Port > 65535 {
		return Config{}, fmt.Errorf("%w: port %d out of range", ErrInvalidConfiguration, out.Port)
	}
	out.Headers = mergeHeaders(map[string]string{acceptHeader: jsonMediaType}, cfg.Headers)
	return out, nil
}

// mergeHeaders overlays extra on base using canonical keys, so "accept" replaces "Accept".
// Blank keys and values are ignored, which keeps the JSON Accept default from being dropped.
func mergeHeaders(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range extra {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[http.CanonicalHeaderKey(key)] = val
	}
	return out
}

func defaultPort(secure bool) int {
	if secure {
		return defaultSecurePort
	}
	return defaultInsecurePort
}

func baseURL(cfg Config) string {
	host := cfg.Hostname
	if cfg.Port != defaultPort(cfg.SecureValue()) || strings.Contains(host, ":") {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}
	return cfg.Scheme() + "://" + host
}
