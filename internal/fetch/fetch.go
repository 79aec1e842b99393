package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Default limits for subscription downloads.
const (
	// DefaultTimeout bounds one download including redirects.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes caps the body size.
	DefaultMaxBytes = 10 * 1024 * 1024

	// DefaultMaxRedirects caps the redirect chain.
	DefaultMaxRedirects = 10

	// DefaultUserAgent is sent with every request. Several providers
	// serve a different format to clash-like user agents, so the default
	// names neither.
	DefaultUserAgent = "subprobe/1.0"
)

// Entry is a cached subscription body with its validators.
type Entry struct {
	Body         string
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// Cache stores bodies for conditional requests.
type Cache interface {
	// Lookup returns the entry for url, if present.
	Lookup(ctx context.Context, url string) (Entry, bool, error)

	// Store saves the entry for url.
	Store(ctx context.Context, url string, entry Entry) error
}

// Client downloads subscription bodies over HTTP.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBytes     int64
	maxRedirects int
	proxyURL     string
	cache        Cache
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-download timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxBytes sets the body size limit.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxRedirects sets the redirect limit.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithProxy routes downloads through an upstream proxy. socks5:// and
// socks5h:// URLs dial through a SOCKS5 proxy, http:// and https:// URLs
// use an HTTP CONNECT proxy.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithCache enables conditional requests against cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client. It fails only when the upstream proxy URL
// cannot be used.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		userAgent:    DefaultUserAgent,
		maxBytes:     DefaultMaxBytes,
		maxRedirects: DefaultMaxRedirects,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	transport, err := newTransport(c.proxyURL)
	if err != nil {
		return nil, err
	}
	c.httpClient.Transport = transport
	c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > c.maxRedirects {
			return ErrTooManyRedirects
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return ErrRedirectScheme
		}
		return nil
	}

	return c, nil
}

func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: dialer does not support contexts", ErrInvalidProxy)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}

	return transport, nil
}

// Fetch downloads rawURL and returns its body as text. The content type
// is ignored. With a cache configured, a 304 answer returns the cached
// body.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &Error{URL: rawURL, Kind: ErrInvalidURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Kind: ErrInvalidURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	cached, hasCached := c.lookup(ctx, rawURL)
	if hasCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hasCached {
		c.logger.Debug("subscription not modified", "url", rawURL)
		return cached.Body, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{URL: rawURL, Kind: ErrStatus, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return "", classify(rawURL, err)
	}
	if int64(len(data)) > c.maxBytes {
		return "", &Error{URL: rawURL, Kind: ErrTooLarge}
	}

	body := strings.ToValidUTF8(string(data), "")
	c.store(ctx, rawURL, Entry{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now(),
	})

	return body, nil
}

func (c *Client) lookup(ctx context.Context, rawURL string) (Entry, bool) {
	if c.cache == nil {
		return Entry{}, false
	}
	entry, ok, err := c.cache.Lookup(ctx, rawURL)
	if err != nil {
		c.logger.Warn("subscription cache lookup failed", "url", rawURL, "error", err)
		return Entry{}, false
	}
	return entry, ok
}

func (c *Client) store(ctx context.Context, rawURL string, entry Entry) {
	if c.cache == nil || (entry.ETag == "" && entry.LastModified == "") {
		return
	}
	if err := c.cache.Store(ctx, rawURL, entry); err != nil {
		c.logger.Warn("subscription cache store failed", "url", rawURL, "error", err)
	}
}

// classify maps transport errors onto the package's failure classes.
func classify(rawURL string, err error) *Error {
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return &Error{URL: rawURL, Kind: ErrTooManyRedirects, Err: err}
	case errors.Is(err, ErrRedirectScheme):
		return &Error{URL: rawURL, Kind: ErrRedirectScheme, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{URL: rawURL, Kind: ErrTimeout, Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{URL: rawURL, Kind: ErrTimeout, Err: err}
	}
	return &Error{URL: rawURL, Kind: ErrNetwork, Err: err}
}
