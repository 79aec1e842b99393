package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/subprobe/internal/model"
)

const (
	// DefaultRequestSlack is added to the probe timeout to form the HTTP
	// deadline of a delay request, so the engine's own timeout answer
	// arrives before the client gives up.
	DefaultRequestSlack = 2 * time.Second

	// maxResponseBytes bounds control API response bodies.
	maxResponseBytes = 64 * 1024
)

// Client talks to the engine's clash-compatible control API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	requestSlack time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for control API requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestSlack sets the extra time a delay request may take beyond
// the probe timeout.
func WithRequestSlack(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestSlack = d
	}
}

// NewClient creates a control API client for baseURL, for example
// "http://127.0.0.1:9090".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		requestSlack: DefaultRequestSlack,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		// Control API is local; never route it through an environment proxy.
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:errcheck,forcetypeassert // DefaultTransport is *http.Transport
		transport.Proxy = nil
		c.httpClient = &http.Client{Transport: transport}
	}

	return c
}

// BaseURL returns the control API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ready performs one readiness request. It returns nil when the control
// API answers GET /version with a 2xx status.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrControlAPI, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes)) //nolint:errcheck // drain for reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: /version returned HTTP %d", ErrControlAPI, resp.StatusCode)
	}
	return nil
}

type delayResponse struct {
	Delay   int    `json:"delay"`
	Message string `json:"message"`
}

// Delay asks the engine to fetch testURL through the outbound identified
// by identifier and classifies the answer. It never returns an error;
// every failure becomes an unreachable outcome with a reason.
func (c *Client) Delay(ctx context.Context, identifier, testURL string, timeout time.Duration) model.ProbeOutcome {
	outcome := model.ProbeOutcome{Identifier: identifier}

	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	q.Set("url", testURL)
	endpoint := c.baseURL + "/proxies/" + url.PathEscape(identifier) + "/delay?" + q.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, timeout+c.requestSlack)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		outcome.Status = model.StatusConnectionError
		outcome.Reason = err.Error()
		return outcome
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome.Status, outcome.Reason = classifyTransportError(ctx, err)
		return outcome
	}
	defer resp.Body.Close()

	var body delayResponse
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, &body) //nolint:errcheck // fields stay zero on bad JSON
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if readErr != nil {
			outcome.Status, outcome.Reason = classifyTransportError(ctx, readErr)
			return outcome
		}
		outcome.Status = model.StatusReachable
		outcome.Latency = time.Duration(body.Delay) * time.Millisecond
		return outcome
	}

	reason := body.Message
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		outcome.Status = model.StatusTimeout
	default:
		outcome.Status = model.StatusHTTPError
	}
	outcome.Reason = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, reason)
	return outcome
}

// classifyTransportError separates the request deadline from connection
// failures. Cancellation of the parent context counts as a connection
// error; the caller decides what cancellation means for the cycle.
func classifyTransportError(parent context.Context, err error) (model.ProbeStatus, string) {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return model.StatusTimeout, "timeout"
	}

	var netErr net.Error
	if parent.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
		return model.StatusTimeout, "timeout"
	}

	return model.StatusConnectionError, err.Error()
}
