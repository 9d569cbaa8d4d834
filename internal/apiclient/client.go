// Package apiclient is a thin HTTP client for the remote payment diagnostic
// API. Every call is a fresh round trip: no retries and no caching.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DevBaseURL is used when no base is configured in development mode.
	DevBaseURL = "http://127.0.0.1:8000"
	// ProdBaseURL is used when no base is configured outside development.
	ProdBaseURL = "/api"

	pingPath        = "/support/ping"
	categoriesPath  = "/support/categories"
	diagnosePath    = "/support/diagnose"
	summaryPath     = "/support/diagnose/with-summary"
	maxErrorBodyLen = 64 << 10
)

// DefaultPingTimeout bounds the health check so it always settles.
const DefaultPingTimeout = 5 * time.Second

// ResolveBase picks the API base URL: the explicit value when non-empty,
// otherwise the development or production default.
func ResolveBase(explicit string, dev bool) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if dev {
		return DevBaseURL
	}
	return ProdBaseURL
}

// Client talks to the diagnostic API rooted at a fixed base URL.
type Client struct {
	base            string
	origin          string
	httpClient      *http.Client
	pingTimeout     time.Duration
	diagnoseTimeout time.Duration
	summary         bool
	logger          *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithOrigin sets the origin against which a relative base such as "/api" is
// resolved.
func WithOrigin(origin string) Option {
	return func(c *Client) { c.origin = strings.TrimRight(origin, "/") }
}

// WithPingTimeout bounds the health check. Zero disables the bound.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Client) { c.pingTimeout = d }
}

// WithDiagnoseTimeout bounds each diagnose call. Zero, the default, means no
// client-side timeout.
func WithDiagnoseTimeout(d time.Duration) Option {
	return func(c *Client) { c.diagnoseTimeout = d }
}

// WithSummary selects the with-summary diagnose endpoint.
func WithSummary(enabled bool) Option {
	return func(c *Client) { c.summary = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for base. The base is fixed for the client's lifetime.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:        base,
		httpClient:  &http.Client{},
		pingTimeout: DefaultPingTimeout,
		summary:     true,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL as given, before origin resolution.
func (c *Client) BaseURL() string { return c.base }

// DiagnoseTimeout returns the configured diagnose timeout (zero for none).
func (c *Client) DiagnoseTimeout() time.Duration { return c.diagnoseTimeout }

// Ping checks API health. Any failure yields PingStatus{OK: false}; Ping
// never returns an error.
func (c *Client) Ping(ctx context.Context) PingStatus {
	if c.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pingTimeout)
		defer cancel()
	}

	var status PingStatus
	if err := c.do(ctx, http.MethodGet, pingPath, nil, &status); err != nil {
		c.logger.Debug("ping failed", zap.String("base", c.base), zap.Error(err))
		return PingStatus{OK: false}
	}
	return status
}

// Diagnose submits req. Failures are returned as *ConnectionError.
func (c *Client) Diagnose(ctx context.Context, req DiagnosisRequest) (*DiagnosisResult, error) {
	if c.diagnoseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.diagnoseTimeout)
		defer cancel()
	}

	path := diagnosePath
	if c.summary {
		path = summaryPath
	}

	var result DiagnosisResult
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Categories lists the categories the API knows about.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var resp categoriesResponse
	if err := c.do(ctx, http.MethodGet, categoriesPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// endpoint joins the resolved base with path.
func (c *Client) endpoint(path string) (string, error) {
	base := strings.TrimRight(c.base, "/")
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	if !u.IsAbs() {
		if c.origin == "" {
			return "", fmt.Errorf("relative base URL %q requires an origin", c.base)
		}
		base = c.origin + "/" + strings.TrimLeft(base, "/")
	}
	return base + path, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	connErr := func(status int, detail string, err error) error {
		return &ConnectionError{BaseURL: c.base, Endpoint: path, StatusCode: status, Detail: detail, Err: err}
	}

	target, err := c.endpoint(path)
	if err != nil {
		return connErr(0, "", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return connErr(0, "", fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return connErr(0, "", fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connErr(0, "", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("diagnostic api call",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		_ = json.Unmarshal(data, &eb)
		return connErr(resp.StatusCode, eb.Detail, errors.New(http.StatusText(resp.StatusCode)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return connErr(resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
