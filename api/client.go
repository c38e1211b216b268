// Package api is the HTTP client for the Reading Room backend. It attaches
// the current bearer token to every request, keeps server cookies, and turns
// non-2xx responses into typed errors without interpreting them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const requestIDHeader = "X-Request-Id"

// TokenSource supplies the bearer token for outgoing requests.
// An empty token means "send no Authorization header".
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client calls the Reading Room API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where the bearer token is read from before each request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the underlying http.Client. A cookie jar is added
// when the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New constructs a client for baseURL (for example http://localhost:8000/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    zap.NewNop(),
		userAgent: "readingroom-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Jar == nil {
		// Credentials mode "include": cookies travel alongside the bearer token.
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// path builds "/name/" or "/name/id/" following the backend's trailing-slash convention.
func path(name string, id ...string) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(strings.Trim(name, "/"))
	b.WriteByte('/')
	for _, part := range id {
		b.WriteString(url.PathEscape(part))
		b.WriteByte('/')
	}
	return b.String()
}

func (c *Client) newRequest(ctx context.Context, method, p string, params url.Values, body any) (*http.Request, error) {
	u := c.baseURL + p
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode body: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.attachToken(req)
	return req, nil
}

// attachToken is the outgoing-request hook. A missing token is not an error
// here; the server answers with 401.
func (c *Client) attachToken(req *http.Request) {
	if c.tokens == nil {
		return
	}
	token := strings.TrimSpace(c.tokens.Token())
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.String("request_id", req.Header.Get(requestIDHeader)),
			zap.Error(err),
		)
		return &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get(requestIDHeader)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, p string, params url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, p, params, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}
