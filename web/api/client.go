// Package api provides a client for communicating with the Builder API.
//
// Every method issues exactly one HTTP request. The client carries no
// identity: callers pass the bearer token on each call. There is no retry,
// backoff or response caching.
package api

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
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Client is an API client for the Builder API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new API client rooted at baseURL, e.g. "https://bldr.example/v1".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: "builder-web",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes a single call.
type request struct {
	method      string
	path        string
	token       string
	query       url.Values
	body        io.Reader
	contentType string
	// accept lists the status codes treated as success. Empty means 200.
	accept []int
}

func (r request) accepts(status int) bool {
	if len(r.accept) == 0 {
		return status == http.StatusOK
	}
	for _, s := range r.accept {
		if s == status {
			return true
		}
	}
	return false
}

// jsonBody encodes v for use as a request body.
func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// do performs the request and decodes the response into out.
//
// out may be nil (body discarded), *string (raw text), *[]byte (raw bytes) or
// any JSON-decodable pointer. Text responses, detected from the content type
// or the path extension, cannot be decoded into a JSON target.
func (c *Client) do(ctx context.Context, r request, out any) (http.Header, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if !r.accepts(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return resp.Header, newError(resp.StatusCode, body)
	}

	if err := decodeBody(resp, r.path, out); err != nil {
		return resp.Header, err
	}
	return resp.Header, nil
}

func decodeBody(resp *http.Response, path string, out any) error {
	switch target := out.(type) {
	case nil:
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	case *[]byte:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		*target = data
		return nil
	case *string:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		*target = string(data)
		return nil
	}

	if isText(resp.Header.Get("Content-Type"), path) {
		return fmt.Errorf("decoding response: expected JSON, got %q", resp.Header.Get("Content-Type"))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// textExtensions are path suffixes whose bodies are plain text regardless of
// the content type the server reports.
var textExtensions = []string{".pub", ".sig.key", ".box.key", ".txt", "/log.txt"}

func isText(contentType, path string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	for _, ext := range textExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Status checks that the Builder API is reachable.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/status"}, nil)
	return err
}

func pathEscape(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}
