package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Middleware is invoked around every outbound call: BeforeSend on the
// prepared request, AfterResponse once the call settles. On failure
// AfterResponse receives the already classified error (*APIError or
// *RequestError); resp is nil when no response was received. Middlewares
// run in registration order and must not retain the request or response.
type Middleware interface {
	BeforeSend(req *http.Request)
	AfterResponse(resp *http.Response, err error)
}

// Client talks to the claims API. All calls run through the middleware
// pipeline; the client itself performs no side effects beyond classifying
// failures.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	middlewares []Middleware
	logger      zerolog.Logger
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMiddleware appends middlewares to the pipeline in order.
func WithMiddleware(mws ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates an API client. baseURL is the API root including the version
// prefix, e.g. "https://claims.example.com/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Use appends a middleware after construction.
func (c *Client) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.roundTrip(ctx, method, path, query, reqBody, contentType, out)
}

// upload sends a multipart form with a single file field.
func (c *Client) upload(ctx context.Context, path, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}
	return c.roundTrip(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType(), out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	for _, mw := range c.middlewares {
		mw.BeforeSend(req)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		reqErr := &RequestError{Err: err}
		c.afterResponse(nil, reqErr)
		return reqErr
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("API response")

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := newAPIError(resp.StatusCode, data)
		c.afterResponse(resp, apiErr)
		return apiErr
	}

	c.afterResponse(resp, nil)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) afterResponse(resp *http.Response, err error) {
	for _, mw := range c.middlewares {
		mw.AfterResponse(resp, err)
	}
}

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("page_size", fmt.Sprintf("%d", pageSize))
	return q
}
