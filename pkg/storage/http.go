package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage: %s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// HTTP is a read-only FileStore that serves paths relative to a base URL.
// It is used for Hugging Face "resolve" URLs and plain download links.
type HTTP struct {
	client     *http.Client
	baseURL    string
	header     http.Header
	maxRetries int
}

// HTTPOption configures an [HTTP] store.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the underlying client (default: http.DefaultClient).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithBearerToken adds an Authorization header to every request.
func WithBearerToken(token string) HTTPOption {
	return func(h *HTTP) {
		if token != "" {
			h.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithMaxRetries sets how many times a failed GET is retried (default 2).
func WithMaxRetries(n int) HTTPOption {
	return func(h *HTTP) {
		if n >= 0 {
			h.maxRetries = n
		}
	}
}

// NewHTTP creates a store rooted at baseURL. An empty path refers to
// baseURL itself.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client:     http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		header:     make(http.Header),
		maxRetries: 2,
	}
	h.header.Set("User-Agent", "spkembed")
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// URL returns the absolute URL for path.
func (h *HTTP) URL(path string) string {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return h.baseURL
	}
	return h.baseURL + "/" + path
}

// Read issues a GET and returns the response body. Network errors and
// retryable statuses are retried with exponential backoff (1s, 2s, ...).
func (h *HTTP) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := h.do(ctx, http.MethodGet, path)
		if err == nil {
			return resp.Body, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// Exists issues a HEAD request.
func (h *HTTP) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := h.do(ctx, http.MethodHead, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// Write implements FileStore and always fails.
func (h *HTTP) Write(context.Context, string) (io.WriteCloser, error) {
	return nil, ErrReadOnly
}

// Delete implements FileStore and always fails.
func (h *HTTP) Delete(context.Context, string) error {
	return ErrReadOnly
}

func (h *HTTP) do(ctx context.Context, method, path string) (*http.Response, error) {
	url := h.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create request: %w", err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: %s %s: %w", method, url, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	resp.Body.Close()
	se := &StatusError{Method: method, URL: url, Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w", se, os.ErrNotExist)
	}
	return nil, se
}

var _ FileStore = (*HTTP)(nil)
