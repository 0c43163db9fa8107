// Package restclient is the HTTP client shared by the REST chain data
// providers. GET requests are retried, POST requests never are.
package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPError is returned for any response with a non 2xx status code. Body
// is the raw message of the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// IsClientError returns whether the error is a 4xx HTTP error.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	ok := errors.As(err, &httpErr)
	return ok && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	userAgent  string
}

func New(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		userAgent:  "dinghy",
	}
}

// Get performs a GET request, retried on transport errors and 5xx statuses,
// and decodes the JSON response into the given value, if any.
func (c *Client) Get(ctx context.Context, path string, v interface{}) error {
	body, err := c.GetRaw(ctx, path)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// GetRaw performs a GET request with retries and returns the raw body.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode < 500 {
			return nil, err
		}
		if i < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			}
		}
	}
	return nil, fmt.Errorf(
		"request failed after %d attempts: %w", c.maxRetries+1, lastErr,
	)
}

// Post performs a single POST request with the given body.
func (c *Client) Post(
	ctx context.Context, path, contentType string, body io.Reader,
) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, &requestBody{contentType, body})
}

type requestBody struct {
	contentType string
	reader      io.Reader
}

func (c *Client) do(
	ctx context.Context, method, path string, reqBody *requestBody,
) ([]byte, error) {
	var body io.Reader
	if reqBody != nil {
		body = reqBody.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", reqBody.contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{resp.StatusCode, strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
