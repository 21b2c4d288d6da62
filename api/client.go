// Package api implements the REST client for the Protube backend. The
// backend owns users, videos, likes, playlists, comments, and viewing
// history; this client only moves requests and responses, with retries
// on transient failures. Reconciliation policy lives in the reconcile
// package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// StatusError indicates a non-2xx response from the backend.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.URL)
}

// IsNotFound checks if an error is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// IsClientError checks if an error is any 4xx response, which signals a
// rejected request rather than a transient failure.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}

// Client talks to the Protube backend.
type Client struct {
	client *http.Client
	logger *slog.Logger
	base   string
}

// New creates a client for the API rooted at base (e.g.
// "http://localhost:8080/api"). httpClient may be nil for a default with
// a sane timeout.
func New(base string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		client: httpClient,
		logger: logger,
	}
}

// request issues one HTTP request with retries on transient failures.
// 4xx responses are not retried: the backend rejected the request and
// repeating it would not help. The response body is returned raw.
func (c *Client) request(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	fullURL := c.base + path
	var respBody []byte

	err := retry.Do(
		func() error {
			var reader io.Reader = http.NoBody
			if body != nil {
				reader = bytes.NewReader(body)
			}

			req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			req.Header.Set("Accept", "application/json")

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("HTTP request failed, will retry",
					"method", method,
					"url", fullURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Info("HTTP request completed",
				"method", method,
				"url", fullURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(&StatusError{Status: resp.StatusCode, URL: fullURL})
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &StatusError{Status: resp.StatusCode, URL: fullURL}
			}

			respBody, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying request after error", "attempt", n, "url", fullURL, "error", err)
		}),
	)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, fmt.Errorf("after retries: %w", err)
	}

	return respBody, nil
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.request(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// postJSON issues a POST with a JSON body; out may be nil when the
// response body is irrelevant.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data, err := c.request(ctx, http.MethodPost, path, "application/json", body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
