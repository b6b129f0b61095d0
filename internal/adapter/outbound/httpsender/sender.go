// Package httpsender provides the HTTP transport used to deliver webhooks.
// It is a thin adapter: the HITL coordinator depends only on the
// HTTPSender interface, never on net/http directly, so tests can inject a
// recording stub in place of a live transport.
package httpsender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender sends bytes to a URL with headers and returns the response
// status and body, or an error. Implementations must honor the supplied
// per-attempt timeout.
type HTTPSender interface {
	Send(ctx context.Context, url string, headers map[string]string, body []byte, timeout time.Duration) (status int, respBody []byte, err error)
}

// Client is the default HTTPSender, backed by a shared *http.Client for
// connection reuse across webhook attempts.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client with a shared http.Client. The per-attempt
// timeout passed to Send governs each individual request's context
// deadline; the underlying http.Client itself carries no fixed timeout so
// distinct attempts can use distinct deadlines.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// Send implements HTTPSender.
func (c *Client) Send(ctx context.Context, url string, headers map[string]string, body []byte, timeout time.Duration) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("httpsender: building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("httpsender: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("httpsender: reading response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
