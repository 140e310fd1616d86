// Outbound GET helper shared by image downloads and connectivity
// probes. A fixed timeout budget, no retries: callers degrade when a
// request fails.

package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aniways/anipush/internal/apperr"
)

const (
	totalTimeout   = 8 * time.Second
	connectTimeout = 5 * time.Second
	readTimeout    = 2 * time.Second
)

// Client issues GET requests with the fixed timeout budget and an
// optional proxy.
type Client struct {
	http *http.Client
}

// New creates a Client. proxyURL may be empty for a direct connection.
func New(proxyURL string) (*Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
	}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, apperr.Wrap(apperr.ConfigIOError, err, "invalid proxy url %q", proxyURL)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}
	return &Client{
		http: &http.Client{
			Timeout:   totalTimeout,
			Transport: transport,
		},
	}, nil
}

// Get fetches a URL and returns the response body. Non-2xx statuses are
// RequestError.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.RequestError, err, "invalid request for %s", rawURL)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.RequestError, err, "GET %s failed", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.New(apperr.RequestError, "GET %s returned status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.RequestError, err, "reading response of %s failed", rawURL)
	}
	return body, nil
}

// GetText fetches a URL and returns the body as a string.
func (c *Client) GetText(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	body, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
