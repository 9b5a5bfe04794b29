// Package fetch performs the HTTP GET side of smartfetch: a retrying client
// with optional auth decoration, returning response bodies as strings for
// the cache layer.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meetbryce/smartfetch/pkg/robusthttp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("fetch")

// Client fetches remote resources over HTTP GET.
type Client struct {
	HTTP    *http.Client
	Headers map[string]string
	Auth    Auth
}

// NewClient builds a fetch client on the robust (retrying) HTTP client.
// auth may be nil for unauthenticated requests; headers are sent with every
// request.
func NewClient(auth Auth, headers map[string]string) *Client {
	return &Client{
		HTTP:    robusthttp.NewClient(),
		Headers: headers,
		Auth:    auth,
	}
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if c.Auth != nil {
		c.Auth.Apply(req)
	}
	return req, nil
}

// Fetch GETs the URL and returns the response body. Digest auth answers the
// server's 401 challenge with a single follow-up request; any other non-2xx
// status is an error.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}

	if da, ok := c.Auth.(*DigestAuth); ok && resp.StatusCode == http.StatusUnauthorized {
		challenge := resp.Header.Get("WWW-Authenticate")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if !strings.HasPrefix(challenge, "Digest ") {
			return "", fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
		}

		retry, err := c.newRequest(ctx, url)
		if err != nil {
			return "", err
		}
		authz, err := da.authorize(challenge, http.MethodGet, retry.URL.RequestURI())
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", url, err)
		}
		retry.Header.Set("Authorization", authz)

		resp, err = c.HTTP.Do(retry)
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", url, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", url, err)
	}
	return string(body), nil
}
