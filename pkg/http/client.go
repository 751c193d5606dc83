// Package http provides the HTTP client used to download JDK archives.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	// DefaultTimeout bounds a whole request, body included.
	DefaultTimeout = 10 * time.Minute
	// UserAgent identifies kopi to download servers.
	UserAgent      = "kopi"

	EnvGitHubToken      = "KOPI_GITHUB_TOKEN"
	EnvGitHubTokenShort = "GITHUB_TOKEN"
)

// Client performs HTTP requests. Tests substitute their own.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures a DefaultClient.
type ClientOption func(*DefaultClient)

// WithTimeout sets the client timeout. Zero or negative keeps the default.
func WithTimeout(timeout time.Duration) ClientOption {
	defer perf.Track(nil, "http.WithTimeout")()

	return func(c *DefaultClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithGitHubToken authenticates requests to GitHub hosts, where most OpenJDK
// builds are published, to avoid anonymous rate limits.
func WithGitHubToken(token string) ClientOption {
	defer perf.Track(nil, "http.WithGitHubToken")()

	return func(c *DefaultClient) {
		if token != "" {
			c.client.Transport = &GitHubAuthenticatedTransport{
				Base:        c.client.Transport,
				GitHubToken: token,
			}
		}
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	defer perf.Track(nil, "http.WithTransport")()

	return func(c *DefaultClient) {
		c.client.Transport = transport
	}
}

// DefaultClient wraps net/http with kopi defaults.
type DefaultClient struct {
	client *http.Client
}

// NewDefaultClient returns a client with DefaultTimeout and the given options applied in order.
func NewDefaultClient(opts ...ClientOption) *DefaultClient {
	defer perf.Track(nil, "http.NewDefaultClient")()

	client := &DefaultClient{
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Do implements Client.
func (c *DefaultClient) Do(req *http.Request) (*http.Response, error) {
	defer perf.Track(nil, "http.DefaultClient.Do")()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return c.client.Do(req)
}

// GitHubAuthenticatedTransport adds a bearer token to requests for GitHub hosts only.
type GitHubAuthenticatedTransport struct {
	Base        http.RoundTripper
	GitHubToken string
}

var gitHubHosts = map[string]bool{
	"github.com":                           true,
	"api.github.com":                       true,
	"objects.githubusercontent.com":        true,
	"release-assets.githubusercontent.com": true,
}

// RoundTrip implements http.RoundTripper.
func (t *GitHubAuthenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	defer perf.Track(nil, "http.GitHubAuthenticatedTransport.RoundTrip")()

	if gitHubHosts[req.URL.Hostname()] && t.GitHubToken != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.GitHubToken)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("GitHub transport roundtrip: %w", err)
	}
	return resp, nil
}

// GetGitHubTokenFromEnv reads KOPI_GITHUB_TOKEN, falling back to GITHUB_TOKEN.
func GetGitHubTokenFromEnv() string {
	defer perf.Track(nil, "http.GetGitHubTokenFromEnv")()

	if token := os.Getenv(EnvGitHubToken); token != "" {
		return token
	}
	return os.Getenv(EnvGitHubTokenShort)
}

// Get performs a GET and returns the body of a 200 response.
func Get(ctx context.Context, url string, client Client) ([]byte, error) {
	defer perf.Track(nil, "http.Get")()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", errors.Join(errUtils.ErrHTTPRequestFailed, err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", errors.Join(errUtils.ErrHTTPRequestFailed, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w: %s", errUtils.ErrHTTPRequestFailed, errUtils.ErrHTTP404, url)
	default:
		return nil, fmt.Errorf("%w: unexpected status code: %d", errUtils.ErrHTTPRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", errors.Join(errUtils.ErrHTTPRequestFailed, err))
	}
	return body, nil
}
