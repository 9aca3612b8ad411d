package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// Client implements ports.RemoteFile over HTTP.
type Client struct {
	http *http.Client
}

// New creates a client. timeout bounds HEAD requests only; downloads are
// bounded by the caller's context.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// ModifiedSince issues a conditional HEAD. 200 means the remote is newer,
// 304 means the local copy is current.
func (c *Client) ModifiedSince(ctx context.Context, url string, t time.Time) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("If-Modified-Since", t.UTC().Format(http.TimeFormat))

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %v: %w", url, err, domain.ErrUpstreamUnavailable)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotModified:
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("HEAD %s: %w", url, domain.ErrNotFound)
	}
	return false, fmt.Errorf("HEAD %s: status %d: %w", url, resp.StatusCode, domain.ErrUpstreamUnavailable)
}

// Fetch streams the remote body. The caller closes it.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// no client timeout on bodies; large GeoPackages take minutes
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v: %w", url, err, domain.ErrUpstreamUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d: %w", url, resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	return resp.Body, nil
}
