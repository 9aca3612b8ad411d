// Package stac resolves USGS 3DEP workunits to their EPT sources through the
// public STAC catalog.
package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// Client implements ports.EPTResolver against a static STAC catalog.
type Client struct {
	catalogURL string
	http       *http.Client
}

// New creates a client for the catalog at catalogURL.
func New(catalogURL string, timeout time.Duration) *Client {
	return &Client{
		catalogURL: catalogURL,
		http:       &http.Client{Timeout: timeout},
	}
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type catalog struct {
	Links []link `json:"links"`
}

type item struct {
	Properties struct {
		EPSG *int `json:"proj:epsg"`
	} `json:"properties"`
	Assets map[string]struct {
		Href string `json:"href"`
	} `json:"assets"`
}

// Resolve finds the first catalog item whose link contains the workunit and
// reads its EPSG code and ept.json asset.
func (c *Client) Resolve(ctx context.Context, workunit string) (domain.EPTData, error) {
	if strings.TrimSpace(workunit) == "" {
		return domain.EPTData{}, &domain.ValidationError{Field: "workunit", Reason: "is required"}
	}

	var cat catalog
	if err := c.getJSON(ctx, c.catalogURL, &cat); err != nil {
		return domain.EPTData{}, err
	}

	var itemURL string
	for _, l := range cat.Links {
		if l.Rel == "item" && strings.Contains(l.Href, workunit) {
			itemURL = l.Href
			break
		}
	}
	if itemURL == "" {
		return domain.EPTData{}, fmt.Errorf("workunit %s: no STAC item: %w", workunit, domain.ErrNotFound)
	}
	itemURL, err := resolveRef(c.catalogURL, itemURL)
	if err != nil {
		return domain.EPTData{}, fmt.Errorf("item href: %w", domain.ErrMalformedMetadata)
	}

	var it item
	if err := c.getJSON(ctx, itemURL, &it); err != nil {
		return domain.EPTData{}, err
	}
	if it.Properties.EPSG == nil || *it.Properties.EPSG <= 0 {
		return domain.EPTData{}, fmt.Errorf("workunit %s: item has no proj:epsg: %w", workunit, domain.ErrMalformedMetadata)
	}
	asset, ok := it.Assets["ept.json"]
	if !ok || asset.Href == "" {
		return domain.EPTData{}, fmt.Errorf("workunit %s: item has no ept.json asset: %w", workunit, domain.ErrMalformedMetadata)
	}
	href, err := resolveRef(itemURL, asset.Href)
	if err != nil {
		return domain.EPTData{}, fmt.Errorf("ept.json href: %w", domain.ErrMalformedMetadata)
	}

	return domain.EPTData{
		Workunit:   workunit,
		CRS:        domain.EPSG(*it.Properties.EPSG),
		EPTJSONURL: href,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", u, domain.ErrMalformedMetadata)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %v: %w", u, err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: status %d: %w", u, resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", u, err, domain.ErrMalformedMetadata)
	}
	return nil
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
