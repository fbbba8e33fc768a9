// Package parcels fetches parcel geometry by block and lot from the NJ
// parcels service.
package parcels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/vacants-enricher/internal/httpx"
)

// ErrNotFound means the service has no parcel for the identifier.
var ErrNotFound = errors.New("parcel not found")

// ErrInvalidJSON means a 200 response did not carry a JSON document.
var ErrInvalidJSON = errors.New("invalid json")

// HTTPError is returned for any other non-200 response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("parcels http %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL string
	// Region is the municipality code prefixed to every identifier.
	Region   string
	Timeout  time.Duration
	RetryMax int
}

type Client struct {
	baseURL string
	region  string
	http    *retryablehttp.Client
}

func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 10 * time.Second
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://njparcels.com"
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		region:  opts.Region,
		http:    rc,
	}
}

// ParcelID formats the service identifier: region, block and lot joined by
// underscores.
func (c *Client) ParcelID(block, lot string) string {
	return c.region + "_" + block + "_" + lot
}

// Fetch returns the parcel's GeoJSON document exactly as the service sent it.
func (c *Client) Fetch(ctx context.Context, block, lot string) ([]byte, error) {
	if block == "" || lot == "" {
		return nil, errors.New("block and lot are required")
	}
	u := fmt.Sprintf("%s/api/v1.0/property/%s.json", c.baseURL, url.PathEscape(c.ParcelID(block, lot)))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := httpx.ReadAllLimit(resp.Body, 8<<20)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("parcel %s: %w", c.ParcelID(block, lot), ErrInvalidJSON)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
