// Package geocode resolves street addresses to coordinates through the
// Google Geocoding API.
package geocode

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

// Location is a point in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatusError is returned when the API answered but did not return a result:
// ZERO_RESULTS, OVER_QUERY_LIMIT, REQUEST_DENIED and friends.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Status
	}
	return e.Status + ": " + e.Message
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("geocode http %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(apiKey string, opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	} else {
		rc.HTTPClient.Timeout = 10 * time.Second
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://maps.googleapis.com"
	}
	return &Client{
		key:     apiKey,
		baseURL: strings.TrimRight(base, "/"),
		http:    rc,
	}
}

type response struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location Location `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the first candidate for query. The caller is expected to
// have added enough locality context for the first result to be the right
// one.
func (c *Client) Geocode(ctx context.Context, query string) (Location, error) {
	if strings.TrimSpace(query) == "" {
		return Location{}, errors.New("empty geocode query")
	}
	q := url.Values{}
	q.Set("address", query)
	q.Set("key", c.key)
	u := fmt.Sprintf("%s/maps/api/geocode/json?%s", c.baseURL, q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, redactKey(err, c.key)
	}
	defer resp.Body.Close()
	body, err := httpx.ReadAllLimit(resp.Body, 1<<20)
	if err != nil {
		return Location{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Location{}, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return Location{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if out.Status != "OK" || len(out.Results) == 0 {
		status := out.Status
		if status == "" {
			status = "EMPTY_STATUS"
		}
		return Location{}, &StatusError{Status: status, Message: out.ErrorMessage}
	}
	return out.Results[0].Geometry.Location, nil
}

// redactKey keeps the API key out of errors that echo the request URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
