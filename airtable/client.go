// Package airtable is the gateway to the shared record store: a paginated
// read of every record and a one-request merge-patch per record.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/httpx"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrPaginationLoop = errors.New("pagination offset repeated")
)

// APIError carries the status and body of a failed store request.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Type != "" || e.Message != "" {
		return fmt.Sprintf("airtable %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	// RatePerSecond caps request rate; the store rejects bursts above 5/s.
	RatePerSecond float64
	PageSize      int
	Timeout       time.Duration
	RetryMax      int
}

type Client struct {
	opts    Options
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.airtable.com"
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 30 * time.Second
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 20 * time.Second
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	return &Client{
		opts:    opts,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
	}
}

type wireRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type page struct {
	Records []wireRecord `json:"records"`
	Offset  string       `json:"offset"`
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/v0/%s/%s",
		strings.TrimRight(c.opts.BaseURL, "/"),
		url.PathEscape(c.opts.BaseID),
		url.PathEscape(c.opts.Table))
}

// ListAll reads every record, following offset tokens until the store stops
// returning one. Records come back in store order.
func (c *Client) ListAll(ctx context.Context) ([]enrich.Record, error) {
	var out []enrich.Record
	seenIDs := map[string]bool{}
	seenOffsets := map[string]bool{}
	offset := ""
	for n := 1; ; n++ {
		p, err := c.listPage(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", n, err)
		}
		for _, r := range p.Records {
			if r.ID == "" || seenIDs[r.ID] {
				continue
			}
			seenIDs[r.ID] = true
			out = append(out, toRecord(r))
		}
		if p.Offset == "" {
			return out, nil
		}
		if seenOffsets[p.Offset] {
			return nil, fmt.Errorf("list page %d: %w: %s", n, ErrPaginationLoop, p.Offset)
		}
		seenOffsets[p.Offset] = true
		offset = p.Offset
	}
}

func (c *Client) listPage(ctx context.Context, offset string) (page, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(c.opts.PageSize))
	if offset != "" {
		q.Set("offset", offset)
	}
	var p page
	err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, &p)
	return p, err
}

// Get reads one record by id.
func (c *Client) Get(ctx context.Context, id string) (enrich.Record, error) {
	var r wireRecord
	if err := c.do(ctx, http.MethodGet, c.tableURL()+"/"+url.PathEscape(id), nil, &r); err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound {
			return enrich.Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return enrich.Record{}, err
	}
	return toRecord(r), nil
}

// Patch merges u into the record in a single request. Fields not in u are
// left untouched by the store.
func (c *Client) Patch(ctx context.Context, id string, u enrich.UpdateSet) error {
	if id == "" {
		return errors.New("patch: empty record id")
	}
	if u.Empty() {
		return nil
	}
	body, err := json.Marshal(map[string]any{"fields": u})
	if err != nil {
		return fmt.Errorf("patch %s: encode: %w", id, err)
	}
	if err := c.do(ctx, http.MethodPatch, c.tableURL()+"/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("patch %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var rb any
	if body != nil {
		rb = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, rb)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := httpx.ReadAllLimit(resp.Body, 16<<20)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError understands both error shapes the store uses:
// {"error":"NOT_FOUND"} and {"error":{"type":..,"message":..}}.
func decodeError(status int, raw []byte) error {
	e := &APIError{StatusCode: status, Body: string(raw)}
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &env) != nil || len(env.Error) == 0 {
		return e
	}
	var typ string
	if json.Unmarshal(env.Error, &typ) == nil {
		e.Type = typ
		return e
	}
	var obj struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(env.Error, &obj) == nil {
		e.Type, e.Message = obj.Type, obj.Message
	}
	return e
}

func toRecord(r wireRecord) enrich.Record {
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return enrich.Record{ID: r.ID, Fields: fields}
}
