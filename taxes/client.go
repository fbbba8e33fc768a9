// Package taxes looks up municipal tax accounts by block and lot through the
// city's HTML payment form. The site has no API: a lookup is a GET that opens
// a session followed by a form POST on the same session, and the answer is
// scraped from the returned page.
package taxes

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/yourorg/vacants-enricher/internal/extract"
	"github.com/yourorg/vacants-enricher/internal/httpx"
)

// State is where a lookup ended.
type State string

const (
	StateSuccess          State = "Success"
	StateNoAccountFound   State = "NoAccountFound"
	StateValidationError  State = "ValidationError"
	StateTransportFailure State = "TransportFailure"
)

// Result is the outcome of one lookup. Block and Lot always echo what was
// submitted; PageBlock and PageLot are what the result page printed back, when
// it printed anything.
type Result struct {
	State      State
	Block      string
	Lot        string
	PageBlock  string
	PageLot    string
	Fields     map[string]string
	Errors     []string
	StatusCode int
	Err        error
	URL        string
	Body       []byte
}

// Detail is a one-line description of a non-success result.
func (r Result) Detail() string {
	switch r.State {
	case StateValidationError:
		return strings.Join(r.Errors, ", ")
	case StateTransportFailure:
		if r.Err != nil {
			return r.Err.Error()
		}
		return fmt.Sprintf("HTTP Status: %d", r.StatusCode)
	case StateNoAccountFound:
		return "no account number on result page"
	default:
		return ""
	}
}

type Options struct {
	BaseURL        string
	LookupPath     string
	AccountContext string
	UserAgent      string
	Timeout        time.Duration
	Fields         []extract.Field
	// MaxBody caps how much of a page is read.
	MaxBody int64
}

type Client struct {
	opts Options
	// Transport overrides the HTTP transport of every session; tests use it.
	Transport http.RoundTripper
}

func NewClient(opts Options) *Client {
	if opts.LookupPath == "" {
		opts.LookupPath = "/ViewPay"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if len(opts.Fields) == 0 {
		opts.Fields = DefaultFields
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 4 << 20
	}
	return &Client{opts: opts}
}

// newSession returns a client with its own cookie jar so cookies set by the
// form page are sent with the submission and never leak between lookups.
func (c *Client) newSession() (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	rc := resty.New()
	if c.Transport != nil {
		rc.SetTransport(c.Transport)
	}
	rc.SetBaseURL(strings.TrimRight(c.opts.BaseURL, "/"))
	rc.SetCookieJar(jar)
	rc.SetTimeout(c.opts.Timeout)
	rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if c.opts.UserAgent != "" {
		rc.SetHeader("User-Agent", c.opts.UserAgent)
	}
	return rc, nil
}

// Lookup runs the full form flow for one block and lot. It never returns an
// error: transport problems are reported as StateTransportFailure.
func (c *Client) Lookup(ctx context.Context, block, lot string) Result {
	res := Result{Block: block, Lot: lot}
	fail := func(status int, err error) Result {
		res.State = StateTransportFailure
		res.StatusCode = status
		res.Err = err
		return res
	}

	session, err := c.newSession()
	if err != nil {
		return fail(0, err)
	}
	query := url.Values{}
	if c.opts.AccountContext != "" {
		query.Set(formAccount, c.opts.AccountContext)
	}

	// Init -> FormLoaded
	page, err := session.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(c.opts.LookupPath)
	if err != nil {
		return fail(0, fmt.Errorf("load form: %w", err))
	}
	if page.StatusCode() != http.StatusOK {
		return fail(page.StatusCode(), nil)
	}
	form := c.formValues(page.Body(), block, lot)

	// FormLoaded -> Submitted
	resp, err := session.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetFormDataFromValues(form).
		Post(c.opts.LookupPath)
	if err != nil {
		return fail(0, fmt.Errorf("submit form: %w", err))
	}
	res.URL = resp.Request.URL
	if resp.StatusCode() != http.StatusOK {
		return fail(resp.StatusCode(), nil)
	}
	body := resp.Body()
	if int64(len(body)) > c.opts.MaxBody {
		return fail(resp.StatusCode(), httpx.ErrTooLarge)
	}
	res.Body = body

	// Submitted -> Parsed
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fail(resp.StatusCode(), fmt.Errorf("parse result page: %w", err))
	}
	res.StatusCode = resp.StatusCode()
	res.PageBlock, _ = extract.ByInputID(doc, echoBlock)
	res.PageLot, _ = extract.ByInputID(doc, echoLot)

	if extract.HasValidationBanner(doc) {
		res.State = StateValidationError
		res.Errors = extract.ValidationErrors(doc)
		if len(res.Errors) == 0 {
			res.Errors = []string{"lookup rejected"}
		}
		return res
	}

	fields := extract.ExtractAll(doc, c.opts.Fields)
	if fields[FieldAccountNumber] == "" {
		res.State = StateNoAccountFound
		return res
	}
	res.State = StateSuccess
	res.Fields = fields
	return res
}

// formValues builds the fixed submission: pinned account context, the
// variable block and lot, empty qualifier and monetary placeholders, plus any
// hidden anti-forgery tokens the form page carried.
func (c *Client) formValues(formPage []byte, block, lot string) url.Values {
	v := url.Values{}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(formPage)); err == nil {
		doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
			name, ok := s.Attr("name")
			if !ok || !strings.HasPrefix(name, "__") {
				return
			}
			v.Set(name, s.AttrOr("value", ""))
		})
	}
	v.Set(formAccount, c.opts.AccountContext)
	v.Set(formBlock, block)
	v.Set(formLot, lot)
	v.Set(formQualifier, "")
	for _, p := range formPlaceholders {
		v.Set(p, "")
	}
	return v
}
