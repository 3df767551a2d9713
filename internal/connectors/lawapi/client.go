package lawapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.Fetcher = (*Client)(nil)

// Stats counts upstream traffic for the run summary.
type Stats struct {
	Requests  int64
	Retries   int64
	Throttled int64
}

// Client is the single funnel for registry calls. Every request passes
// through one RateLimiter, so concurrent callers share the throttle.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *RateLimiter

	requests  atomic.Int64
	retries   atomic.Int64
	throttled atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a registry client. The limiter is shared by every call.
func NewClient(cfg Config, limiter *RateLimiter, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	if limiter == nil {
		limiter = NewRateLimiter(cfg.RequestsPerSecond, 0, nil, nil)
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the traffic counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests:  c.requests.Load(),
		Retries:   c.retries.Load(),
		Throttled: c.throttled.Load(),
	}
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// BaseURL returns the registry base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Fetch performs one logical request with throttling and retries.
// Failures are reported as *domain.FetchFailure, except the daily ceiling
// (domain.ErrDailyQuotaExceeded) and caller cancellation, which are
// returned as they are.
func (c *Client) Fetch(ctx context.Context, req driven.FetchRequest) (*domain.RawResponse, error) {
	target, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var last *domain.FetchFailure
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.retries.Add(1)
			delay := c.backoff(attempt)
			logger.Debug("lawapi: retry %d/%d for %s in %s (%v)", attempt, c.cfg.MaxRetries, req.Endpoint, delay, last)
			if err := c.limiter.Clock().Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, failure, err := c.do(ctx, req, target)
		if err != nil {
			return nil, err
		}
		if failure == nil {
			return resp, nil
		}

		failure.Attempts = attempt + 1
		last = failure
		if !failure.Transient() {
			return nil, failure
		}
	}

	return nil, last
}

// do performs a single HTTP round trip. A non-nil error is terminal for
// the whole fetch; a failure may be retried.
func (c *Client) do(ctx context.Context, req driven.FetchRequest, target string) (*domain.RawResponse, *domain.FetchFailure, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	c.requests.Add(1)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if isTimeout(err) {
			return nil, &domain.FetchFailure{Kind: domain.FailureTimeout, Err: errors.New(redact(err.Error(), c.cfg.APIKey))}, nil
		}
		return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Err: errors.New(redact(err.Error(), c.cfg.APIKey))}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if isTimeout(err) {
			return nil, &domain.FetchFailure{Kind: domain.FailureTimeout, Code: resp.StatusCode, Err: err}, nil
		}
		return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Err: fmt.Errorf("read body: %w", err)}, nil
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		c.throttled.Add(1)
		c.limiter.BlockFor(c.limiter.RetryAfter(resp))
		return nil, &domain.FetchFailure{Kind: domain.FailureRateLimited, Code: code}, nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, &domain.FetchFailure{Kind: domain.FailureUnauthorized, Code: code}, nil
	case code >= 500:
		if code == http.StatusServiceUnavailable {
			c.limiter.BlockFor(c.limiter.RetryAfter(resp))
		}
		return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Code: code}, nil
	case code < 200 || code >= 300:
		return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Code: code}, nil
	}

	if req.Endpoint != driven.EndpointPage {
		if apiErr := detectAPIError(body); apiErr != nil {
			switch apiErr.group() {
			case resultAuth:
				return nil, &domain.FetchFailure{Kind: domain.FailureUnauthorized, Code: resp.StatusCode, Err: apiErr}, nil
			case resultParameter:
				return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Code: http.StatusBadRequest, Err: apiErr}, nil
			case resultQuota:
				return nil, nil, fmt.Errorf("%w: %v", domain.ErrDailyQuotaExceeded, apiErr)
			default:
				return nil, &domain.FetchFailure{Kind: domain.FailureUpstream, Code: http.StatusBadGateway, Err: apiErr}, nil
			}
		}
	}

	return c.rawResponse(req, resp, body), nil, nil
}

func (c *Client) rawResponse(req driven.FetchRequest, resp *http.Response, body []byte) *domain.RawResponse {
	raw := &domain.RawResponse{
		ResponseKind: domain.ResponseDetail,
		Format:       domain.FormatStructured,
		DocumentKind: req.Kind,
		SerialNumber: req.Params.Get("ID"),
		URL:          redact(resp.Request.URL.String(), c.cfg.APIKey),
		StatusCode:   resp.StatusCode,
		Body:         body,
	}
	switch req.Endpoint {
	case driven.EndpointListing:
		raw.ResponseKind = domain.ResponseListing
	case driven.EndpointPage:
		raw.Format = domain.FormatMarkup
	}
	return raw
}

// buildURL resolves the endpoint and adds OC, type and target.
func (c *Client) buildURL(req driven.FetchRequest) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base url: %v", domain.ErrInvalidInput, err)
	}

	if req.Endpoint == driven.EndpointPage {
		ref, err := url.Parse(req.URL)
		if err != nil || req.URL == "" {
			return "", fmt.Errorf("%w: page url %q", domain.ErrInvalidInput, req.URL)
		}
		return base.ResolveReference(ref).String(), nil
	}

	var path string
	switch req.Endpoint {
	case driven.EndpointListing:
		path = listingPath
	case driven.EndpointDetail:
		path = detailPath
	default:
		return "", fmt.Errorf("%w: endpoint %q", domain.ErrInvalidInput, req.Endpoint)
	}
	if !req.Kind.Valid() {
		return "", fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, req.Kind)
	}

	q := url.Values{}
	for k, vs := range req.Params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("OC", c.cfg.APIKey)
	q.Set("type", "XML")
	q.Set("target", req.Kind.Target())

	u := base.ResolveReference(&url.URL{Path: path})
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.MaxRetryDelay {
			return c.cfg.MaxRetryDelay
		}
	}
	return d
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// redact hides the API key in URLs that end up in errors and logs.
func redact(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "***")
}

// apiErrorPayload covers the registry's error envelopes.
type apiErrorPayload struct {
	Code       string `xml:"code"`
	ResultCode string `xml:"resultCode"`
	Msg        string `xml:"msg"`
	Message    string `xml:"message"`
	ResultMsg  string `xml:"resultMsg"`
	Text       string `xml:",chardata"`
}

// errorRoots are the root elements used by error envelopes.
var errorRoots = map[string]bool{"result": true, "Law": true, "error": true, "OpenAPI_ServiceResponse": true}

// authMessages identify a key rejection in an envelope without a code.
var authMessages = []string{"검증에 실패", "인증", "OC"}

// detectAPIError returns the error envelope in body, if any. Regular
// payloads are recognised by their root element without a full decode.
func detectAPIError(body []byte) *APIError {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var root *xml.StartElement
	for root == nil {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = &se
		}
	}
	if !errorRoots[root.Name.Local] {
		return nil
	}

	var p apiErrorPayload
	if err := dec.DecodeElement(&p, root); err != nil {
		return nil
	}

	code := firstNonEmpty(p.Code, p.ResultCode)
	msg := strings.TrimSpace(firstNonEmpty(p.Msg, p.Message, p.ResultMsg, p.Text))
	if code == "" || code == "00" {
		if code == "" && containsAny(msg, authMessages) {
			return &APIError{Code: "01", Message: msg}
		}
		return nil
	}
	return &APIError{Code: code, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
