// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package nvd fetches CVE records from the NVD CVE API 2.0, paginating
// within bounded date windows under a fixed request throttle.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bonial-oss/nvd-mirror/internal/types"
	"github.com/bonial-oss/nvd-mirror/internal/window"
)

const (
	// DefaultBaseURL is the public NVD CVE API endpoint.
	DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	// MaxPageSize is the largest resultsPerPage the API accepts.
	MaxPageSize = 2000
	// MaxWindow is the widest date range the API accepts in one query.
	MaxWindow = 120 * 24 * time.Hour

	maxResponseSize = 256 * 1024 * 1024 // 256 MB
	dateLayout      = "2006-01-02T15:04:05.000"
	userAgent       = "nvd-mirror"
)

// Mode selects which timestamp a date window filters on.
type Mode int

const (
	ByPublishDate Mode = iota
	ByModifyDate
)

func (m Mode) String() string {
	if m == ByModifyDate {
		return "by-modify-date"
	}
	return "by-publish-date"
}

func (m Mode) params() (start, end string) {
	if m == ByModifyDate {
		return "lastModStartDate", "lastModEndDate"
	}
	return "pubStartDate", "pubEndDate"
}

// RetryPolicy controls how transient failures are retried. Waits grow
// exponentially from InitialInterval up to MaxInterval. MaxAttempts counts
// the first request; zero retries forever.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	Throttle   time.Duration
	MaxWindow  time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// PageFunc receives each decoded page of raw CVEs as it arrives.
type PageFunc func(cves []types.RawCVE) error

// Client is a sequential NVD API client. It is not safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	pageSize  int
	maxWindow time.Duration
	retry     RetryPolicy
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	maxBody   int64
}

// cursor tracks pagination within one window.
type cursor struct {
	window window.Window
	mode   Mode
	offset int
	size   int
	total  int
}

func (c *cursor) done() bool {
	return c.offset+c.size >= c.total
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.MaxWindow <= 0 || opts.MaxWindow > MaxWindow {
		opts.MaxWindow = MaxWindow
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:   opts.BaseURL,
		apiKey:    opts.APIKey,
		pageSize:  opts.PageSize,
		maxWindow: opts.MaxWindow,
		retry:     opts.Retry,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Every(opts.Throttle), 1),
		logger:    opts.Logger.Named("nvd"),
		maxBody:   maxResponseSize,
	}
}

// FetchSpan fetches every CVE in [start, end) for mode, splitting the span
// into windows no wider than the client's max window. Each page is handed to
// fn before the next request is made.
func (c *Client) FetchSpan(ctx context.Context, start, end time.Time, mode Mode, fn PageFunc) error {
	for w := window.New(start, end, c.maxWindow); w.Next(); {
		if err := c.walkRange(ctx, w.Window(), mode, fn); err != nil {
			return err
		}
	}
	return nil
}

// FetchRange returns every CVE in w for mode, across all pages.
func (c *Client) FetchRange(ctx context.Context, w window.Window, mode Mode) ([]types.RawCVE, error) {
	var all []types.RawCVE
	err := c.walkRange(ctx, w, mode, func(cves []types.RawCVE) error {
		all = append(all, cves...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (c *Client) walkRange(ctx context.Context, w window.Window, mode Mode, fn PageFunc) error {
	cur := &cursor{window: w, mode: mode, size: c.pageSize}
	for {
		page, err := c.fetchPage(ctx, cur)
		if err != nil {
			return fmt.Errorf("fetching %s window %s at offset %d: %w", mode, w, cur.offset, err)
		}
		cur.total = page.TotalResults

		c.logger.Debug("fetched page",
			zap.Stringer("mode", mode),
			zap.Stringer("window", w),
			zap.Int("offset", cur.offset),
			zap.Int("count", len(page.Vulnerabilities)),
			zap.Int("total", cur.total))

		cves := make([]types.RawCVE, len(page.Vulnerabilities))
		for i := range page.Vulnerabilities {
			cves[i] = page.Vulnerabilities[i].CVE
		}
		if err := fn(cves); err != nil {
			return err
		}

		if cur.done() {
			return nil
		}
		cur.offset += cur.size
	}
}

// fetchPage issues the request for the cursor's current offset, retrying
// transient failures under the retry policy. Every attempt waits on the
// throttle first.
func (c *Client) fetchPage(ctx context.Context, cur *cursor) (*types.CVEPage, error) {
	u := c.pageURL(cur)

	var page *types.CVEPage
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		data, err := c.get(ctx, u)
		if err != nil {
			return err
		}
		p, err := decodePage(data)
		if err != nil {
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("NVD request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, c.backOff(ctx), notify); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retry.InitialInterval
	eb.MaxInterval = c.retry.MaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if c.retry.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.retry.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (c *Client) pageURL(cur *cursor) string {
	startKey, endKey := cur.mode.params()
	q := url.Values{}
	q.Set(startKey, cur.window.Start.UTC().Format(dateLayout))
	q.Set(endKey, cur.window.End.UTC().Format(dateLayout))
	q.Set("startIndex", strconv.Itoa(cur.offset))
	q.Set("resultsPerPage", strconv.Itoa(cur.size))
	return c.baseURL + "?" + q.Encode()
}

// get performs a single GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTP request failed: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: u}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, backoff.Permanent(fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, c.maxBody, u))
	}
	return data, nil
}

// decodePage parses a response body, tolerating trailing commas.
func decodePage(data []byte) (*types.CVEPage, error) {
	var page types.CVEPage
	if err := json.Unmarshal(stripTrailingCommas(data), &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &page, nil
}
