// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package scrape implements the product_scraper capability. Each URL is
// fetched with a browser user agent, parsed, and run through a per-domain
// extractor; several URLs are fetched concurrently and reported in input order.
package scrape

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/resilience"
	"github.com/jllopis/shopper/pkg/tools"
)

// ToolName is the registry name of the scraper capability.
const ToolName = "product_scraper"

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 15 * time.Second
	// DefaultConcurrency bounds parallel fetches within one invocation.
	DefaultConcurrency = 4
	// DefaultUserAgent mimics a desktop Chrome browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

	maxPageBytes = 5 << 20
)

// Record is the scrape outcome for one URL. Exactly one of Error or the
// page fields is populated.
type Record struct {
	URL      string            `json:"url"`
	Specs    map[string]string `json:"specs,omitempty"`
	Features []string          `json:"features,omitempty"`
	Reviews  []string          `json:"reviews,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Scraper fetches and extracts product pages.
type Scraper struct {
	Client      *http.Client
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	Retry       resilience.RetryConfig
	Logger      *slog.Logger
}

// New returns a Scraper with default settings and no retries.
func New() *Scraper {
	return &Scraper{
		Client:      http.DefaultClient,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Retry:       resilience.DefaultRetryConfig().WithMaxAttempts(1),
		Logger:      slog.Default(),
	}
}

// Tool exposes the scraper as a capability.
func (s *Scraper) Tool() *tools.Func {
	return tools.NewFunc(ToolName,
		`Scrapes product specifications, features and up to 5 reviews from product pages (Amazon, Flipkart or generic shops). Input is a JSON list of URLs, e.g. ["https://example.com/p1"], or a single URL.`,
		[]core.Parameter{{Name: "input", Type: core.ParamArray, Description: "product page URLs", Required: true}},
		func(ctx context.Context, input any) core.Result {
			urls, err := NormalizeURLs(input)
			if err != nil {
				return core.FailFrom(err)
			}
			return core.OK(s.ScrapeAll(ctx, urls))
		})
}

// ScrapeAll scrapes every URL and returns one record per URL in input order.
// Failures are reported inside the records.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string) []Record {
	records := make([]Record, len(urls))
	limit := s.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			records[i] = s.Scrape(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// Scrape fetches and extracts a single URL.
func (s *Scraper) Scrape(ctx context.Context, raw string) Record {
	rec := Record{URL: raw}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		rec.Error = fmt.Sprintf("invalid URL %q", raw)
		return rec
	}

	page, err := resilience.Retry(ctx, s.retryConfig(ctx), func() (Page, error) {
		return s.fetch(ctx, u)
	})
	if err != nil {
		s.logger().WarnContext(ctx, "scrape.fetch.error",
			slog.String("url", raw),
			slog.String("error", err.Error()),
		)
		rec.Error = err.Error()
		return rec
	}

	rec.Specs = page.Specs
	rec.Features = page.Features
	rec.Reviews = page.Reviews
	if len(rec.Reviews) == 0 {
		rec.Reviews = []string{NoReviews}
	}
	s.logger().DebugContext(ctx, "scrape.fetch.complete",
		slog.String("url", raw),
		slog.Int("specs", len(rec.Specs)),
		slog.Int("reviews", len(page.Reviews)),
	)
	return rec
}

// StatusError reports a non-200 response. Wait carries the Retry-After
// header of throttled responses.
type StatusError struct {
	Code int
	Wait time.Duration
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

func (e *StatusError) RetryAfter() time.Duration { return e.Wait }

// retryAfter reads the delay-seconds form of Retry-After.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (s *Scraper) fetch(ctx context.Context, u *url.URL) (Page, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	ua := s.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Page{}, &StatusError{Code: resp.StatusCode, Wait: retryAfter(resp.Header)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	return ExtractorFor(u.Hostname())(doc), nil
}

func (s *Scraper) retryConfig(ctx context.Context) resilience.RetryConfig {
	rc := s.Retry
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	rc.IsRecoverable = retryable
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger().DebugContext(ctx, "scrape.fetch.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}
	return rc
}

// retryable retries throttling, server errors and transport failures.
func retryable(err error) bool {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (s *Scraper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
