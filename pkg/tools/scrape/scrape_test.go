package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/goleak"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/telemetry"
)

func TestNormalizeURLs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "literal list", input: []string{"https://a.example", "https://b.example"}, want: []string{"https://a.example", "https://b.example"}},
		{name: "any list", input: []any{"https://a.example"}, want: []string{"https://a.example"}},
		{name: "json list string", input: `["https://www.flipkart.com/p/itm1", "https://a.example"]`, want: []string{"https://www.flipkart.com/p/itm1", "https://a.example"}},
		{name: "json scalar string", input: `"https://a.example"`, want: []string{"https://a.example"}},
		{name: "single url", input: "https://example.com/product1", want: []string{"https://example.com/product1"}},
		{name: "fenced list", input: "```json\n[\"https://a.example\"]\n```", want: []string{"https://a.example"}},
		{name: "object wrapper", input: map[string]any{"urls": []any{"https://a.example", " "}}, want: []string{"https://a.example"}},
		{name: "quoted single url", input: "'https://a.example'", want: []string{"https://a.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURLs(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNormalizeURLsEmpty(t *testing.T) {
	for _, input := range []any{nil, "", "[]", []string{" "}} {
		if _, err := NormalizeURLs(input); !errors.HasCode(err, errors.CodeInvalidInput) {
			t.Fatalf("expected INVALID_INPUT for %#v, got %v", input, err)
		}
	}
}

const amazonPage = `<html><body>
<span id="productTitle">  Acme Watch 2 </span>
<table id="productDetails_techSpec_section_1">
  <tr><th>Battery</th><td>7 days</td></tr>
  <tr><th>Weight</th><td>32 g</td></tr>
</table>
<div id="feature-bullets"><ul><li><span>GPS built in</span></li><li><span>AMOLED display</span></li></ul></div>
<div class="review-text-content"><span>Battery lasts a week.</span></div>
<div class="review-text-content"><span>Display is bright.</span></div>
</body></html>`

const flipkartPage = `<html><body>
<span class="B_NuCI">Poco X6 Pro</span>
<table class="_14cfVK"><tr><td>RAM</td><td>8 GB</td></tr><tr><td>only one</td></tr></table>
<div class="_2418kt"><ul><li>120Hz</li></ul></div>
<div class="t-ZTKy"><div>Great phone</div></div>
</body></html>`

const genericPage = `<html><body>
<h2>Trail Runner</h2>
<ul><li>Weight: 250 g</li><li>no colon here</li><li>Drop : 8 mm</li></ul>
<div class="reviews"><p class="review-body">Comfortable for long runs.</p></div>
<div class="user-review">Runs small.</div>
</body></html>`

func extract(t *testing.T, host, page string) Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return ExtractorFor(host)(doc)
}

func TestAmazonExtractor(t *testing.T) {
	p := extract(t, "www.amazon.in", amazonPage)
	if p.Specs[TitleKey] != "Acme Watch 2" || p.Specs["Battery"] != "7 days" || p.Specs["Weight"] != "32 g" {
		t.Fatalf("unexpected specs %v", p.Specs)
	}
	if len(p.Features) != 2 || p.Features[1] != "AMOLED display" {
		t.Fatalf("unexpected features %v", p.Features)
	}
	if len(p.Reviews) != 2 || p.Reviews[0] != "Battery lasts a week." {
		t.Fatalf("unexpected reviews %v", p.Reviews)
	}
}

func TestFlipkartExtractor(t *testing.T) {
	p := extract(t, "www.flipkart.com", flipkartPage)
	if p.Specs[TitleKey] != "Poco X6 Pro" || p.Specs["RAM"] != "8 GB" {
		t.Fatalf("unexpected specs %v", p.Specs)
	}
	if _, ok := p.Specs["only one"]; ok {
		t.Fatalf("single-cell rows must be skipped")
	}
	if len(p.Features) != 1 || len(p.Reviews) != 1 || p.Reviews[0] != "Great phone" {
		t.Fatalf("unexpected page %+v", p)
	}
}

func TestGenericExtractor(t *testing.T) {
	p := extract(t, "shop.example", genericPage)
	if p.Specs[TitleKey] != "Trail Runner" || p.Specs["Weight"] != "250 g" || p.Specs["Drop"] != "8 mm" {
		t.Fatalf("unexpected specs %v", p.Specs)
	}
	if len(p.Reviews) != 2 || p.Reviews[0] != "Comfortable for long runs." || p.Reviews[1] != "Runs small." {
		t.Fatalf("unexpected reviews %v", p.Reviews)
	}
}

func TestMissingTitleAndReviewCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<div class="review">review %d</div>`, i)
	}
	b.WriteString("</body></html>")
	p := extract(t, "shop.example", b.String())
	if p.Specs[TitleKey] != UnknownTitle {
		t.Fatalf("expected N/A title, got %q", p.Specs[TitleKey])
	}
	if len(p.Reviews) != MaxReviews {
		t.Fatalf("expected %d reviews, got %d", MaxReviews, len(p.Reviews))
	}
}

func newShop(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if !strings.Contains(r.Header.Get("User-Agent"), "Chrome") {
				t.Errorf("expected browser user agent, got %q", r.Header.Get("User-Agent"))
			}
			fmt.Fprint(w, genericPage)
		case "/empty":
			fmt.Fprint(w, "<html><body><h1>Bare</h1></body></html>")
		case "/slow":
			time.Sleep(20 * time.Millisecond)
			fmt.Fprint(w, genericPage)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestToolScrapesInInputOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	srv := newShop(t)
	defer srv.Close()

	s := New()
	s.Client = srv.Client()
	input := fmt.Sprintf(`["%s/slow", "%s/missing", "%s/empty", "not a url"]`, srv.URL, srv.URL, srv.URL)
	res := s.Tool().Invoke(context.Background(), input)
	if res.Failed() {
		t.Fatalf("unexpected failure %+v", res.Failure)
	}

	var records []Record
	if err := json.Unmarshal([]byte(res.Observation()), &records); err != nil {
		t.Fatalf("observation is not a record list: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].URL != srv.URL+"/slow" || records[0].Specs[TitleKey] != "Trail Runner" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Error != "HTTP 404" || records[1].Specs != nil {
		t.Fatalf("expected HTTP 404 record, got %+v", records[1])
	}
	if len(records[2].Reviews) != 1 || records[2].Reviews[0] != NoReviews {
		t.Fatalf("expected placeholder review, got %+v", records[2])
	}
	if !strings.HasPrefix(records[3].Error, "invalid URL") {
		t.Fatalf("expected invalid URL record, got %+v", records[3])
	}
}

func TestRetryOnServerError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, genericPage)
	}))
	defer srv.Close()

	s := New()
	s.Client = srv.Client()
	s.Retry = s.Retry.WithMaxAttempts(2).WithInitialDelay(time.Millisecond)
	rec := s.Scrape(context.Background(), srv.URL+"/p")
	if rec.Error != "" || hits.Load() != 2 {
		t.Fatalf("expected success on second attempt, got %+v after %d hits", rec, hits.Load())
	}
}

func TestFetchLogsCarryRunID(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		events []string
	}{
		{name: "retried then complete", path: "/flaky", events: []string{"scrape.fetch.retry", "scrape.fetch.complete"}},
		{name: "error", path: "/gone", events: []string{"scrape.fetch.error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/gone":
					http.NotFound(w, r)
				case hits.Add(1) == 1:
					w.WriteHeader(http.StatusServiceUnavailable)
				default:
					fmt.Fprint(w, genericPage)
				}
			}))
			defer srv.Close()

			var buf bytes.Buffer
			s := New()
			s.Client = srv.Client()
			s.Logger = telemetry.NewLogger(&buf, "debug", "json")
			s.Retry = s.Retry.WithMaxAttempts(2).WithInitialDelay(time.Millisecond)
			s.Scrape(core.WithRunID(context.Background(), "run-scrape-1"), srv.URL+tt.path)

			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if !strings.Contains(line, `"run_id":"run-scrape-1"`) {
					t.Fatalf("log line without run_id: %s", line)
				}
			}
			for _, event := range tt.events {
				if !strings.Contains(buf.String(), event) {
					t.Fatalf("expected %s in logs, got %s", event, buf.String())
				}
			}
		})
	}
}

func TestStatusErrorCarriesRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{header: "2", want: 2 * time.Second},
		{header: "", want: 0},
		{header: "Wed, 21 Oct 2026 07:28:00 GMT", want: 0},
		{header: "-1", want: 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Retry-After", tt.header)
		}
		if got := (&StatusError{Code: 429, Wait: retryAfter(h)}).RetryAfter(); got != tt.want {
			t.Fatalf("Retry-After %q = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New()
	s.Client = srv.Client()
	s.Retry = s.Retry.WithMaxAttempts(3).WithInitialDelay(time.Millisecond)
	rec := s.Scrape(context.Background(), srv.URL)
	if rec.Error != "HTTP 403" || hits.Load() != 1 {
		t.Fatalf("expected a single 403 attempt, got %+v after %d hits", rec, hits.Load())
	}
}

func TestToolRejectsEmptyInput(t *testing.T) {
	res := New().Tool().Invoke(context.Background(), "  ")
	if !res.Failed() || res.Failure.Code != errors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %+v", res.Failure)
	}
}
