package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/telemetry"
)

func TestSerpAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google" || q.Get("q") != "best smartwatch" || q.Get("api_key") != "k" || q.Get("num") != "3" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"organic_results":[
			{"title":"A","link":"https://a.example"},
			{"title":"no link"},
			{"title":"B","link":"https://b.example"},
			{"title":"C","link":"https://c.example"},
			{"title":"D","link":"https://d.example"}]}`)
	}))
	defer srv.Close()

	backend := &SerpAPI{APIKey: "k", Endpoint: srv.URL, Client: srv.Client()}
	res := NewTool(backend).Invoke(context.Background(), "best smartwatch")
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	var got []Result
	if err := json.Unmarshal([]byte(res.Observation()), &got); err != nil {
		t.Fatalf("observation is not a result list: %v", err)
	}
	if len(got) != 3 || got[0].Link != "https://a.example" || got[2].Title != "C" {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestSerpAPIMissingKey(t *testing.T) {
	_, err := NewSerpAPI("").Search(context.Background(), "q", 3)
	if !errors.HasCode(err, errors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   errors.ErrorCode
	}{
		{http.StatusTooManyRequests, errors.CodeRateLimit},
		{http.StatusBadGateway, errors.CodeUnavailable},
		{http.StatusForbidden, errors.CodeUnauthorized},
		{http.StatusNotFound, errors.CodeToolFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			res := NewTool(&SerpAPI{APIKey: "k", Endpoint: srv.URL}).Invoke(context.Background(), "q")
			if !res.Failed() || res.Failure.Code != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, res.Failure)
			}
		})
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "fitness watch" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != BrowserUserAgent {
			t.Errorf("missing browser user agent")
		}
		fmt.Fprint(w, `<html><body>
<div class="result results_links results_links_deep web-result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fshop.example%2Fwatch&rut=abc">Fitness <b>Watch</b></a>
  <a class="result__snippet">Snippet</a>
</div>
<div class="result results_links"><span>no anchor</span></div>
<div class="result results_links"><a class="result__a" href="https://direct.example/p">Direct</a></div>
</body></html>`)
	}))
	defer srv.Close()

	got, err := (&DuckDuckGo{Endpoint: srv.URL}).Search(context.Background(), "fitness watch", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %+v", got)
	}
	if got[0].Link != "https://shop.example/watch" || got[0].Title != "Fitness Watch" {
		t.Fatalf("unexpected first result %+v", got[0])
	}
	if got[1].Link != "https://direct.example/p" {
		t.Fatalf("unexpected second result %+v", got[1])
	}
}

type stubBackend struct {
	calls int
	err   error
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Search(context.Context, string, int) ([]Result, error) {
	s.calls++
	return nil, s.err
}

func TestToolBlankQuery(t *testing.T) {
	backend := &stubBackend{}
	res := NewTool(backend).Invoke(context.Background(), "   ")
	if !res.Failed() || res.Failure.Code != errors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %+v", res.Failure)
	}
	if backend.calls != 0 {
		t.Fatalf("backend should not be called for a blank query")
	}
}

func TestToolOpensBreakerAfterRepeatedFailures(t *testing.T) {
	backend := &stubBackend{err: errors.New(errors.CodeUnavailable, "down", nil)}
	tool := NewTool(backend)
	for i := 0; i < 3; i++ {
		if res := tool.Invoke(context.Background(), "q"); !res.Failed() {
			t.Fatalf("expected failure on call %d", i)
		}
	}
	res := tool.Invoke(context.Background(), "q")
	if !res.Failed() || res.Failure.Code != errors.CodeUnavailable {
		t.Fatalf("expected open breaker failure, got %+v", res.Failure)
	}
	if backend.calls != 3 {
		t.Fatalf("expected breaker to short-circuit, backend called %d times", backend.calls)
	}
}

func TestToolEmptyResultsRenderAsList(t *testing.T) {
	res := NewTool(&stubBackend{}).Invoke(context.Background(), "q")
	if res.Observation() != "[]" {
		t.Fatalf("expected empty list, got %q", res.Observation())
	}
}

func TestToolLogsCarryRunID(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		event   string
	}{
		{name: "success", backend: &stubBackend{}, event: "search.complete"},
		{name: "failure", backend: &stubBackend{err: errors.New(errors.CodeUnavailable, "down", nil)}, event: "search.error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tool := NewTool(tt.backend, WithLogger(telemetry.NewLogger(&buf, "debug", "json")))
			ctx := core.WithRunID(context.Background(), "run-search-1")
			tool.Invoke(ctx, "q")

			out := buf.String()
			if !strings.Contains(out, tt.event) {
				t.Fatalf("expected %s in logs, got %s", tt.event, out)
			}
			if !strings.Contains(out, `"run_id":"run-search-1"`) {
				t.Fatalf("expected run_id in logs, got %s", out)
			}
		})
	}
}
