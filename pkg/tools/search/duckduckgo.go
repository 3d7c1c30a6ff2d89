// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jllopis/shopper/pkg/errors"
)

// DefaultDuckDuckGoEndpoint is the keyless HTML search endpoint.
const DefaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// BrowserUserAgent is sent by the HTML-facing backends.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no API key.
type DuckDuckGo struct {
	Endpoint string
	Client   *http.Client
}

// NewDuckDuckGo returns a DuckDuckGo backend using the default endpoint.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{Endpoint: DefaultDuckDuckGoEndpoint, Client: http.DefaultClient}
}

// Name implements Backend.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Backend.
func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]Result, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = DefaultDuckDuckGoEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build duckduckgo request", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, requestError(d.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(d.Name(), resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "parse duckduckgo results", err)
	}

	var out []Result
	doc.Find("div.result.results_links").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n > 0 && len(out) >= n {
			return false
		}
		a := s.Find("a.result__a").First()
		href, _ := a.Attr("href")
		if link := unwrapRedirect(href); link != "" {
			out = append(out, Result{Title: strings.Join(strings.Fields(a.Text()), " "), Link: link})
		}
		return true
	})
	return out, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=<target> tracking links.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasPrefix(u.Path, "/l/") {
		return target
	}
	return href
}
