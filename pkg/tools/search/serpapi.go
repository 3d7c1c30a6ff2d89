// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jllopis/shopper/pkg/errors"
)

// DefaultSerpAPIEndpoint is the SerpAPI JSON search endpoint.
const DefaultSerpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPI queries the Google engine through SerpAPI.
type SerpAPI struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

// NewSerpAPI returns a SerpAPI backend using the default endpoint.
func NewSerpAPI(apiKey string) *SerpAPI {
	return &SerpAPI{APIKey: apiKey, Endpoint: DefaultSerpAPIEndpoint, Client: http.DefaultClient}
}

// Name implements Backend.
func (s *SerpAPI) Name() string { return "serpapi" }

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"organic_results"`
}

// Search implements Backend.
func (s *SerpAPI) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "serpapi api key is not configured", nil)
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultSerpAPIEndpoint
	}
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.APIKey)
	params.Set("num", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build serpapi request", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, requestError(s.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(s.Name(), resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, errors.New(errors.CodeToolFailure, "decode serpapi response", err)
	}
	if body.Error != "" {
		return nil, errors.New(errors.CodeToolFailure, "serpapi: "+body.Error, nil)
	}

	out := make([]Result, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		if r.Link == "" {
			continue
		}
		out = append(out, Result{Title: strings.TrimSpace(r.Title), Link: r.Link})
	}
	return out, nil
}
