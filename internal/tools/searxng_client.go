// internal/tools/searxng_client.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// SearXNGClient queries a SearXNG instance through its JSON API
type SearXNGClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSearXNGClient creates a new SearXNG client
func NewSearXNGClient(baseURL string, httpClient *http.Client) *SearXNGClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SearXNGClient{BaseURL: baseURL, HTTPClient: httpClient}
}

func (c *SearXNGClient) Name() string { return "searxng" }

// Search returns at most count ranked results for query
func (c *SearXNGClient) Search(ctx context.Context, query string, count int, language string) ([]SearchResult, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrNetwork, err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/search"
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	if language != "" {
		q.Set("language", language)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: searxng status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	var payload struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: searxng response: %v", ErrParse, err)
	}

	results := make([]SearchResult, 0, count)
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, r)
		if count > 0 && len(results) == count {
			break
		}
	}
	return results, nil
}
