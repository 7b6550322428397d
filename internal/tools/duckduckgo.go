// internal/tools/duckduckgo.go
package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoClient scrapes the keyless HTML endpoint of DuckDuckGo
type DuckDuckGoClient struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewDuckDuckGoClient creates a client; an empty baseURL selects the public endpoint
func NewDuckDuckGoClient(baseURL, userAgent string, httpClient *http.Client) *DuckDuckGoClient {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DuckDuckGoClient{BaseURL: baseURL, UserAgent: userAgent, HTTPClient: httpClient}
}

func (c *DuckDuckGoClient) Name() string { return "duckduckgo" }

// Search returns at most count organic results in page order
func (c *DuckDuckGoClient) Search(ctx context.Context, query string, count int, language string) ([]SearchResult, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrNetwork, err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if language != "" {
		req.Header.Set("Accept-Language", language)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: duckduckgo status %d", ErrNetwork, resp.StatusCode)
	}

	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrParse, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse results: %v", ErrParse, err)
	}

	seen := make(map[string]bool)
	var results []SearchResult
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		target := resolveDuckDuckGoLink(href)
		if target == "" || seen[target] {
			return true
		}
		seen[target] = true
		results = append(results, SearchResult{
			Title:  strings.TrimSpace(a.Text()),
			URL:    target,
			Engine: "duckduckgo",
		})
		return count <= 0 || len(results) < count
	})
	return results, nil
}

// resolveDuckDuckGoLink unwraps /l/?uddg= redirect links and drops
// anything that is not an external http(s) URL.
func resolveDuckDuckGoLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		u, err = url.Parse(target)
		if err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return ""
	}
	return u.String()
}
