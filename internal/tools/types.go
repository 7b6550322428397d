// internal/tools/types.go
package tools

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// Failure classes surfaced by fetchers and search providers. Callers
// compare with errors.Is; both are recovered inside WebSearch.
var (
	ErrNetwork     = errors.New("network failure")
	ErrContent     = errors.New("content failure")
	ErrParse       = errors.New("parse failure")
	ErrRateLimited = errors.New("search provider rate limited")
)

// SearchResult is one ranked hit returned by a Provider
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
	Engine  string `json:"engine,omitempty"`
}

// Provider returns candidate result URLs in rank order.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int, language string) ([]SearchResult, error)
}

// PageFetcher retrieves one page and reduces it to visible text.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*Page, error)
}

// Page is the cleaned result of a successful fetch.
type Page struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Encoding    string `json:"encoding"`
	Text        string `json:"text"`
}

// IsUTF8 reports whether the page was served in (or detected as) UTF-8.
func (p *Page) IsUTF8() bool {
	return strings.EqualFold(p.Encoding, "utf-8") || strings.EqualFold(p.Encoding, "utf8")
}

// Truncate cuts s to at most max runes. When marker is non-empty and s is
// cut, the marker is appended inside the budget.
func Truncate(s string, max int, marker string) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	m := utf8.RuneCountInString(marker)
	if m >= max {
		return string(runes[:max])
	}
	return strings.TrimRight(string(runes[:max-m]), " ") + marker
}

// CollapseWhitespace joins all whitespace-separated fields with single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
