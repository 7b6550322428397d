// internal/tools/fetcher.go
package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const (
	ExtractorVisible     = "visible"
	ExtractorReadability = "readability"
)

// removedElements never contribute visible text.
const removedElements = "script, style, header, footer, nav, aside, noscript, template"

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	MaxSizeMB int
	Extractor string
	Cache     PageCache
	Logger    *slog.Logger
}

// Fetcher downloads HTML pages and reduces them to visible text
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	maxSizeMB  int
	extractor  string
	cache      PageCache
	logger     *slog.Logger
}

// NewFetcher creates a fetcher on top of the shared outbound client
func NewFetcher(httpClient *http.Client, opts FetcherOptions) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 5
	}
	if opts.Extractor == "" {
		opts.Extractor = ExtractorVisible
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{
		httpClient: httpClient,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
		maxSizeMB:  opts.MaxSizeMB,
		extractor:  opts.Extractor,
		cache:      opts.Cache,
		logger:     opts.Logger.With("component", "fetcher"),
	}
}

// Fetch returns the visible text of pageURL cut to maxChars, or ok=false
// when the page could not be fetched or held no text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, maxChars int) (string, bool) {
	page, err := f.FetchPage(ctx, pageURL)
	if err != nil {
		f.logger.Debug("fetch failed", "url", pageURL, "err", err)
		return "", false
	}
	if page.Text == "" {
		return "", false
	}
	return Truncate(page.Text, maxChars, ""), true
}

// FetchPage retrieves pageURL and extracts its text. Errors wrap
// ErrNetwork or ErrContent.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if f.cache != nil {
		if page, ok := f.cache.Get(ctx, pageURL); ok {
			return page, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, contentType, err := f.fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	_, encoding, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		encoding = "utf-8"
	}
	text, err := f.extract(pageURL, body, contentType)
	if err != nil {
		return nil, err
	}

	page := &Page{
		URL:         pageURL,
		ContentType: contentType,
		Encoding:    encoding,
		Text:        text,
	}
	if f.cache != nil && text != "" {
		f.cache.Put(ctx, page)
	}
	return page, nil
}

// fetchHTML retrieves the raw bytes of an HTML document
func (f *Fetcher) fetchHTML(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrContent, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, "", fmt.Errorf("%w: unsupported content type %q", ErrContent, contentType)
	}

	maxBytes := int64(f.maxSizeMB) * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, "", fmt.Errorf("%w: content exceeds %dMB", ErrContent, f.maxSizeMB)
	}
	return body, contentType, nil
}

func (f *Fetcher) extract(pageURL string, body []byte, contentType string) (string, error) {
	if f.extractor == ExtractorReadability {
		if text := readableText(pageURL, body, contentType); text != "" {
			return text, nil
		}
	}
	return VisibleText(body, contentType)
}

// VisibleText decodes body to UTF-8, drops non-content elements and
// returns the remaining text with whitespace collapsed.
func VisibleText(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrContent, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrContent, err)
	}
	doc.Find(removedElements).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		collectText(n, &b)
	}
	return CollapseWhitespace(b.String()), nil
}

// collectText writes every text node under n, separated by spaces so that
// adjacent block elements do not run together.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func readableText(pageURL string, body []byte, contentType string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(r, parsed)
	if err != nil {
		return ""
	}
	return CollapseWhitespace(article.TextContent)
}
