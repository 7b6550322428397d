// internal/tools/websearch.go
package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Strategy selects how candidate pages are fetched
type Strategy string

const (
	// StrategySequential fetches in rank order and stops once enough
	// snippets are collected.
	StrategySequential Strategy = "sequential"
	// StrategyConcurrent fetches every candidate at once, then filters.
	StrategyConcurrent Strategy = "concurrent"
)

const snippetMarker = "..."

// SearchOptions configures WebSearch
type SearchOptions struct {
	Strategy            Strategy
	CandidateMultiplier int
	MaxQueryChars       int
	SnippetChars        int
	RequireUTF8         bool
	Language            string
	Timeout             time.Duration
	Logger              *slog.Logger
}

// WebSearch turns keywords into short text snippets from top-ranked pages
type WebSearch struct {
	provider Provider
	fetcher  PageFetcher
	breaker  *CircuitBreaker
	opts     SearchOptions
	logger   *slog.Logger
}

// NewWebSearch wires a provider and a fetcher. breaker may be nil.
func NewWebSearch(provider Provider, fetcher PageFetcher, breaker *CircuitBreaker, opts SearchOptions) *WebSearch {
	if opts.Strategy == "" {
		opts.Strategy = StrategySequential
	}
	if opts.CandidateMultiplier < 2 {
		opts.CandidateMultiplier = 2
	}
	if opts.CandidateMultiplier > 3 {
		opts.CandidateMultiplier = 3
	}
	if opts.MaxQueryChars <= 0 {
		opts.MaxQueryChars = 100
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = 300
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WebSearch{
		provider: provider,
		fetcher:  fetcher,
		breaker:  breaker,
		opts:     opts,
		logger:   opts.Logger.With("component", "search", "provider", provider.Name()),
	}
}

// Search returns at most maxResults snippets in provider-rank order. It
// never fails: provider and page errors yield fewer (possibly zero) snippets.
func (w *WebSearch) Search(ctx context.Context, keywords string, maxResults int) []string {
	query := Truncate(strings.TrimSpace(keywords), w.opts.MaxQueryChars, "")
	if query == "" || maxResults <= 0 {
		return nil
	}

	urls, err := w.candidates(ctx, query, maxResults*w.opts.CandidateMultiplier)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			w.logger.Warn("rate limited, returning no results", "query", query)
		case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrTooManyRequests):
			w.logger.Warn("provider circuit open, skipping search", "query", query)
		default:
			w.logger.Error("search failed", "query", query, "err", err)
		}
		return nil
	}
	if len(urls) == 0 {
		return nil
	}

	var snippets []string
	if w.opts.Strategy == StrategyConcurrent {
		snippets = w.fetchConcurrent(ctx, urls, maxResults)
	} else {
		snippets = w.fetchSequential(ctx, urls, maxResults)
	}
	w.logger.Info("search complete", "query", query, "candidates", len(urls), "snippets", len(snippets))
	return snippets
}

func (w *WebSearch) candidates(ctx context.Context, query string, count int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	var results []SearchResult
	call := func() error {
		var err error
		results, err = w.provider.Search(ctx, query, count, w.opts.Language)
		return err
	}
	var err error
	if w.breaker != nil {
		err = w.breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
		if len(urls) == count {
			break
		}
	}
	return urls, nil
}

func (w *WebSearch) fetchSequential(ctx context.Context, urls []string, maxResults int) []string {
	var snippets []string
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		page, err := w.fetcher.FetchPage(ctx, u)
		if s, ok := w.snippet(u, page, err); ok {
			snippets = append(snippets, s)
			if len(snippets) == maxResults {
				break
			}
		}
	}
	return snippets
}

func (w *WebSearch) fetchConcurrent(ctx context.Context, urls []string, maxResults int) []string {
	pages := make([]*Page, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			pages[i], errs[i] = w.fetcher.FetchPage(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var snippets []string
	for i, u := range urls {
		if s, ok := w.snippet(u, pages[i], errs[i]); ok {
			snippets = append(snippets, s)
			if len(snippets) == maxResults {
				break
			}
		}
	}
	return snippets
}

func (w *WebSearch) snippet(u string, page *Page, err error) (string, bool) {
	if err != nil || page == nil {
		w.logger.Debug("skipping candidate", "url", u, "err", err)
		return "", false
	}
	if w.opts.RequireUTF8 && !page.IsUTF8() {
		w.logger.Debug("skipping non-utf8 candidate", "url", u, "encoding", page.Encoding)
		return "", false
	}
	if page.Text == "" {
		return "", false
	}
	return Truncate(page.Text, w.opts.SnippetChars, snippetMarker), true
}
