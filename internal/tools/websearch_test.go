package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-jarvis/internal/logging"
)

type fakeProvider struct {
	mu      sync.Mutex
	urls    []string
	err     error
	queries []string
	counts  []int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, query string, count int, _ string) ([]SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	p.counts = append(p.counts, count)
	if p.err != nil {
		return nil, p.err
	}
	var out []SearchResult
	for _, u := range p.urls {
		out = append(out, SearchResult{URL: u})
	}
	return out, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]*Page
	delays  map[string]time.Duration
	fetched []string
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) (*Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	delay := f.delays[url]
	page, ok := f.pages[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: 404", ErrContent)
	}
	return page, nil
}

func utf8Page(url, text string) *Page {
	return &Page{URL: url, Encoding: "utf-8", Text: text}
}

func newSearch(p Provider, f PageFetcher, strategy Strategy) *WebSearch {
	return NewWebSearch(p, f, nil, SearchOptions{
		Strategy:     strategy,
		RequireUTF8:  true,
		SnippetChars: 300,
		Logger:       logging.Discard(),
	})
}

func TestSearch_SequentialStopsEarly(t *testing.T) {
	provider := &fakeProvider{urls: []string{"u1", "u2", "u3", "u4"}}
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"u1": utf8Page("u1", "first"),
		"u2": utf8Page("u2", "second"),
		"u3": utf8Page("u3", "third"),
		"u4": utf8Page("u4", "fourth"),
	}}

	got := newSearch(provider, fetcher, StrategySequential).Search(context.Background(), "tesla stock", 2)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, []string{"u1", "u2"}, fetcher.fetched)
	assert.Equal(t, []int{4}, provider.counts)
}

func TestSearch_SkipsFailuresAndNonUTF8(t *testing.T) {
	provider := &fakeProvider{urls: []string{"bad", "latin", "good1", "good2"}}
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"latin": {URL: "latin", Encoding: "windows-1252", Text: "café"},
		"good1": utf8Page("good1", "one"),
		"good2": utf8Page("good2", "two"),
	}}

	for _, strategy := range []Strategy{StrategySequential, StrategyConcurrent} {
		t.Run(string(strategy), func(t *testing.T) {
			got := newSearch(provider, fetcher, strategy).Search(context.Background(), "q", 2)
			assert.Equal(t, []string{"one", "two"}, got)
		})
	}
}

func TestSearch_ConcurrentKeepsRankOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	provider := &fakeProvider{urls: []string{"slow", "fast", "mid", "extra"}}
	fetcher := &fakeFetcher{
		pages: map[string]*Page{
			"slow":  utf8Page("slow", "rank one"),
			"fast":  utf8Page("fast", "rank two"),
			"mid":   utf8Page("mid", "rank three"),
			"extra": utf8Page("extra", "rank four"),
		},
		delays: map[string]time.Duration{"slow": 50 * time.Millisecond, "mid": 10 * time.Millisecond},
	}

	got := newSearch(provider, fetcher, StrategyConcurrent).Search(context.Background(), "q", 2)
	assert.Equal(t, []string{"rank one", "rank two"}, got)
	assert.Len(t, fetcher.fetched, 4)
}

func TestSearch_SnippetsRespectCapAndCount(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor ", 100)
	provider := &fakeProvider{urls: []string{"a", "b", "c", "d", "e", "f"}}
	fetcher := &fakeFetcher{pages: map[string]*Page{}}
	for _, u := range provider.urls {
		fetcher.pages[u] = utf8Page(u, long)
	}

	for _, max := range []int{1, 2, 3} {
		got := newSearch(provider, fetcher, StrategyConcurrent).Search(context.Background(), "q", max)
		require.LessOrEqual(t, len(got), max)
		for _, s := range got {
			assert.LessOrEqual(t, utf8.RuneCountInString(s), 300)
			assert.True(t, strings.HasSuffix(s, "..."))
		}
	}
}

func TestSearch_SkipsEmptyPages(t *testing.T) {
	provider := &fakeProvider{urls: []string{"empty", "full"}}
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"empty": utf8Page("empty", ""),
		"full":  utf8Page("full", "content"),
	}}
	got := newSearch(provider, fetcher, StrategySequential).Search(context.Background(), "q", 1)
	assert.Equal(t, []string{"content"}, got)
}

func TestSearch_TruncatesQuery(t *testing.T) {
	provider := &fakeProvider{}
	long := strings.Repeat("k", 250)

	newSearch(provider, &fakeFetcher{}, StrategySequential).Search(context.Background(), long, 2)
	require.Len(t, provider.queries, 1)
	assert.Len(t, provider.queries[0], 100)
}

func TestSearch_RateLimitedReturnsEmpty(t *testing.T) {
	provider := &fakeProvider{err: ErrRateLimited}
	got := newSearch(provider, &fakeFetcher{}, StrategySequential).Search(context.Background(), "q", 2)
	assert.Empty(t, got)
	assert.Len(t, provider.queries, 1)
}

func TestSearch_EmptyInputs(t *testing.T) {
	provider := &fakeProvider{urls: []string{"u"}}
	s := newSearch(provider, &fakeFetcher{}, StrategySequential)
	assert.Empty(t, s.Search(context.Background(), "   ", 2))
	assert.Empty(t, s.Search(context.Background(), "q", 0))
	assert.Empty(t, provider.queries)
}

func TestSearch_BreakerOpensAfterFailures(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	breaker := NewCircuitBreaker("fake", 2, time.Minute, logging.Discard())
	s := NewWebSearch(provider, &fakeFetcher{}, breaker, SearchOptions{Logger: logging.Discard()})

	for i := 0; i < 4; i++ {
		assert.Empty(t, s.Search(context.Background(), "q", 2))
	}
	assert.Len(t, provider.queries, 2)
	assert.Equal(t, StateOpen, breaker.State())
}
