package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"go-jarvis/internal/chat"
	"go-jarvis/internal/config"
	"go-jarvis/internal/dialogue"
	"go-jarvis/internal/llm"
	"go-jarvis/internal/memory"
	"go-jarvis/internal/proxy"
	redisdb "go-jarvis/internal/redis"
	"go-jarvis/internal/tools"
)

// assistant bundles the engine with the resources it holds open.
type assistant struct {
	engine *dialogue.Engine
	rdb    *redis.Client
}

func (a *assistant) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func newAssistant(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*assistant, error) {
	pageClient, apiClient, err := newHTTPClients(cfg)
	if err != nil {
		return nil, err
	}

	a := &assistant{}
	var cache tools.PageCache
	rdb, err := redisdb.Connect(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("page cache disabled", "err", err)
	case rdb != nil:
		a.rdb = rdb
		cache = tools.NewRedisCache(rdb, time.Duration(cfg.Redis.TTLMinutes)*time.Minute, logger)
		logger.Info("page cache enabled", "addr", cfg.Redis.Addr)
	}

	fetcher := tools.NewFetcher(pageClient, tools.FetcherOptions{
		Timeout:   time.Duration(cfg.Fetcher.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Fetcher.UserAgent,
		MaxSizeMB: cfg.Fetcher.MaxSizeMB,
		Extractor: cfg.Fetcher.Extractor,
		Cache:     cache,
		Logger:    logger,
	})

	provider, err := newProvider(cfg, apiClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	breaker := tools.NewCircuitBreaker(provider.Name(), cfg.Search.BreakerThreshold,
		time.Duration(cfg.Search.BreakerCooldownSeconds)*time.Second, logger)
	search := tools.NewWebSearch(provider, fetcher, breaker, tools.SearchOptions{
		Strategy:            tools.Strategy(cfg.Search.Strategy),
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		MaxQueryChars:       cfg.Search.MaxQueryChars,
		SnippetChars:        cfg.Search.SnippetChars,
		RequireUTF8:         config.Enabled(cfg.Search.RequireUTF8),
		Language:            cfg.Search.Language,
		Timeout:             time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		Logger:              logger,
	})

	backend, err := llm.New(ctx, cfg.LLM, apiClient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = dialogue.NewEngine(backend, search, fetcher,
		memory.New(cfg.Memory.MaxHistory, cfg.Memory.ContextWindow),
		chat.NewHistory(cfg.Memory.ChatHistoryMessages),
		engineOptions(cfg, logger))
	return a, nil
}

// newHTTPClients returns the client for page fetches, which honours
// fetcher.insecure_skip_verify, and the client for the search provider and
// completion backends, which always verifies certificates. Both share the
// SOCKS5 setting.
func newHTTPClients(cfg *config.Config) (pages, apis *http.Client, err error) {
	pages, err = proxy.NewClient(proxy.Options{
		SOCKS5:             cfg.Proxy.SOCKS5,
		InsecureSkipVerify: config.Enabled(cfg.Fetcher.InsecureSkipVerify),
	})
	if err != nil {
		return nil, nil, err
	}
	apis, err = proxy.NewClient(proxy.Options{SOCKS5: cfg.Proxy.SOCKS5})
	if err != nil {
		return nil, nil, err
	}
	return pages, apis, nil
}

func newProvider(cfg *config.Config, httpClient *http.Client) (tools.Provider, error) {
	switch cfg.Search.Provider {
	case "duckduckgo":
		return tools.NewDuckDuckGoClient(cfg.Search.DuckDuckGoURL, cfg.Fetcher.UserAgent, httpClient), nil
	case "searxng":
		return tools.NewSearXNGClient(cfg.Search.SearXNGURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

func engineOptions(cfg *config.Config, logger *slog.Logger) dialogue.Options {
	return dialogue.Options{
		AssistantName:       cfg.Assistant.Name,
		UserName:            cfg.Assistant.UserName,
		DefaultLocation:     cfg.Assistant.DefaultLocation,
		MaxResults:          cfg.Search.MaxResults,
		MaxContextChars:     cfg.Search.MaxContextChars,
		MaxPageChars:        cfg.Fetcher.MaxPageChars,
		ChatHistoryMessages: cfg.Memory.ChatHistoryMessages,
		ForceSearchOnTopics: config.Enabled(cfg.Routing.ForceSearchOnTopics),
		HedgeFollowup:       config.Enabled(cfg.Routing.HedgeFollowup),
		Logger:              logger,
	}
}
