package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-jarvis/internal/config"
)

// Client wraps a backend with a per-call timeout and error classification
type Client struct {
	backend Completer
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient wraps backend; a non-positive timeout defaults to 30s
func NewClient(backend Completer, name string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		name:    name,
		timeout: timeout,
		logger:  logger.With("component", "llm", "backend", name),
	}
}

// Complete runs req with the client timeout. Every error wraps ErrBackend.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.backend.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		c.logger.Warn("completion failed", "err", err, "elapsed", time.Since(start).Round(time.Millisecond))
		if errors.Is(err, ErrBackend) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	c.logger.Debug("completion ok", "elapsed", time.Since(start).Round(time.Millisecond), "chars", len(text))
	return strings.TrimSpace(text), nil
}

// New builds the backend named by cfg.Provider on top of httpClient
func New(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	var (
		backend Completer
		err     error
	)
	switch cfg.Provider {
	case "openai", "":
		backend = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient)
	case "anthropic":
		backend = NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient)
	case "gemini":
		backend, err = NewGemini(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient)
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(backend, cfg.Provider, time.Duration(cfg.TimeoutSeconds)*time.Second, logger), nil
}
