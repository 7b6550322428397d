package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type AssistantConfig struct {
	Name            string `json:"name"`
	UserName        string `json:"user_name"`
	DefaultLocation string `json:"default_location"`
}

type LLMConfig struct {
	Provider       string `json:"provider"` // openai | anthropic | gemini
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type SearchConfig struct {
	Provider               string `json:"provider"` // duckduckgo | searxng
	SearXNGURL             string `json:"searxng_url"`
	DuckDuckGoURL          string `json:"duckduckgo_url"`
	MaxResults             int    `json:"max_results"`
	CandidateMultiplier    int    `json:"candidate_multiplier"`
	Strategy               string `json:"strategy"` // sequential | concurrent
	RequireUTF8            *bool  `json:"require_utf8"`
	SnippetChars           int    `json:"snippet_chars"`
	MaxQueryChars          int    `json:"max_query_chars"`
	MaxContextChars        int    `json:"max_context_chars"`
	Language               string `json:"language"`
	TimeoutSeconds         int    `json:"timeout_seconds"`
	BreakerThreshold       int    `json:"breaker_threshold"`
	BreakerCooldownSeconds int    `json:"breaker_cooldown_seconds"`
}

type FetcherConfig struct {
	TimeoutSeconds     int    `json:"timeout_seconds"`
	UserAgent          string `json:"user_agent"`
	InsecureSkipVerify *bool  `json:"insecure_skip_verify"`
	MaxPageChars       int    `json:"max_page_chars"`
	MaxSizeMB          int    `json:"max_size_mb"`
	Extractor          string `json:"extractor"` // visible | readability
}

type MemoryConfig struct {
	MaxHistory          int `json:"max_history"`
	ContextWindow       int `json:"context_window"`
	ChatHistoryMessages int `json:"chat_history_messages"`
}

type RoutingConfig struct {
	ForceSearchOnTopics *bool `json:"force_search_on_topics"`
	HedgeFollowup       *bool `json:"hedge_followup"`
}

type SpeechConfig struct {
	Engine       string `json:"engine"` // auto | say | powershell | espeak | none
	Voice        string `json:"voice"`
	Rate         int    `json:"rate"`
	WhisperModel string `json:"whisper_model"`
	Chime        string `json:"chime"`
}

type Config struct {
	Assistant AssistantConfig `json:"assistant"`
	LLM       LLMConfig       `json:"llm"`
	Search    SearchConfig    `json:"search"`
	Fetcher   FetcherConfig   `json:"fetcher"`
	Memory    MemoryConfig    `json:"memory"`
	Routing   RoutingConfig   `json:"routing"`
	Server    struct {
		Host    string `json:"host"`
		Port    int    `json:"port"`
		Subpath string `json:"subpath"`
	} `json:"server"`
	Redis struct {
		Addr       string `json:"addr"`
		Password   string `json:"password"`
		DB         int    `json:"db"`
		TTLMinutes int    `json:"ttl_minutes"`
	} `json:"redis"`
	Proxy struct {
		SOCKS5 string `json:"socks5"`
	} `json:"proxy"`
	Speech  SpeechConfig `json:"speech"`
	Logging struct {
		Level string `json:"level"`
	} `json:"logging"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads the JSON config from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		c.applyEnvOverrides()
		c.applyDefaults()
		if err := c.Validate(); err != nil {
			cfgErr = err
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

// LoadOrDefault behaves like LoadConfig but falls back to defaults plus
// environment when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		once.Do(func() {
			c := Default()
			c.applyEnvOverrides()
			c.applyDefaults()
			cfgErr = c.Validate()
			if cfgErr == nil {
				cfg = c
			}
		})
		return cfg, cfgErr
	}
	return LoadConfig(path)
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}

// Default returns a config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("JARVIS_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("JARVIS_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		c.Search.SearXNGURL = v
		if c.Search.Provider == "" {
			c.Search.Provider = "searxng"
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("JARVIS_SOCKS_PROXY"); v != "" {
		c.Proxy.SOCKS5 = v
	}
	if v := os.Getenv("JARVIS_DEFAULT_LOCATION"); v != "" {
		c.Assistant.DefaultLocation = v
	}
	if v := os.Getenv("JARVIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	setStr(&c.Assistant.Name, "JARVIS")
	setStr(&c.Assistant.UserName, "Sir")
	setStr(&c.Assistant.DefaultLocation, "Taiwan")

	setStr(&c.LLM.Provider, "openai")
	setStr(&c.LLM.Model, defaultModel(c.LLM.Provider))
	setInt(&c.LLM.TimeoutSeconds, 30)

	setStr(&c.Search.Provider, "duckduckgo")
	setStr(&c.Search.DuckDuckGoURL, "https://html.duckduckgo.com/html/")
	setInt(&c.Search.MaxResults, 2)
	setInt(&c.Search.CandidateMultiplier, 2)
	setStr(&c.Search.Strategy, "sequential")
	setBool(&c.Search.RequireUTF8, true)
	setInt(&c.Search.SnippetChars, 300)
	setInt(&c.Search.MaxQueryChars, 100)
	setInt(&c.Search.MaxContextChars, 8000)
	setStr(&c.Search.Language, "en")
	setInt(&c.Search.TimeoutSeconds, 15)
	setInt(&c.Search.BreakerThreshold, 3)
	setInt(&c.Search.BreakerCooldownSeconds, 300)

	setInt(&c.Fetcher.TimeoutSeconds, 10)
	setStr(&c.Fetcher.UserAgent, DefaultUserAgent)
	setBool(&c.Fetcher.InsecureSkipVerify, true)
	setInt(&c.Fetcher.MaxPageChars, 10000)
	setInt(&c.Fetcher.MaxSizeMB, 5)
	setStr(&c.Fetcher.Extractor, "visible")

	setInt(&c.Memory.MaxHistory, 10)
	setInt(&c.Memory.ContextWindow, 3)
	setInt(&c.Memory.ChatHistoryMessages, 20)

	setBool(&c.Routing.ForceSearchOnTopics, true)
	setBool(&c.Routing.HedgeFollowup, true)

	setStr(&c.Server.Host, "127.0.0.1")
	setInt(&c.Server.Port, 8090)
	setInt(&c.Redis.TTLMinutes, 30)

	setStr(&c.Speech.Engine, "auto")
	setInt(&c.Speech.Rate, 200)
	setStr(&c.Speech.WhisperModel, "models/ggml-base.en.bin")

	setStr(&c.Logging.Level, "info")
}

// Validate rejects values the runtime cannot act on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Search.Provider {
	case "duckduckgo":
	case "searxng":
		if c.Search.SearXNGURL == "" {
			return errors.New("searxng_url must be set when search provider is searxng")
		}
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	switch c.Search.Strategy {
	case "sequential", "concurrent":
	default:
		return fmt.Errorf("unknown search strategy %q", c.Search.Strategy)
	}
	if c.Search.CandidateMultiplier < 2 || c.Search.CandidateMultiplier > 3 {
		return fmt.Errorf("candidate_multiplier must be 2 or 3, got %d", c.Search.CandidateMultiplier)
	}
	switch c.Fetcher.Extractor {
	case "visible", "readability":
	default:
		return fmt.Errorf("unknown fetcher extractor %q", c.Fetcher.Extractor)
	}
	switch c.Speech.Engine {
	case "auto", "say", "powershell", "espeak", "none":
	default:
		return fmt.Errorf("unknown speech engine %q", c.Speech.Engine)
	}
	return nil
}

// Enabled reports whether an optional boolean is set to true.
func Enabled(b *bool) bool {
	return b != nil && *b
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "gemini":
		return "gemini-2.5-flash"
	default:
		return "gpt-4o"
	}
}

func setStr(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setBool(dst **bool, v bool) {
	if *dst == nil {
		*dst = &v
	}
}
