// Package config loads the casebrief YAML configuration and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderSambaNova = "sambanova"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheFile     = "file"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// DefaultCallsPerWindow fits the Groq free tier of 30 requests per minute.
const DefaultCallsPerWindow = 30

// EnvCompletionDelay overrides rate_limit.pacing_interval, in seconds.
const EnvCompletionDelay = "COMPLETION_DELAY"

// ProviderConfig selects the completion backend.
type ProviderConfig struct {
	Name      string        `yaml:"name"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKeyEnv string        `yaml:"api_key_env,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds how fast completions are issued and how often they are retried.
type RateLimitConfig struct {
	// Negative pacing or backoff disables that sleep.
	PacingInterval time.Duration `yaml:"pacing_interval"`
	// CallsPerWindow defaults to 30; a negative value disables the window ceiling. Pacing still applies.
	CallsPerWindow   int           `yaml:"calls_per_window"`
	Window           time.Duration `yaml:"window"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
	MaxAttempts      int           `yaml:"max_attempts"`
}

type ChunkingConfig struct {
	MaxCharsPerChunk int `yaml:"max_chars_per_chunk"`
	MaxChunks        int `yaml:"max_chunks"`
	Concurrency      int `yaml:"concurrency"`
}

type CacheConfig struct {
	Backend     string        `yaml:"backend"`
	Dir         string        `yaml:"dir,omitempty"`
	RedisURL    string        `yaml:"redis_url,omitempty"`
	Prefix      string        `yaml:"prefix,omitempty"`
	TTL         time.Duration `yaml:"ttl,omitempty"`
	DatabaseURL string        `yaml:"database_url,omitempty"`
}

type ServiceConfig struct {
	MaxDocumentChars int    `yaml:"max_document_chars"`
	RelevanceSource  string `yaml:"relevance_source"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Cache     CacheConfig     `yaml:"cache"`
	Service   ServiceConfig   `yaml:"service"`
}

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default is Groq with the pacing and retry budget the hosted free tiers tolerate.
func Default() *AppConfig {
	cfg := &AppConfig{
		Provider: ProviderConfig{Name: ProviderGroq},
		Cache:    CacheConfig{Backend: CacheNone},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	p := &cfg.Provider
	if p.Name == "" {
		p.Name = ProviderGroq
	}
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Model == "" {
		p.Model = defaultModel(p.Name)
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = defaultAPIKeyEnv(p.Name)
	}
	if p.Timeout == 0 {
		p.Timeout = 60 * time.Second
	}

	rl := &cfg.RateLimit
	if rl.PacingInterval == 0 {
		rl.PacingInterval = 2 * time.Second
	}
	if rl.CallsPerWindow == 0 {
		rl.CallsPerWindow = DefaultCallsPerWindow
	}
	if rl.Window == 0 {
		rl.Window = time.Minute
	}
	if rl.RateLimitBackoff == 0 {
		rl.RateLimitBackoff = time.Second
	}
	if rl.MaxAttempts == 0 {
		rl.MaxAttempts = 3
	}

	ch := &cfg.Chunking
	if ch.MaxCharsPerChunk == 0 {
		ch.MaxCharsPerChunk = 3000
	}
	if ch.MaxChunks == 0 {
		ch.MaxChunks = 10
	}
	if ch.Concurrency == 0 {
		ch.Concurrency = 4
	}

	c := &cfg.Cache
	if c.Backend == "" {
		c.Backend = CacheNone
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == CacheFile && c.Dir == "" {
		c.Dir = ".casebrief-cache"
	}

	s := &cfg.Service
	if s.MaxDocumentChars == 0 {
		s.MaxDocumentChars = 100_000
	}
	if s.RelevanceSource == "" {
		s.RelevanceSource = "summary"
	}
}

// UseProvider switches the backend and resets the model, base URL and key variable to that backend's defaults.
func (c *AppConfig) UseProvider(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == c.Provider.Name {
		return
	}
	c.Provider.Name = name
	c.Provider.Model = defaultModel(name)
	c.Provider.BaseURL = ""
	c.Provider.APIKeyEnv = defaultAPIKeyEnv(name)
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderSambaNova:
		return "Meta-Llama-3.3-70B-Instruct"
	case ProviderOllama:
		return "llama3.2"
	case ProviderGemini:
		return "gemini-2.0-flash"
	}
	return ""
}

func defaultAPIKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGroq:
		return "GROQ_API_KEY"
	case ProviderSambaNova:
		return "SAMBA_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// Validate rejects configs the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderGroq, ProviderSambaNova, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("provider.name must be one of openai|groq|sambanova|ollama|gemini, got %q", c.Provider.Name)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return errors.New("provider.model is required")
	}
	if c.RateLimit.MaxAttempts < 1 {
		return fmt.Errorf("rate_limit.max_attempts must be >= 1, got %d", c.RateLimit.MaxAttempts)
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be >= 0, got %s", c.RateLimit.Window)
	}
	if c.Chunking.MaxCharsPerChunk < 1 {
		return fmt.Errorf("chunking.max_chars_per_chunk must be >= 1, got %d", c.Chunking.MaxCharsPerChunk)
	}
	if c.Chunking.MaxChunks < 0 {
		return fmt.Errorf("chunking.max_chunks must be >= 0, got %d", c.Chunking.MaxChunks)
	}
	if c.Chunking.Concurrency < 1 {
		return fmt.Errorf("chunking.concurrency must be >= 1, got %d", c.Chunking.Concurrency)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheFile:
		if c.Cache.Dir == "" {
			return errors.New("cache.dir is required for the file cache")
		}
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis cache")
		}
	case CachePostgres:
		if c.Cache.DatabaseURL == "" {
			return errors.New("cache.database_url is required for the postgres cache")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none|memory|file|redis|postgres, got %q", c.Cache.Backend)
	}
	switch c.Service.RelevanceSource {
	case "summary", "document":
	default:
		return fmt.Errorf("service.relevance_source must be summary|document, got %q", c.Service.RelevanceSource)
	}
	return nil
}

// LoadEnv loads .env files into the process environment. Missing files are ignored;
// variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv lets the environment override settings that deployments tune without editing YAML.
func (c *AppConfig) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvCompletionDelay)); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("%s must be a non-negative number of seconds, got %q", EnvCompletionDelay, v)
		}
		c.RateLimit.PacingInterval = time.Duration(secs * float64(time.Second))
		if secs == 0 {
			c.RateLimit.PacingInterval = -1
		}
	}
	if c.Cache.DatabaseURL == "" {
		c.Cache.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = getenv("REDIS_URL")
	}
	return nil
}

// APIKey resolves the provider key: an explicit value first, then the configured environment variable.
func (c *AppConfig) APIKey(explicit string, getenv func(string) string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if c.Provider.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(getenv(c.Provider.APIKeyEnv))
}
