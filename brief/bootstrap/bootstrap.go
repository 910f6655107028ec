// Package bootstrap assembles a completion client, summary cache and Service from an AppConfig.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/theimaginaryfoundation/casebrief/brief"
	"github.com/theimaginaryfoundation/casebrief/brief/config"
	"github.com/theimaginaryfoundation/casebrief/brief/provider"
	"github.com/theimaginaryfoundation/casebrief/brief/store"
)

type Options struct {
	// APIKey overrides the key found through provider.api_key_env.
	APIKey string
	Logger *slog.Logger
	Getenv func(string) string
}

// App is a ready-to-use pipeline. Close releases the cache connection.
type App struct {
	Client  *provider.Client
	Cache   brief.Cache
	Service *brief.Service
	closer  io.Closer
}

func (a *App) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// New builds the provider named in cfg and wires it to the cache and Service.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := NewProvider(ctx, cfg, cfg.APIKey(opts.APIKey, opts.Getenv))
	if err != nil {
		return nil, err
	}
	return NewWithProvider(ctx, cfg, p, opts)
}

// NewWithProvider is New with the completion backend supplied by the caller.
func NewWithProvider(ctx context.Context, cfg *config.AppConfig, p provider.CompletionProvider, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := NewCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	limiter := provider.NewRateLimiter(cfg.RateLimit.CallsPerWindow, cfg.RateLimit.Window, provider.SystemClock{})
	client := provider.NewClient(p, limiter, provider.Options{
		PacingInterval:   cfg.RateLimit.PacingInterval,
		RateLimitBackoff: cfg.RateLimit.RateLimitBackoff,
		MaxAttempts:      cfg.RateLimit.MaxAttempts,
		Logger:           logger,
	})

	svc := brief.NewService(client, cache, brief.ServiceOptions{
		Pipeline: brief.Options{
			MaxCharsPerChunk: cfg.Chunking.MaxCharsPerChunk,
			MaxChunks:        cfg.Chunking.MaxChunks,
			Concurrency:      cfg.Chunking.Concurrency,
			Logger:           logger,
		},
		MaxDocumentChars: cfg.Service.MaxDocumentChars,
		RelevanceSource:  cfg.Service.RelevanceSource,
	})

	app := &App{Client: client, Cache: cache, Service: svc}
	if c, ok := cache.(io.Closer); ok {
		app.closer = c
	}
	logger.Info("pipeline ready",
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
		"cache", cfg.Cache.Backend,
		"calls_per_window", cfg.RateLimit.CallsPerWindow)
	return app, nil
}

// NewProvider returns the completion backend named by cfg.Provider. A missing API key is not an error here;
// the returned provider reports it on first use.
func NewProvider(ctx context.Context, cfg *config.AppConfig, apiKey string) (provider.CompletionProvider, error) {
	pc := cfg.Provider
	switch pc.Name {
	case config.ProviderOpenAI, config.ProviderGroq, config.ProviderSambaNova:
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: openAIBaseURL(pc),
			Model:   pc.Model,
			Timeout: pc.Timeout,
		}), nil
	case config.ProviderOllama:
		p, err := provider.NewOllamaProvider(pc.BaseURL, pc.Model, &http.Client{Timeout: pc.Timeout})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderGemini:
		p, err := provider.NewGeminiProvider(ctx, apiKey, pc.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", provider.ErrConfig, pc.Name)
}

func openAIBaseURL(pc config.ProviderConfig) string {
	if pc.BaseURL != "" {
		return pc.BaseURL
	}
	switch pc.Name {
	case config.ProviderGroq:
		return provider.GroqBaseURL
	case config.ProviderSambaNova:
		return provider.SambaNovaBaseURL
	}
	return provider.OpenAIBaseURL
}

// NewCache opens the configured cache backend.
func NewCache(ctx context.Context, cc config.CacheConfig) (brief.Cache, error) {
	switch cc.Backend {
	case "", config.CacheNone:
		return brief.NopCache{}, nil
	case config.CacheMemory:
		return store.NewMemory(), nil
	case config.CacheFile:
		f, err := store.NewFile(cc.Dir)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.CacheRedis:
		r, err := store.NewRedis(ctx, cc.RedisURL, cc.Prefix, cc.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.CachePostgres:
		p, err := store.NewPostgres(ctx, cc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
}
