package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/theimaginaryfoundation/casebrief/brief"
	"github.com/theimaginaryfoundation/casebrief/brief/bootstrap"
	"github.com/theimaginaryfoundation/casebrief/brief/config"
	"github.com/theimaginaryfoundation/casebrief/brief/docload"
	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg Config, stdout, stderr io.Writer) int {
	logger, err := bootstrap.NewLogger(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	if err := config.LoadEnv(cfg.EnvFile); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	appCfg, err := bootstrap.LoadConfig(cfg.ConfigPath, bootstrap.Overrides{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Cache:    cfg.Cache,
		CacheDir: cfg.CacheDir,
	}, nil)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	app, err := bootstrap.New(ctx, appCfg, bootstrap.Options{APIKey: cfg.APIKey, Logger: logger})
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer app.Close()

	if err := execute(ctx, app.Service, cfg, stdout); err != nil {
		fmt.Fprintln(stderr, err.Error())
		if errors.Is(err, provider.ErrConfig) {
			return 2
		}
		return 1
	}
	return 0
}

// execute runs one mode against svc and prints its result on out.
func execute(ctx context.Context, svc *brief.Service, cfg Config, out io.Writer) error {
	if cfg.Mode == modeKeywords {
		return printKeywords(ctx, svc, cfg, out)
	}

	doc, err := docload.Load(cfg.InPath)
	if err != nil {
		return err
	}
	docID := doc.DocID
	if cfg.DocID != "" {
		docID = cfg.DocID
	}

	var result string
	switch cfg.Mode {
	case modeSummarize:
		result, err = svc.Summarize(ctx, docID, doc.Text)
	case modeRelevance:
		result, err = svc.Relevance(ctx, brief.RelevanceRequest{
			DocID:         docID,
			Query:         cfg.Query,
			ModifiedQuery: cfg.ModifiedQuery,
		}, doc.Text)
	case modeExplain:
		result, err = svc.Explain(ctx, cfg.Query, doc.Text)
	case modeChunks:
		return printChunks(svc.Chunks(doc.Text), out)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(result))
	return err
}

type keywordsOutput struct {
	Query       string   `json:"query"`
	Keywords    []string `json:"keywords"`
	SearchQuery string   `json:"search_query"`
}

func printKeywords(ctx context.Context, svc *brief.Service, cfg Config, out io.Writer) error {
	kws, err := svc.Keywords(ctx, cfg.Query)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc.Encode(keywordsOutput{
		Query:       cfg.Query,
		Keywords:    kws,
		SearchQuery: brief.BuildSearchQuery(kws, cfg.Query, cfg.Year),
	})
}

type chunkLine struct {
	Index int    `json:"index"`
	Chars int    `json:"chars"`
	Text  string `json:"text"`
}

func printChunks(chunks []brief.Chunk, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	for _, ch := range chunks {
		if err := enc.Encode(chunkLine{Index: ch.Index, Chars: len(ch.Text), Text: ch.Text}); err != nil {
			return err
		}
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to YAML config (defaults are used when the file is missing)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file to load before reading API keys")
	fs.StringVar(&cfg.InPath, "in", "", "Document to read (.txt, .md, .json or .pdf)")
	fs.StringVar(&cfg.DocID, "doc-id", "", "Document id for the summary cache (default: id in the JSON body, else the file name)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "summarize|relevance|explain|keywords|chunks")
	fs.StringVar(&cfg.Query, "query", "", "User query (relevance, explain, keywords)")
	fs.StringVar(&cfg.ModifiedQuery, "modified-query", "", "Search-engine form of the query, stored alongside it in the cache")
	fs.IntVar(&cfg.Year, "year", 0, "Year filter appended to the search query in keywords mode (0 = none)")
	fs.StringVar(&cfg.Provider, "provider", "", "Override provider: openai|groq|sambanova|ollama|gemini")
	fs.StringVar(&cfg.Model, "model", "", "Override model name")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Override provider base URL")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides the env var named in the config)")
	fs.StringVar(&cfg.Cache, "cache", "", "Override cache backend: none|memory|file|redis|postgres")
	fs.StringVar(&cfg.CacheDir, "cache-dir", "", "Directory for the file cache")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	if cfg.CacheDir != "" {
		cfg.CacheDir = filepath.Clean(cfg.CacheDir)
	}
	return cfg, nil
}
