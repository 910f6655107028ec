package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/theimaginaryfoundation/casebrief/brief"
	"github.com/theimaginaryfoundation/casebrief/brief/bootstrap"
	"github.com/theimaginaryfoundation/casebrief/brief/config"
	"github.com/theimaginaryfoundation/casebrief/brief/docload"
	"github.com/theimaginaryfoundation/casebrief/brief/fileutils"
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
		Cache:    cfg.Cache,
	}, nil)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		fmt.Fprintln(stderr, fmt.Errorf("mkdir -out: %w", err).Error())
		return 2
	}
	files, err := docload.Collect(cfg.InPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	if len(files) == 0 {
		fmt.Fprintln(stderr, "no documents found")
		return 2
	}
	if cfg.MaxDocs > 0 && len(files) > cfg.MaxDocs {
		files = files[:cfg.MaxDocs]
	}

	// One App for the whole run, so every document draws on the same rate limiter.
	app, err := bootstrap.New(ctx, appCfg, bootstrap.Options{APIKey: cfg.APIKey, Logger: logger})
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer app.Close()

	stats, err := summarizeAll(ctx, cfg, app.Service, files, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		if errors.Is(err, provider.ErrConfig) {
			return 2
		}
		return 1
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(cfg.OutDir, "index.jsonl")
	}
	if cfg.Reindex {
		if _, err := rebuildIndex(cfg.OutDir, indexPath, cfg.IndexSummaryMaxChars); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
	} else {
		fmt.Fprintln(stderr, "warning: -reindex=false leaves index.jsonl stale when -resume=true")
	}

	fmt.Fprintf(stdout, "docs_processed=%d docs_skipped=%d summaries_out=%s index=%s\n", stats.processed, stats.skipped, cfg.OutDir, indexPath)
	return 0
}

type batchStats struct {
	processed int64
	skipped   int64
}

// summarizeAll summarizes every file with at most cfg.Concurrency documents in flight and writes one
// summary JSON per document. All failures are reported together once the batch drains.
func summarizeAll(ctx context.Context, cfg Config, svc *brief.Service, files []string, progress io.Writer) (batchStats, error) {
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}

	var processed, skipped atomic.Int64
	var progressMu sync.Mutex
	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, len(files))

	wg := sync.WaitGroup{}
	for _, docPath := range files {
		wg.Add(1)
		go func(docPath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			outPath := summaryOutPath(cfg.InPath, cfg.OutDir, docPath)
			if cfg.Resume && !cfg.Overwrite && fileutils.FileExists(outPath) {
				skipped.Add(1)
				return
			}

			doc, err := docload.Load(docPath)
			if err != nil {
				errCh <- err
				return
			}
			summary, err := svc.Summarize(ctx, doc.DocID, doc.Text)
			if err != nil {
				errCh <- fmt.Errorf("summarize %s: %w", docPath, err)
				return
			}

			sum := brief.DocumentSummary{
				DocID:      doc.DocID,
				SourcePath: docPath,
				Summary:    summary,
				ChunkCount: len(svc.Chunks(doc.Text)),
				SourceSize: len(doc.Text),
			}
			if err := writeSummaryFile(outPath, sum, cfg.Pretty, cfg.Overwrite); err != nil {
				errCh <- err
				return
			}

			n := processed.Add(1)
			progressMu.Lock()
			fmt.Fprintf(progress, "[%d/%d] %s -> %s\n", n, len(files), docPath, outPath)
			progressMu.Unlock()
		}(docPath)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return batchStats{processed: processed.Load(), skipped: skipped.Load()}, errors.Join(errs...)
}

// summaryOutPath mirrors the document's path below inRoot under outRoot, swapping the extension for
// .summary.json.
func summaryOutPath(inRoot, outRoot, docPath string) string {
	rel, err := filepath.Rel(inRoot, docPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(docPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".summary.json"
	return filepath.Join(outRoot, rel)
}

func writeSummaryFile(outPath string, sum brief.DocumentSummary, pretty, overwrite bool) error {
	if !overwrite && fileutils.FileExists(outPath) {
		return fmt.Errorf("summary already exists: %s (use -overwrite or -resume)", outPath)
	}
	if err := fileutils.WriteJSONFileAtomic(outPath, sum, pretty); err != nil {
		return fmt.Errorf("write summary %s: %w", outPath, err)
	}
	return nil
}

// rebuildIndex rewrites index.jsonl from every summary file under outDir and returns the row count.
func rebuildIndex(outDir, indexPath string, maxSummaryChars int) (int, error) {
	var paths []string
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(path), ".summary.json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reindex: walk summaries: %w", err)
	}
	sort.Strings(paths)

	rows := make([]brief.IndexRecord, 0, len(paths))
	for _, p := range paths {
		var sum brief.DocumentSummary
		if err := fileutils.ReadJSONFile(p, &sum); err != nil {
			return 0, fmt.Errorf("reindex: %w", err)
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			rel = p
		}
		rows = append(rows, brief.BuildIndexRecord(sum, filepath.ToSlash(rel), maxSummaryChars))
	}
	if err := fileutils.WriteJSONLinesAtomic(indexPath, rows); err != nil {
		return 0, fmt.Errorf("reindex: write %s: %w", indexPath, err)
	}
	return len(rows), nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to YAML config (defaults are used when the file is missing)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file to load before reading API keys")
	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Document file OR directory of documents (recursively; .txt .md .json .pdf)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for summary files + index.jsonl")
	fs.StringVar(&cfg.IndexPath, "index", "", "Optional path for index.jsonl (default: <out>/index.jsonl)")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print summary JSON files")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing summary JSON files")
	fs.IntVar(&cfg.MaxDocs, "max-docs", 0, "Process only the first N documents (0 = all)")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Skip documents that already have a summary output")
	fs.BoolVar(&cfg.Reindex, "reindex", cfg.Reindex, "Rebuild index.jsonl from existing outputs at end of run (recommended with -resume)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max documents summarized at once")
	fs.IntVar(&cfg.IndexSummaryMaxChars, "index-summary-max-chars", cfg.IndexSummaryMaxChars, "Max chars to keep in index summary fields (0 disables truncation)")
	fs.StringVar(&cfg.Provider, "provider", "", "Override provider: openai|groq|sambanova|ollama|gemini")
	fs.StringVar(&cfg.Model, "model", "", "Override model name")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides the env var named in the config)")
	fs.StringVar(&cfg.Cache, "cache", "", "Override cache backend: none|memory|file|redis|postgres")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.InPath = filepath.Clean(cfg.InPath)
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	if cfg.IndexPath != "" {
		cfg.IndexPath = filepath.Clean(cfg.IndexPath)
	}
	return cfg, nil
}
