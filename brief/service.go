package brief

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const DefaultMaxDocumentChars = 100_000

// Where relevance is scored from.
const (
	RelevanceFromSummary  = "summary"
	RelevanceFromDocument = "document"
)

type ServiceOptions struct {
	Pipeline Options
	// MaxDocumentChars truncates document text before it is chunked. <= 0 disables truncation.
	MaxDocumentChars int
	// RelevanceSource is RelevanceFromSummary (default) or RelevanceFromDocument.
	RelevanceSource string
}

// RelevanceRequest identifies the document and the query to score it against.
type RelevanceRequest struct {
	DocID         string
	Query         string
	ModifiedQuery string
}

// Service runs the summarizer and relevance scorer behind the summary cache.
type Service struct {
	summarizer *Summarizer
	scorer     *RelevanceScorer
	client     Completer
	cache      Cache
	opts       ServiceOptions
	logger     *slog.Logger
}

func NewService(client Completer, cache Cache, opts ServiceOptions) *Service {
	opts.Pipeline = opts.Pipeline.withDefaults()
	if opts.RelevanceSource == "" {
		opts.RelevanceSource = RelevanceFromSummary
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		summarizer: NewSummarizer(client, opts.Pipeline),
		scorer:     NewRelevanceScorer(client, opts.Pipeline),
		client:     client,
		cache:      cache,
		opts:       opts,
		logger:     opts.Pipeline.Logger,
	}
}

// Summarize returns the cached summary for docID when one exists, otherwise summarizes text and
// writes the result through to the cache.
func (s *Service) Summarize(ctx context.Context, docID, text string) (string, error) {
	logger := s.logger.With("run_id", uuid.NewString(), "doc_id", docID, "op", "summarize")
	rec, _ := s.lookup(ctx, logger, docID)
	if rec.Summary != "" {
		logger.Info("summary served from cache")
		return rec.Summary, nil
	}
	return s.computeSummary(ctx, logger, docID, text)
}

// Relevance explains how the document relates to req.Query. The summary is reused from the cache or
// computed and cached; the query is recorded when the cache has none for the document.
func (s *Service) Relevance(ctx context.Context, req RelevanceRequest, text string) (string, error) {
	logger := s.logger.With("run_id", uuid.NewString(), "doc_id", req.DocID, "op", "relevance")
	if strings.TrimSpace(req.Query) == "" {
		return "", ErrEmptyQuery
	}

	rec, found := s.lookup(ctx, logger, req.DocID)
	summary := rec.Summary
	if summary == "" {
		var err error
		summary, err = s.computeSummary(ctx, logger, req.DocID, text)
		if err != nil {
			return "", err
		}
	}

	if !found || rec.Query == "" {
		if err := s.cache.PutQuery(ctx, req.DocID, req.Query, req.ModifiedQuery); err != nil {
			logger.Warn("cache query write failed", "error", err)
		}
	}

	source := summary
	if s.opts.RelevanceSource == RelevanceFromDocument {
		source = TruncateText(text, s.opts.MaxDocumentChars)
	}
	out, err := s.scorer.Relevance(ctx, req.Query, source)
	if err != nil {
		return "", fmt.Errorf("relevance %s: %w", req.DocID, err)
	}
	logger.Info("relevance explained", "source", s.opts.RelevanceSource)
	return out, nil
}

// Explain is the single-call relevance explanation over the truncated document text.
func (s *Service) Explain(ctx context.Context, query, text string) (string, error) {
	return ExplainRelevance(ctx, s.client, query, TruncateText(text, s.opts.MaxDocumentChars))
}

// Keywords extracts search keywords from a user query.
func (s *Service) Keywords(ctx context.Context, query string) ([]string, error) {
	return ExtractKeywords(ctx, s.client, query)
}

// Chunks shows how text would be decomposed.
func (s *Service) Chunks(text string) []Chunk {
	return ChunkText(TruncateText(text, s.opts.MaxDocumentChars), s.opts.Pipeline.MaxCharsPerChunk, s.opts.Pipeline.MaxChunks)
}

func (s *Service) lookup(ctx context.Context, logger *slog.Logger, docID string) (Record, bool) {
	if docID == "" {
		return Record{}, false
	}
	rec, found, err := s.cache.Get(ctx, docID)
	if err != nil {
		logger.Warn("cache read failed", "error", err)
		return Record{}, false
	}
	return rec, found
}

func (s *Service) computeSummary(ctx context.Context, logger *slog.Logger, docID, text string) (string, error) {
	text = TruncateText(text, s.opts.MaxDocumentChars)
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", docID, err)
	}
	if docID != "" {
		if err := s.cache.PutSummary(ctx, docID, summary); err != nil {
			logger.Warn("cache summary write failed", "error", err)
		}
	}
	logger.Info("summary computed", "chars", len(text))
	return summary, nil
}

// TruncateText cuts text to at most max bytes without splitting a UTF-8 sequence. max <= 0 keeps text whole.
func TruncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
