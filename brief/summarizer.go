package brief

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

// Summarizer produces one summary per document by map-reduce over its chunks.
type Summarizer struct {
	client Completer
	opts   Options
	logger *slog.Logger
}

func NewSummarizer(client Completer, opts Options) *Summarizer {
	opts = opts.withDefaults()
	return &Summarizer{client: client, opts: opts, logger: opts.Logger}
}

// Summarize returns a single summary of text. A document that fits one chunk costs one call; otherwise
// every chunk is summarized and the partial summaries are synthesized by one more call.
// Any chunk failure fails the whole summary: a summary silently missing part of the document
// would read as complete.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	chunks := ChunkText(text, s.opts.MaxCharsPerChunk, s.opts.MaxChunks)
	if len(chunks) == 0 {
		return "", ErrEmptyDocument
	}
	if len(chunks) == 1 {
		return s.summarizeChunk(ctx, chunks[0])
	}

	s.logger.Info("summarizing document", "chunks", len(chunks), "chars", len(text))
	partials, err := s.SummarizeChunks(ctx, chunks)
	if err != nil {
		return "", err
	}
	return s.synthesize(ctx, partials)
}

// SummarizeChunks is the map phase: one short summary per chunk, ordered by chunk index.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks []Chunk) ([]PartialSummary, error) {
	return mapChunks(ctx, chunks, s.opts.Concurrency, func(ctx context.Context, ch Chunk) (PartialSummary, error) {
		text, err := s.summarizeChunk(ctx, ch)
		if err != nil {
			return PartialSummary{}, err
		}
		return PartialSummary{ChunkIndex: ch.Index, Text: text}, nil
	})
}

func (s *Summarizer) summarizeChunk(ctx context.Context, ch Chunk) (string, error) {
	text, err := s.client.Complete(ctx, provider.Request{
		Prompt:      chunkSummaryPrompt(ch.Text),
		MaxTokens:   chunkSummaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarize chunk: %w", err)
	}
	return text, nil
}

func (s *Summarizer) synthesize(ctx context.Context, partials []PartialSummary) (string, error) {
	text, err := s.client.Complete(ctx, provider.Request{
		Prompt:      summarySynthesisPrompt(joinPartials(partials)),
		MaxTokens:   synthesisMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize summary: %w", err)
	}
	return text, nil
}
