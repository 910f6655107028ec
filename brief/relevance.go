package brief

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

// RelevanceScorer explains how a document bears on a query by judging each chunk and
// synthesizing the chunks judged relevant.
type RelevanceScorer struct {
	client Completer
	opts   Options
	logger *slog.Logger
}

func NewRelevanceScorer(client Completer, opts Options) *RelevanceScorer {
	opts = opts.withDefaults()
	return &RelevanceScorer{client: client, opts: opts, logger: opts.Logger}
}

// Relevance returns a 2-3 sentence explanation of why text is relevant to query, or NotRelevantFallback
// when no chunk is. The fallback is an answer, not an error.
func (r *RelevanceScorer) Relevance(ctx context.Context, query, text string) (string, error) {
	verdicts, err := r.Verdicts(ctx, query, text)
	if err != nil {
		return "", err
	}

	reasons, n := joinReasons(verdicts)
	r.logger.Info("relevance verdicts collected", "chunks", len(verdicts), "relevant", n)
	if n == 0 {
		return NotRelevantFallback, nil
	}

	out, err := r.client.Complete(ctx, provider.Request{
		Prompt:      relevanceSynthesisPrompt(reasons),
		MaxTokens:   relevanceMaxTokens,
		Temperature: relevanceTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize relevance: %w", err)
	}
	return out, nil
}

// Verdicts is the map phase: one judgment per chunk, ordered by chunk index.
func (r *RelevanceScorer) Verdicts(ctx context.Context, query, text string) ([]RelevanceVerdict, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	chunks := ChunkText(text, r.opts.MaxCharsPerChunk, r.opts.MaxChunks)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	return mapChunks(ctx, chunks, r.opts.Concurrency, func(ctx context.Context, ch Chunk) (RelevanceVerdict, error) {
		reply, err := r.client.Complete(ctx, provider.Request{
			Prompt:      chunkVerdictPrompt(query, ch.Text),
			MaxTokens:   verdictMaxTokens,
			Temperature: verdictTemperature,
		})
		if err != nil {
			return RelevanceVerdict{}, fmt.Errorf("judge chunk: %w", err)
		}
		reason := strings.TrimSpace(reply)
		return RelevanceVerdict{
			ChunkIndex: ch.Index,
			Relevant:   !IsNotRelevant(reason),
			Reason:     reason,
		}, nil
	})
}

// IsNotRelevant reports whether a verdict is the NotRelevant literal, ignoring case and surrounding space.
func IsNotRelevant(verdict string) bool {
	return strings.EqualFold(strings.TrimSpace(verdict), NotRelevant)
}

// ExplainRelevance asks for a one-shot explanation over the whole text, without chunking.
func ExplainRelevance(ctx context.Context, client Completer, query, text string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	out, err := client.Complete(ctx, provider.Request{
		Prompt:      explanationPrompt(query, text),
		MaxTokens:   explanationMaxTokens,
		Temperature: explanationTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("explain relevance: %w", err)
	}
	return out, nil
}
