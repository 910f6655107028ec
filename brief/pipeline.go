// Package brief turns arbitrarily long case documents into bounded chunks, summarizes or scores them through a
// rate-limited completion client, and reduces the partial results into one answer.
package brief

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

var (
	ErrEmptyDocument = errors.New("document has no text")
	ErrEmptyQuery    = errors.New("query is empty")
)

// Completer is the only capability the pipeline needs from its environment.
// *provider.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req provider.Request) (string, error)
}

const DefaultConcurrency = 4

// Options bound how a document is decomposed and how many chunk calls run at once.
type Options struct {
	MaxCharsPerChunk int
	MaxChunks        int
	// Concurrency caps in-flight chunk calls in the map phase. The shared rate limiter behind the
	// Completer still governs the aggregate call rate.
	Concurrency int
	Logger      *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxCharsPerChunk: DefaultMaxCharsPerChunk,
		MaxChunks:        DefaultMaxChunks,
		Concurrency:      DefaultConcurrency,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxCharsPerChunk == 0 {
		o.MaxCharsPerChunk = DefaultMaxCharsPerChunk
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// PartialSummary is the map-phase output for one chunk.
type PartialSummary struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// RelevanceVerdict is the map-phase output of the relevance scorer for one chunk.
type RelevanceVerdict struct {
	ChunkIndex int    `json:"chunk_index"`
	Relevant   bool   `json:"relevant"`
	Reason     string `json:"reason"`
}

// mapChunks runs fn once per chunk and returns the results indexed by chunk position, whatever order the
// calls finish in. The first failure cancels the remaining calls and is returned.
func mapChunks[T any](ctx context.Context, chunks []Chunk, limit int, fn func(ctx context.Context, ch Chunk) (T, error)) ([]T, error) {
	results := make([]T, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ch := range chunks {
		g.Go(func() error {
			out, err := fn(gctx, ch)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", ch.Index, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// joinPartials orders partial summaries by chunk index and puts one per line.
func joinPartials(parts []PartialSummary) string {
	sorted := append([]PartialSummary(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })
	lines := make([]string, 0, len(sorted))
	for _, p := range sorted {
		lines = append(lines, strings.TrimSpace(p.Text))
	}
	return strings.Join(lines, "\n")
}

// joinReasons keeps relevant verdicts only, in chunk order, one per line.
func joinReasons(verdicts []RelevanceVerdict) (string, int) {
	sorted := append([]RelevanceVerdict(nil), verdicts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })
	lines := make([]string, 0, len(sorted))
	for _, v := range sorted {
		if v.Relevant {
			lines = append(lines, v.Reason)
		}
	}
	return strings.Join(lines, "\n"), len(lines)
}
