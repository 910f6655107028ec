package brief

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

var paraIndex = regexp.MustCompile(`para-(\d+)`)

func isSynthesis(req provider.Request) bool {
	return strings.Contains(req.Prompt, "Section summaries:")
}

func TestSummarize_SingleChunkCostsOneCall(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{respond: func(ctx context.Context, req provider.Request) (string, error) {
		return "One-call summary.", nil
	}}
	s := NewSummarizer(fc, testOptions())

	got, err := s.Summarize(context.Background(), "A short judgment.\nWith two paragraphs.")
	require.NoError(t, err)
	assert.Equal(t, "One-call summary.", got)

	reqs := fc.Requests()
	require.Len(t, reqs, 1)
	assert.False(t, isSynthesis(reqs[0]))
	assert.Contains(t, reqs[0].Prompt, "A short judgment.\nWith two paragraphs.")
	assert.Equal(t, chunkSummaryMaxTokens, reqs[0].MaxTokens)
}

func TestSummarize_MapThenReduce(t *testing.T) {
	t.Parallel()

	p1 := "The petitioner challenged the detention order."
	p2 := "The order relied on stale material."
	p3 := "The court quashed the detention."
	text := p1 + "\n" + p2 + "\n" + p3

	fc := &fakeCompleter{respond: func(ctx context.Context, req provider.Request) (string, error) {
		switch {
		case isSynthesis(req):
			return "Final synthesis", nil
		case strings.Contains(req.Prompt, p1):
			return "Summary A", nil
		case strings.Contains(req.Prompt, p3):
			return "Summary B", nil
		}
		return "", fmt.Errorf("unexpected prompt %q", req.Prompt)
	}}
	opts := testOptions()
	opts.MaxCharsPerChunk = len(p1+"\n") + len(p2+"\n")
	s := NewSummarizer(fc, opts)

	got, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Final synthesis", got)

	reqs := fc.Requests()
	require.Len(t, reqs, 3)
	synth := reqs[2]
	require.True(t, isSynthesis(synth))
	assert.Contains(t, synth.Prompt, "Summary A\nSummary B")
	assert.Equal(t, synthesisMaxTokens, synth.MaxTokens)
}

func TestSummarize_ReducePreservesChunkOrder(t *testing.T) {
	t.Parallel()

	const n = 5
	var paras []string
	for i := range n {
		paras = append(paras, fmt.Sprintf("para-%d", i))
	}

	gates := make([]chan struct{}, n)
	done := make([]chan struct{}, n)
	for i := range n {
		gates[i] = make(chan struct{})
		done[i] = make(chan struct{})
	}
	var inFlight atomic.Int32
	var mu sync.Mutex
	var finished []int

	fc := &fakeCompleter{respond: func(ctx context.Context, req provider.Request) (string, error) {
		if isSynthesis(req) {
			return "ordered", nil
		}
		m := paraIndex.FindStringSubmatch(req.Prompt)
		if m == nil {
			return "", errors.New("no chunk marker")
		}
		idx, _ := strconv.Atoi(m[1])
		inFlight.Add(1)
		<-gates[idx]
		mu.Lock()
		finished = append(finished, idx)
		mu.Unlock()
		close(done[idx])
		return fmt.Sprintf("summary-%d", idx), nil
	}}

	opts := testOptions()
	opts.MaxCharsPerChunk = 1
	opts.MaxChunks = 0
	opts.Concurrency = n
	s := NewSummarizer(fc, opts)

	type result struct {
		out string
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		out, err := s.Summarize(context.Background(), strings.Join(paras, "\n"))
		resCh <- result{out, err}
	}()

	require.Eventually(t, func() bool { return inFlight.Load() == n }, 2*time.Second, time.Millisecond)
	for i := n - 1; i >= 0; i-- {
		close(gates[i])
		<-done[i]
	}

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "ordered", res.out)
	assert.Equal(t, []int{4, 3, 2, 1, 0}, finished)

	reqs := fc.Requests()
	synth := reqs[len(reqs)-1]
	require.True(t, isSynthesis(synth))
	assert.Contains(t, synth.Prompt, "summary-0\nsummary-1\nsummary-2\nsummary-3\nsummary-4")
}

func TestSummarize_ChunkFailureFailsDocument(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend exploded")
	fc := &fakeCompleter{respond: func(ctx context.Context, req provider.Request) (string, error) {
		if strings.Contains(req.Prompt, "para-2") {
			return "", boom
		}
		return "fine", nil
	}}
	opts := testOptions()
	opts.MaxCharsPerChunk = 1
	opts.MaxChunks = 0
	s := NewSummarizer(fc, opts)

	_, err := s.Summarize(context.Background(), "para-0\npara-1\npara-2\npara-3")
	require.ErrorIs(t, err, boom)
	for _, req := range fc.Requests() {
		assert.False(t, isSynthesis(req), "no synthesis after a failed chunk")
	}
}

func TestSummarize_EmptyDocument(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{respond: func(ctx context.Context, req provider.Request) (string, error) {
		return "unused", nil
	}}
	s := NewSummarizer(fc, testOptions())

	for _, text := range []string{"", "\n\n", "  \t \n "} {
		_, err := s.Summarize(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
	assert.Empty(t, fc.Requests())
}

func TestSummarize_RetryExhaustionThroughClient(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	backend := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (string, error) {
		attempts.Add(1)
		return "", provider.ErrRateLimited
	})
	client := provider.NewClient(backend, nil, provider.Options{
		PacingInterval:   -1,
		RateLimitBackoff: -1,
		Logger:           testLogger(),
	})
	s := NewSummarizer(client, testOptions())

	_, err := s.Summarize(context.Background(), "A single short paragraph.")
	require.Error(t, err)

	var ce *provider.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, provider.DefaultMaxAttempts, ce.Attempts)
	assert.ErrorIs(t, err, provider.ErrRateLimited)
	assert.EqualValues(t, provider.DefaultMaxAttempts, attempts.Load())
}
