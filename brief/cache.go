package brief

import "context"

// Record is what the cache remembers about one document. Empty fields were never stored.
type Record struct {
	DocID         string `json:"doc_id"`
	Query         string `json:"query,omitempty"`
	ModifiedQuery string `json:"modified_query,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// Cache is the keyed store that lets callers skip recomputing a document's summary.
// Writes are idempotent overwrites keyed by document id; a check-then-compute race costs a
// duplicate computation, never a wrong answer.
type Cache interface {
	Get(ctx context.Context, docID string) (Record, bool, error)
	PutSummary(ctx context.Context, docID, summary string) error
	PutQuery(ctx context.Context, docID, query, modifiedQuery string) error
}

// NopCache stores nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Record, bool, error) { return Record{}, false, nil }

func (NopCache) PutSummary(context.Context, string, string) error { return nil }

func (NopCache) PutQuery(context.Context, string, string, string) error { return nil }
