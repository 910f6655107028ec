package brief

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	o := DefaultOptions()
	o.Logger = testLogger()
	return o
}

// fakeCompleter records every request and answers with respond.
type fakeCompleter struct {
	mu       sync.Mutex
	requests []provider.Request
	respond  func(ctx context.Context, req provider.Request) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeCompleter) Requests() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.requests...)
}

// mapCache is an in-memory Cache with optional injected failures.
type mapCache struct {
	mu       sync.Mutex
	records  map[string]Record
	getErr   error
	putErr   error
	putCalls int
}

func newMapCache() *mapCache {
	return &mapCache{records: map[string]Record{}}
}

func (c *mapCache) Get(ctx context.Context, docID string) (Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Record{}, false, c.getErr
	}
	rec, ok := c.records[docID]
	return rec, ok, nil
}

func (c *mapCache) PutSummary(ctx context.Context, docID, summary string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putCalls++
	if c.putErr != nil {
		return c.putErr
	}
	rec := c.records[docID]
	rec.DocID = docID
	rec.Summary = summary
	c.records[docID] = rec
	return nil
}

func (c *mapCache) PutQuery(ctx context.Context, docID, query, modifiedQuery string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putCalls++
	if c.putErr != nil {
		return c.putErr
	}
	rec := c.records[docID]
	rec.DocID = docID
	rec.Query = query
	rec.ModifiedQuery = modifiedQuery
	c.records[docID] = rec
	return nil
}

var errCacheDown = errors.New("cache down")
