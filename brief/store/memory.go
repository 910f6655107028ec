// Package store holds the summary cache backends: process memory, JSON files, Redis and Postgres.
package store

import (
	"context"
	"sync"

	"github.com/theimaginaryfoundation/casebrief/brief"
)

// Memory keeps records in a map for the life of the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]brief.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]brief.Record)}
}

func (m *Memory) Get(ctx context.Context, docID string) (brief.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[docID]
	return rec, ok, nil
}

func (m *Memory) PutSummary(ctx context.Context, docID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[docID]
	rec.DocID = docID
	rec.Summary = summary
	m.records[docID] = rec
	return nil
}

func (m *Memory) PutQuery(ctx context.Context, docID, query, modifiedQuery string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[docID]
	rec.DocID = docID
	rec.Query = query
	rec.ModifiedQuery = modifiedQuery
	m.records[docID] = rec
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var (
	_ brief.Cache = (*Memory)(nil)
	_ brief.Cache = (*File)(nil)
	_ brief.Cache = (*Redis)(nil)
	_ brief.Cache = (*Postgres)(nil)
)
